package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/sheet"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate a seller's closing costs and net proceeds",
	Long:  "Prices a stored deal (--deal) or a deal read from a JSON file (--file) without saving it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dealID, _ := cmd.Flags().GetString("deal")
		file, _ := cmd.Flags().GetString("file")
		refresh, _ := cmd.Flags().GetBool("refresh")
		asJSON, _ := cmd.Flags().GetBool("json")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")

		if (dealID == "") == (file == "") {
			return eris.New("estimate: exactly one of --deal or --file is required")
		}

		env, err := initDesk(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		var (
			b     model.Breakdown
			title string
		)
		if file != "" {
			deal, err := readDealFile(file)
			if err != nil {
				return err
			}
			b, title = env.Desk.Quote(*deal), deal.Name
		} else {
			b, err = env.Desk.Estimate(ctx, dealID, refresh)
			if err != nil {
				return eris.Wrap(err, "estimate")
			}
			if deal, err := env.Desk.Deal(ctx, dealID); err == nil {
				title = deal.Name
			}
		}

		if xlsxPath != "" {
			if err := writeStatementFile(xlsxPath, title, b); err != nil {
				return err
			}
			zap.L().Info("wrote closing statement", zap.String("path", xlsxPath))
		}

		if asJSON {
			return writeJSON(os.Stdout, b)
		}
		formatBreakdown(os.Stdout, b)
		return nil
	},
}

func writeStatementFile(path, title string, b model.Breakdown) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := sheet.WriteStatement(f, title, b); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

// readDealFile decodes one deal from a JSON file; "-" reads stdin.
func readDealFile(path string) (*model.Deal, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open deal file %s", path)
		}
		defer f.Close() //nolint:errcheck
	}

	var deal model.Deal
	if err := json.NewDecoder(f).Decode(&deal); err != nil {
		return nil, eris.Wrapf(err, "decode deal file %s", path)
	}
	return &deal, nil
}

func init() {
	estimateCmd.Flags().String("deal", "", "stored deal id")
	estimateCmd.Flags().String("file", "", "deal JSON file to price without saving (- for stdin)")
	estimateCmd.Flags().Bool("refresh", false, "recompute instead of using the cached breakdown")
	estimateCmd.Flags().Bool("json", false, "print the breakdown as JSON")
	estimateCmd.Flags().String("xlsx", "", "also write the closing statement to this XLSX file")
	rootCmd.AddCommand(estimateCmd)
}
