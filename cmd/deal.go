package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/sheet"
)

var dealCmd = &cobra.Command{
	Use:   "deal",
	Short: "Manage stored deals",
}

// -- deal put --

var dealPutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Create or replace a deal from a JSON file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, _ := cmd.Flags().GetString("id")

		deal, err := readDealFile(args[0])
		if err != nil {
			return err
		}
		if id != "" {
			deal.ID = id
		}

		env, err := initDesk(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		saved, err := env.Desk.SaveDeal(ctx, *deal)
		if err != nil {
			return eris.Wrap(err, "deal put")
		}
		return writeJSON(os.Stdout, saved)
	},
}

// -- deal show --

var dealShowCmd = &cobra.Command{
	Use:   "show <deal-id>",
	Short: "Print a stored deal as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initDesk(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		deal, err := env.Desk.Deal(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "deal show")
		}
		return writeJSON(os.Stdout, deal)
	},
}

// -- deal import --

var dealImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create or replace deals from a CSV or XLSX sheet",
	Long:  "Reads a header row naming deal fields (for example \"Property ID\", \"Sale Price\", \"Closing Date\") and saves one deal per row.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sheetName, _ := cmd.Flags().GetString("sheet")
		lazy, _ := cmd.Flags().GetBool("lazy-quotes")

		rows, err := sheet.ReadFile(ctx, args[0], sheet.ReadOptions{SheetName: sheetName, LazyQuotes: lazy})
		if err != nil {
			return err
		}
		deals, err := sheet.ParseDeals(rows)
		if err != nil {
			return err
		}

		env, err := initDesk(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		for _, d := range deals {
			if _, err := env.Desk.SaveDeal(ctx, d); err != nil {
				return eris.Wrapf(err, "deal import %s", d.Name)
			}
		}

		zap.L().Info("import complete",
			zap.Int("deals", len(deals)),
			zap.String("file", args[0]),
		)
		return nil
	},
}

func init() {
	dealImportCmd.Flags().String("sheet", "", "worksheet name for XLSX files (default first sheet)")
	dealImportCmd.Flags().Bool("lazy-quotes", false, "tolerate bare quotes inside unquoted CSV fields")
	dealCmd.AddCommand(dealImportCmd)
	dealPutCmd.Flags().String("id", "", "deal id (overrides the id in the file)")
	dealCmd.AddCommand(dealPutCmd)
	dealCmd.AddCommand(dealShowCmd)
	rootCmd.AddCommand(dealCmd)
}
