package main

import (
	"fmt"
	"os"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/monitoring"
)

var noticesCmd = &cobra.Command{
	Use:   "notices",
	Short: "List overdue and upcoming milestones",
	Long:  "Classifies the outstanding milestones of the given deals (all deals by default) as overdue or due within the next few days.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ids, _ := cmd.Flags().GetStringSlice("ids")
		todayFlag, _ := cmd.Flags().GetString("today")
		asJSON, _ := cmd.Flags().GetBool("json")
		send, _ := cmd.Flags().GetBool("send")

		env, err := initDesk(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		d := env.Desk
		if todayFlag != "" {
			today, err := civil.ParseDate(todayFlag)
			if err != nil {
				return eris.Wrapf(err, "parse --today %q", todayFlag)
			}
			d = d.At(today)
		}

		res, err := d.Notices(ctx, ids)
		if err != nil {
			return eris.Wrap(err, "notices")
		}

		if send {
			alerter := monitoring.NewAlerter(cfg.Alert)
			if !alerter.Enabled() {
				return eris.New("notices: --send needs alert.webhook_url (DEALDESK_ALERT_WEBHOOK_URL)")
			}
			if digest, ok := alerter.Evaluate(res, d.Today()); ok {
				if err := alerter.Send(ctx, digest); err != nil {
					return err
				}
			}
		}

		if asJSON {
			return writeJSON(os.Stdout, res)
		}
		if res.Len() == 0 {
			fmt.Fprintln(os.Stderr, "No outstanding milestones.")
			return nil
		}
		formatNotices(os.Stdout, res)
		return nil
	},
}

func init() {
	noticesCmd.Flags().StringSlice("ids", nil, "deal ids to check (default all)")
	noticesCmd.Flags().String("today", "", "classify as of this date (YYYY-MM-DD)")
	noticesCmd.Flags().Bool("json", false, "print notices as JSON")
	noticesCmd.Flags().Bool("send", false, "also post a digest to the alert webhook")
	rootCmd.AddCommand(noticesCmd)
}
