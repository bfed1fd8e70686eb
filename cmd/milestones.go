package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var milestonesCmd = &cobra.Command{
	Use:   "milestones <deal-id>",
	Short: "Show a deal's contract deadlines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initDesk(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		tl, err := env.Desk.Timeline(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "milestones")
		}

		if asJSON {
			return writeJSON(os.Stdout, tl)
		}
		formatTimeline(os.Stdout, tl)
		return nil
	},
}

func init() {
	milestonesCmd.Flags().Bool("json", false, "print the timeline as JSON")
	rootCmd.AddCommand(milestonesCmd)
}
