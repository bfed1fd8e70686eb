package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/model"
)

var completeCmd = &cobra.Command{
	Use:   "complete <deal-id> [milestone-type]",
	Short: "Mark a milestone done (or not done with --undo)",
	Long:  "Marks one milestone of a deal complete, clears it with --undo, or marks every derived milestone complete with --all.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		undo, _ := cmd.Flags().GetBool("undo")
		all, _ := cmd.Flags().GetBool("all")

		switch {
		case all && (undo || len(args) == 2):
			return eris.New("complete: --all takes only a deal id")
		case !all && len(args) != 2:
			return eris.New("complete: milestone type is required without --all")
		}

		env, err := initDesk(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		if all {
			n, err := env.Desk.CompleteAll(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "complete")
			}
			fmt.Fprintf(os.Stderr, "Marked %d milestones complete for %s.\n", n, args[0])
			return nil
		}

		t := model.MilestoneType(args[1])
		if err := env.Desk.SetCompleted(ctx, args[0], t, !undo); err != nil {
			return eris.Wrap(err, "complete")
		}
		state := "complete"
		if undo {
			state = "not complete"
		}
		fmt.Fprintf(os.Stderr, "Marked %s %s for %s.\n", t.Label(), state, args[0])
		return nil
	},
}

func init() {
	completeCmd.Flags().Bool("undo", false, "clear the completion flag")
	completeCmd.Flags().Bool("all", false, "mark every derived milestone complete")
	rootCmd.AddCommand(completeCmd)
}
