package cli

import (
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous report runs",
		Long:  "List the runs recorded in the history database, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd)
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			runs, err := mgr.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			mgr.Printer().PrintRuns(runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")

	cmd.AddCommand(newHistoryShowCmd(a), newHistoryDeleteCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var noChart bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run with its totals",
		Long:  "Show a recorded run. The ID may be shortened to any unique prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd)
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			detail, err := mgr.HistoryRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := mgr.Printer()
			p.Chart = !noChart
			p.PrintRun(detail.Run, detail.Daily, detail.ByModel)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noChart, "no-chart", false, "Do not draw the daily chart")
	return cmd
}

func newHistoryDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd)
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			id, err := mgr.DeleteRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			mgr.Printer().Status("Deleted run %s", id)
			return nil
		},
	}
}
