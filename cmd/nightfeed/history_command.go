package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nightfeed/internal/runlog"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var limitFlag int
	var statusFlag string
	var sinceFlag string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			runs, err := runlog.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer runs.Close()

			filter := runlog.Filter{Limit: limitFlag, Since: sinceFlag}
			if statusFlag != "" {
				status, err := runlog.ParseStatus(statusFlag)
				if err != nil {
					return err
				}
				filter.Status = status
			}

			items, err := runs.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, run := range items {
				rows = append(rows, []string{
					run.Date,
					string(run.Status),
					stageSummary(run),
					run.Cause,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRows(
				[]string{"DATE", "STATUS", "STAGES", "CAUSE"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 10, "Maximum number of runs to show")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by run status")
	cmd.Flags().StringVar(&sinceFlag, "since", "", "Only show runs on or after this date (YYYY-MM-DD)")
	return cmd
}

func stageSummary(run runlog.Run) string {
	summary := ""
	for _, stage := range []string{runlog.StageCollect, runlog.StageAnalyze, runlog.StageHandoff} {
		status, ok := run.Stages[stage]
		if !ok {
			continue
		}
		if summary != "" {
			summary += " "
		}
		summary += fmt.Sprintf("%s=%s", stage, status.Status)
	}
	return summary
}
