package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"nightfeed/internal/handoff"
	"nightfeed/internal/runlog"
	"nightfeed/internal/snapshot"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [date]",
		Short: "Show the run record for a date (default: today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			date := time.Now().In(cfg.Location()).Format(snapshot.DateLayout)
			if len(args) == 1 {
				date = args[0]
				if _, err := time.Parse(snapshot.DateLayout, date); err != nil {
					return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
				}
			}

			runs, err := runlog.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer runs.Close()

			run, err := runs.GetByDate(cmd.Context(), date)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if run == nil {
				fmt.Fprintf(out, "No run recorded for %s.\n", date)
				return nil
			}

			fmt.Fprintf(out, "Run %s\n", run.RunID)
			fmt.Fprintf(out, "  Date:    %s\n", run.Date)
			fmt.Fprintf(out, "  Status:  %s\n", run.Status)
			if run.Cause != "" {
				fmt.Fprintf(out, "  Cause:   %s\n", run.Cause)
			}
			fmt.Fprintf(out, "  Created: %s\n", run.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "  Updated: %s\n", run.UpdatedAt.Format(time.RFC3339))

			for _, stage := range []string{runlog.StageCollect, runlog.StageAnalyze, runlog.StageHandoff} {
				status, ok := run.Stages[stage]
				if !ok {
					continue
				}
				fmt.Fprintf(out, "  Stage %s: %s", stage, status.Status)
				if status.Error != "" {
					fmt.Fprintf(out, " (%s)", status.Error)
				}
				fmt.Fprintln(out)
				names := make([]string, 0, len(status.Sources))
				for name := range status.Sources {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "    %s: %s\n", name, status.Sources[name])
				}
			}

			artifacts := handoff.NewFSStore(cfg.Paths.HandoffDir)
			bundle, err := artifacts.ReadBundle(cmd.Context(), date)
			if err != nil {
				return err
			}
			if bundle != nil {
				fmt.Fprintf(out, "  Artifact: %s (%d signals)\n", artifacts.BundlePath(date), len(bundle.Signals))
			}
			return nil
		},
	}
	return cmd
}
