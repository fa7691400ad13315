package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nightfeed/internal/handoff"
	"nightfeed/internal/logging"
	"nightfeed/internal/notifications"
	"nightfeed/internal/pipeline"
	"nightfeed/internal/runlog"
	"nightfeed/internal/scriptwriter"
	"nightfeed/internal/services"
	"nightfeed/internal/snapshot"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var dateFlag string
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline for a date (default: today)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			snapshots, err := snapshot.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer snapshots.Close()

			runs, err := runlog.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer runs.Close()

			adapters, err := buildAdapters(cfg)
			if err != nil {
				return err
			}
			if len(adapters) == 0 {
				return errors.New("no source adapters enabled; check [steam], [trending], and [feeds] configuration")
			}

			opts := []pipeline.Option{
				pipeline.WithNotifier(notifications.NewService(cfg)),
			}
			if cfg.ScriptWriter.Enabled {
				opts = append(opts, pipeline.WithScriptWriter(scriptwriter.NewClient(cfg.ScriptWriter)))
			}
			controller := pipeline.New(cfg, logger, adapters,
				snapshots, runs, handoff.NewFSStore(cfg.Paths.HandoffDir), opts...)

			date := dateFlag
			if date == "" {
				date = controller.Today()
			}
			if _, err := time.Parse(snapshot.DateLayout, date); err != nil {
				return fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", date)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			run, err := controller.RunDate(ctx, date, forceFlag)
			if errors.Is(err, services.ErrRunAlreadyTerminal) {
				fmt.Fprintf(cmd.OutOrStdout(),
					"Run for %s already finished with status %s. Use --force to re-run.\n",
					date, run.Status)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Run for %s finished: %s\n", date, run.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Run date in YYYY-MM-DD format")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Re-run a date that already has a terminal run")
	return cmd
}
