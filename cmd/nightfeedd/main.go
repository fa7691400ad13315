package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"nightfeed/internal/config"
	"nightfeed/internal/handoff"
	"nightfeed/internal/logging"
	"nightfeed/internal/notifications"
	"nightfeed/internal/pipeline"
	"nightfeed/internal/runlog"
	"nightfeed/internal/scheduler"
	"nightfeed/internal/scriptwriter"
	"nightfeed/internal/snapshot"
	"nightfeed/internal/source"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "nightfeedd.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		logger.Error("acquire daemon lock", logging.Error(err))
		os.Exit(1)
	}
	if !locked {
		logger.Error("another nightfeedd instance is already running", logging.String("lock", lockPath))
		os.Exit(1)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release daemon lock", logging.Error(err))
		}
	}()

	snapshots, err := snapshot.Open(cfg.Paths.DataDir)
	if err != nil {
		logger.Error("open snapshot store", logging.Error(err))
		os.Exit(1)
	}
	defer snapshots.Close()

	runs, err := runlog.Open(cfg.Paths.DataDir)
	if err != nil {
		logger.Error("open run log", logging.Error(err))
		os.Exit(1)
	}
	defer runs.Close()

	adapters, err := buildAdapters(cfg)
	if err != nil {
		logger.Error("build source adapters", logging.Error(err))
		os.Exit(1)
	}

	opts := []pipeline.Option{
		pipeline.WithNotifier(notifications.NewService(cfg)),
	}
	if cfg.ScriptWriter.Enabled {
		opts = append(opts, pipeline.WithScriptWriter(scriptwriter.NewClient(cfg.ScriptWriter)))
	}
	controller := pipeline.New(cfg, logger, adapters,
		snapshots, runs, handoff.NewFSStore(cfg.Paths.HandoffDir), opts...)

	sched, err := scheduler.New(cfg, logger, controller.RunDate)
	if err != nil {
		logger.Error("build scheduler", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("nightfeedd started",
		logging.String("run_time", cfg.Workflow.RunTime),
		logging.String("timezone", cfg.Workflow.Timezone),
		logging.Int("adapters", len(adapters)))

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped", logging.Error(err))
	}
	logger.Info("nightfeedd shutting down")
}

func buildAdapters(cfg *config.Config) ([]source.Adapter, error) {
	var adapters []source.Adapter
	if cfg.Steam.Enabled {
		adapters = append(adapters, source.NewSteamTopSellers(cfg.Steam, nil))
	}
	if cfg.Trending.Enabled {
		adapters = append(adapters, source.NewSteamTrending(cfg.Trending, nil))
	}
	if cfg.Feeds.Enabled {
		feeds, err := source.LoadSources(cfg.Paths.SourcesFile)
		if err != nil {
			// A missing sources file only disables the feed adapters.
			if errors.Is(err, fs.ErrNotExist) {
				return adapters, nil
			}
			return nil, err
		}
		for _, feed := range feeds {
			adapters = append(adapters, source.NewFeedAdapter(feed, cfg.Feeds.MaxItemsPerSource, nil))
		}
	}
	return adapters, nil
}
