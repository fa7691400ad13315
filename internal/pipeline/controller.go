package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nightfeed/internal/config"
	"nightfeed/internal/detect"
	"nightfeed/internal/handoff"
	"nightfeed/internal/logging"
	"nightfeed/internal/notifications"
	"nightfeed/internal/runlog"
	"nightfeed/internal/services"
	"nightfeed/internal/snapshot"
	"nightfeed/internal/source"
)

// ScriptWriter is the optional downstream collaborator invoked after handoff.
type ScriptWriter interface {
	GenerateScript(ctx context.Context, bundle detect.Bundle) (string, error)
}

// Controller owns run identity and drives the collect, analyze, and handoff
// stages for one date at a time.
type Controller struct {
	cfg       *config.Config
	logger    *slog.Logger
	adapters  []source.Adapter
	snapshots *snapshot.Store
	runs      *runlog.Store
	artifacts handoff.Store
	detector  *detect.Detector
	notifier  notifications.Service
	writer    ScriptWriter
}

// Option customizes the controller.
type Option func(*Controller)

// WithScriptWriter attaches the downstream script-writing collaborator.
// Generation failures are logged and never affect the run's terminal status.
func WithScriptWriter(writer ScriptWriter) Option {
	return func(c *Controller) {
		c.writer = writer
	}
}

// WithNotifier overrides the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(c *Controller) {
		if notifier != nil {
			c.notifier = notifier
		}
	}
}

// New assembles a controller. The detector's source priorities come from the
// adapters' declared priorities.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	adapters []source.Adapter,
	snapshots *snapshot.Store,
	runs *runlog.Store,
	artifacts handoff.Store,
	opts ...Option,
) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}

	priorities := make(map[string]int, len(adapters))
	for _, adapter := range adapters {
		priorities[adapter.Name()] = adapter.Priority()
	}

	controller := &Controller{
		cfg:       cfg,
		logger:    logger.With(logging.String(logging.FieldComponent, "pipeline")),
		adapters:  adapters,
		snapshots: snapshots,
		runs:      runs,
		artifacts: artifacts,
		notifier:  notifications.NewNoop(),
		detector: detect.New(detect.Options{
			BaseWeight:          cfg.Detector.BaseWeight,
			RankJumpThreshold:   cfg.Detector.RankJumpThreshold,
			RankedSlots:         cfg.Detector.RankedSlots,
			ScoreSpikeThreshold: cfg.Detector.ScoreSpikeThreshold,
			RecurrenceWindow:    cfg.Detector.RecurrenceWindow,
			RecurrencePenalty:   cfg.Detector.RecurrencePenalty,
			MaxSignals:          cfg.Detector.MaxSignals,
			SourcePriorities:    priorities,
		}),
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller
}

// Today returns the current run date in the configured timezone.
func (c *Controller) Today() string {
	return time.Now().In(c.cfg.Location()).Format(snapshot.DateLayout)
}

// RunDate attempts a full pipeline run for the date. A terminal existing run
// is a guarded no-op unless force is set; a non-terminal record for the date
// is taken over and continued from its last committed state.
func (c *Controller) RunDate(ctx context.Context, date string, force bool) (*runlog.Run, error) {
	if _, err := time.Parse(snapshot.DateLayout, date); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "run", fmt.Sprintf("invalid run date %q", date), err)
	}

	run, err := c.prepareRun(ctx, date, force)
	if err != nil {
		return run, err
	}
	ctx = services.WithRunID(ctx, run.RunID)
	logger := c.logger.With(
		logging.String(logging.FieldRunID, run.RunID),
		logging.String(logging.FieldRunDate, date),
	)
	logger.Info("run started", logging.Bool("force", force))

	snap, collected, failures, err := c.collect(ctx, logger, run, date)
	if err != nil {
		return c.failRun(ctx, logger, run, err)
	}

	bundle, err := c.analyze(ctx, logger, run, date, snap)
	if err != nil {
		return c.failRun(ctx, logger, run, err)
	}

	run, err = c.handOff(ctx, logger, run, bundle, collected, failures)
	if err != nil {
		return c.failRun(ctx, logger, run, err)
	}

	c.afterHandoff(ctx, logger, bundle)
	return run, nil
}

// prepareRun enforces the one-run-per-date invariant and resolves resume and
// force semantics against the existing record.
func (c *Controller) prepareRun(ctx context.Context, date string, force bool) (*runlog.Run, error) {
	existing, err := c.runs.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return c.runs.Create(ctx, date)
	}
	if existing.Status.Terminal() && !force {
		return existing, services.Wrap(services.ErrRunAlreadyTerminal, "", "run",
			fmt.Sprintf("run for %s already %s", date, existing.Status), nil)
	}
	if existing.Status.Terminal() {
		c.logger.Warn("force re-run of terminal run",
			logging.String(logging.FieldRunDate, date),
			logging.String("previous_status", string(existing.Status)))
		return c.runs.Transition(ctx, existing.RunID, runlog.StatusPending)
	}
	c.logger.Info("resuming incomplete run",
		logging.String(logging.FieldRunDate, date),
		logging.String("last_status", string(existing.Status)))
	return existing, nil
}

type adapterResult struct {
	name    string
	records []source.Record
	dropped int
	err     error
}

// collect runs all adapters with bounded parallelism and commits the union of
// their records as the day's snapshot. When a snapshot already exists for the
// date (a resumed or forced run), it is reused instead of recommitted.
func (c *Controller) collect(ctx context.Context, logger *slog.Logger, run *runlog.Run, date string) (*snapshot.Snapshot, int, []string, error) {
	if existing, err := c.snapshots.Get(ctx, date); err != nil {
		return nil, 0, nil, err
	} else if existing != nil {
		collected, failures := c.collectOutcome(run)
		logger.Info("reusing committed snapshot",
			logging.Int("records", len(existing.Records)),
			logging.Int("sources_failed", len(failures)))
		if _, err := c.runs.Transition(ctx, run.RunID, runlog.StatusCollecting); err != nil {
			return nil, 0, nil, err
		}
		return existing, collected, failures, nil
	}

	if _, err := c.runs.Transition(ctx, run.RunID, runlog.StatusCollecting); err != nil {
		return nil, 0, nil, err
	}
	started := time.Now().UTC()
	if _, err := c.runs.UpdateStage(ctx, run.RunID, runlog.StageCollect, func(status *runlog.StageStatus) {
		status.Status = "running"
		status.StartedAt = &started
	}); err != nil {
		return nil, 0, nil, err
	}

	results := c.fetchAll(ctx, logger)

	var (
		union    []source.Record
		failures []string
		success  int
	)
	ended := time.Now().UTC()
	if _, err := c.runs.UpdateStage(ctx, run.RunID, runlog.StageCollect, func(status *runlog.StageStatus) {
		for _, result := range results {
			if result.err != nil {
				status.Sources[result.name] = "failed: " + result.err.Error()
				continue
			}
			status.Sources[result.name] = fmt.Sprintf("ok: %d records, %d dropped", len(result.records), result.dropped)
		}
	}); err != nil {
		return nil, 0, nil, err
	}
	for _, result := range results {
		if result.err != nil {
			failures = append(failures, result.name)
			continue
		}
		success++
		union = append(union, result.records...)
	}

	minSuccess := c.cfg.Workflow.MinSuccessfulSources
	if minSuccess <= 0 {
		minSuccess = 1
	}
	if success < minSuccess {
		cause := fmt.Sprintf("%d of %d sources succeeded (minimum %d); failed: %s",
			success, len(c.adapters), minSuccess, strings.Join(failures, ", "))
		c.finishStage(ctx, run, runlog.StageCollect, "failed", ended, cause)
		return nil, 0, failures, services.Wrap(services.ErrInsufficientSources, "collecting", "fetch", cause, nil)
	}

	snap, err := c.snapshots.Commit(ctx, date, union)
	if err != nil {
		c.finishStage(ctx, run, runlog.StageCollect, "failed", ended, err.Error())
		return nil, 0, failures, err
	}
	c.finishStage(ctx, run, runlog.StageCollect, "completed", ended, "")

	logger.Info("collection committed",
		logging.Int("sources_ok", success),
		logging.Int("sources_failed", len(failures)),
		logging.Int("records", len(snap.Records)))
	return snap, success, failures, nil
}

// collectOutcome recovers the per-source outcome of an earlier collect stage
// from the run log, so a run that reuses its committed snapshot still
// finalizes with the original partial failures on record.
func (c *Controller) collectOutcome(run *runlog.Run) (int, []string) {
	stage, ok := run.Stages[runlog.StageCollect]
	if !ok || len(stage.Sources) == 0 {
		return len(c.adapters), nil
	}
	collected := 0
	var failures []string
	for name, outcome := range stage.Sources {
		if strings.HasPrefix(outcome, "failed") {
			failures = append(failures, name)
			continue
		}
		collected++
	}
	sort.Strings(failures)
	return collected, failures
}

// fetchAll invokes every adapter with bounded parallelism, an independent
// timeout per attempt, and per-adapter retries. Adapter failures are
// contained in the result set, never returned.
func (c *Controller) fetchAll(ctx context.Context, logger *slog.Logger) []adapterResult {
	limit := c.cfg.Workflow.MaxConcurrentFetches
	if limit <= 0 {
		limit = len(c.adapters)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	var mu sync.Mutex
	results := make([]adapterResult, 0, len(c.adapters))

	for _, adapter := range c.adapters {
		adapter := adapter
		group.Go(func() error {
			records, dropped, err := c.fetchWithRetry(groupCtx, logger, adapter)
			mu.Lock()
			results = append(results, adapterResult{
				name:    adapter.Name(),
				records: records,
				dropped: dropped,
				err:     err,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })
	return results
}

func (c *Controller) fetchWithRetry(ctx context.Context, logger *slog.Logger, adapter source.Adapter) ([]source.Record, int, error) {
	timeout := time.Duration(c.cfg.Workflow.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := c.cfg.Workflow.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(c.cfg.Workflow.RetryBackoffSeconds) * time.Second

	adapterCtx := services.WithSource(ctx, adapter.Name())
	adapterLog := logger.With(logging.String(logging.FieldSource, adapter.Name()))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(adapterCtx, timeout)
		records, dropped, err := source.Collect(attemptCtx, adapter)
		cancel()
		if err == nil {
			if dropped > 0 {
				adapterLog.Warn("dropped unnormalizable items", logging.Int("dropped", dropped))
			}
			return records, dropped, nil
		}
		lastErr = err
		if !services.Recoverable(err) || attempt == attempts {
			break
		}

		delay := backoff << (attempt - 1)
		adapterLog.Warn("fetch failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err))
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	adapterLog.Error("source failed", logging.Error(lastErr))
	return nil, 0, lastErr
}

// analyze runs the detector over the committed snapshot against the stored
// baseline and recurrence history.
func (c *Controller) analyze(ctx context.Context, logger *slog.Logger, run *runlog.Run, date string, snap *snapshot.Snapshot) (detect.Bundle, error) {
	if _, err := c.runs.Transition(ctx, run.RunID, runlog.StatusAnalyzing); err != nil {
		return detect.Bundle{}, err
	}
	started := time.Now().UTC()
	if _, err := c.runs.UpdateStage(ctx, run.RunID, runlog.StageAnalyze, func(status *runlog.StageStatus) {
		status.Status = "running"
		status.StartedAt = &started
	}); err != nil {
		return detect.Bundle{}, err
	}

	baseline, err := c.snapshots.LatestBefore(ctx, date)
	if err != nil {
		c.finishStage(ctx, run, runlog.StageAnalyze, "failed", time.Now().UTC(), err.Error())
		return detect.Bundle{}, err
	}
	window := c.cfg.Detector.RecurrenceWindow
	if window <= 0 {
		window = 3
	}
	history, err := c.snapshots.RecentBefore(ctx, date, window)
	if err != nil {
		c.finishStage(ctx, run, runlog.StageAnalyze, "failed", time.Now().UTC(), err.Error())
		return detect.Bundle{}, err
	}

	records := make([]source.Record, 0, len(snap.Records))
	for _, record := range snap.Records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Source != records[j].Source {
			return records[i].Source < records[j].Source
		}
		return records[i].ExternalID < records[j].ExternalID
	})

	bundle := c.detector.Detect(date, records, baseline, history)
	c.finishStage(ctx, run, runlog.StageAnalyze, "completed", time.Now().UTC(), "")

	logger.Info("analysis complete",
		logging.Int("records", len(records)),
		logging.Int("signals", len(bundle.Signals)),
		logging.Bool("cold_start", baseline == nil))
	return bundle, nil
}

// handOff writes the artifact and finalizes the run as HANDED_OFF, or PARTIAL
// when some adapters failed but the run proceeded.
func (c *Controller) handOff(ctx context.Context, logger *slog.Logger, run *runlog.Run, bundle detect.Bundle, collected int, failures []string) (*runlog.Run, error) {
	started := time.Now().UTC()
	if _, err := c.runs.UpdateStage(ctx, run.RunID, runlog.StageHandoff, func(status *runlog.StageStatus) {
		status.Status = "running"
		status.StartedAt = &started
	}); err != nil {
		return run, err
	}

	path, err := c.artifacts.WriteBundle(ctx, bundle)
	if err != nil {
		c.finishStage(ctx, run, runlog.StageHandoff, "failed", time.Now().UTC(), err.Error())
		return run, err
	}
	c.finishStage(ctx, run, runlog.StageHandoff, "completed", time.Now().UTC(), "")

	status := runlog.StatusHandedOff
	cause := ""
	if len(failures) > 0 {
		status = runlog.StatusPartial
		cause = fmt.Sprintf("proceeded without %s", strings.Join(failures, ", "))
	}
	final, err := c.runs.Finalize(ctx, run.RunID, status, cause)
	if err != nil {
		return run, err
	}

	logger.Info("run handed off",
		logging.String("artifact", path),
		logging.String("status", string(status)),
		logging.Int("signals", len(bundle.Signals)))

	if err := c.notifier.NotifyRunCompleted(ctx, bundle.Date, string(status), len(bundle.Signals)); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}

	if keep := c.cfg.Workflow.SnapshotRetentionDays; keep > 0 {
		if pruned, err := c.snapshots.Cleanup(ctx, keep); err != nil {
			logger.Warn("snapshot cleanup failed", logging.Error(err))
		} else if pruned > 0 {
			logger.Info("pruned old snapshots", logging.Int64("pruned", pruned))
		}
	}
	return final, nil
}

// afterHandoff invokes the optional script writer. Fire-and-log: the run is
// already terminal and a generation failure never changes that.
func (c *Controller) afterHandoff(ctx context.Context, logger *slog.Logger, bundle detect.Bundle) {
	if c.writer == nil || !c.cfg.ScriptWriter.Enabled || len(bundle.Signals) == 0 {
		return
	}
	script, err := c.writer.GenerateScript(ctx, bundle)
	if err != nil {
		logger.Warn("script generation failed", logging.Error(err))
		return
	}
	logger.Info("script generated", logging.Int("length", len(script)))
}

func (c *Controller) failRun(ctx context.Context, logger *slog.Logger, run *runlog.Run, cause error) (*runlog.Run, error) {
	logger.Error("run failed", logging.Error(cause))
	final, err := c.runs.Finalize(ctx, run.RunID, runlog.StatusFailed, cause.Error())
	if err != nil {
		logger.Error("failed to finalize run", logging.Error(err))
		final = run
	}
	if err := c.notifier.NotifyRunFailed(ctx, run.Date, cause.Error()); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
	return final, cause
}

func (c *Controller) finishStage(ctx context.Context, run *runlog.Run, stage, status string, ended time.Time, errMsg string) {
	if _, err := c.runs.UpdateStage(ctx, run.RunID, stage, func(st *runlog.StageStatus) {
		st.Status = status
		st.EndedAt = &ended
		st.Error = errMsg
	}); err != nil {
		c.logger.Error("failed to record stage status",
			logging.String(logging.FieldStage, stage),
			logging.Error(err))
	}
}
