package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store persists run records backed by SQLite. Only the pipeline controller
// writes; the CLI reads through List and GetByDate.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the execution log database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "runlog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply runlog schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a fresh pending run for the date. The UNIQUE constraint on
// date enforces the one-run-per-date invariant at the storage layer.
func (s *Store) Create(ctx context.Context, date string) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		RunID:     uuid.NewString(),
		Date:      date,
		Status:    StatusPending,
		Stages:    map[string]StageStatus{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return nil, fmt.Errorf("marshal stages: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, date, status, stages_json, cause, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Date, run.Status, string(stagesJSON), nil,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert run for %s: %w", date, err)
	}
	return run, nil
}

// GetByDate returns the run for a date, or nil when no attempt exists.
func (s *Store) GetByDate(ctx context.Context, date string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, date, status, stages_json, cause, created_at, updated_at
         FROM runs WHERE date = ?`, date)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run for %s: %w", date, err)
	}
	return run, nil
}

// Transition moves the run to a new status without touching stage details.
func (s *Store) Transition(ctx context.Context, runID string, status Status) (*Run, error) {
	return s.update(ctx, runID, func(run *Run) {
		run.Status = status
	})
}

// UpdateStage applies fn to one stage's status inside a read-modify-write
// transaction, so operational queries never see a half-updated stage.
func (s *Store) UpdateStage(ctx context.Context, runID, stage string, fn func(*StageStatus)) (*Run, error) {
	return s.update(ctx, runID, func(run *Run) {
		status := run.Stages[stage]
		if status.Sources == nil {
			status.Sources = map[string]string{}
		}
		fn(&status)
		if len(status.Sources) == 0 {
			status.Sources = nil
		}
		run.Stages[stage] = status
	})
}

// Finalize records the terminal status and the human-readable cause.
func (s *Store) Finalize(ctx context.Context, runID string, status Status, cause string) (*Run, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("finalize requires a terminal status, got %q", status)
	}
	return s.update(ctx, runID, func(run *Run) {
		run.Status = status
		run.Cause = cause
	})
}

func (s *Store) update(ctx context.Context, runID string, fn func(*Run)) (*Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT run_id, date, status, stages_json, cause, created_at, updated_at
         FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	fn(run)
	run.UpdatedAt = time.Now().UTC()

	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return nil, fmt.Errorf("marshal stages: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, stages_json = ?, cause = ?, updated_at = ? WHERE run_id = ?`,
		run.Status, string(stagesJSON), nullableString(run.Cause),
		run.UpdatedAt.Format(time.RFC3339Nano), run.RunID,
	); err != nil {
		return nil, fmt.Errorf("update run %s: %w", runID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run update: %w", err)
	}
	return run, nil
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	Since  string
	Status Status
	Limit  int
}

// List returns runs ordered by date descending for operational inspection.
func (s *Store) List(ctx context.Context, filter Filter) ([]Run, error) {
	builder := sq.Select("run_id", "date", "status", "stages_json", "cause", "created_at", "updated_at").
		From("runs").
		OrderBy("date DESC")
	if filter.Since != "" {
		builder = builder.Where(sq.GtOrEq{"date": filter.Since})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build run query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		status     string
		stagesJSON string
		cause      sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&run.RunID, &run.Date, &status, &stagesJSON, &cause, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	if cause.Valid {
		run.Cause = cause.String
	}
	if err := json.Unmarshal([]byte(stagesJSON), &run.Stages); err != nil {
		return nil, fmt.Errorf("decode stages for run %s: %w", run.RunID, err)
	}
	if run.Stages == nil {
		run.Stages = map[string]StageStatus{}
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
