package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"nightfeed/internal/services"
	"nightfeed/internal/source"
)

//go:embed schema.sql
var schemaSQL string

// DateLayout is the canonical snapshot date key format.
const DateLayout = "2006-01-02"

// Snapshot holds every normalized record committed for one date. Snapshots
// are never mutated after commit, only appended.
type Snapshot struct {
	Date        string
	Records     map[source.Key]source.Record
	CommittedAt time.Time
}

// Store persists the append-only snapshot history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the snapshot database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "snapshots.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
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
		return nil, fmt.Errorf("apply snapshot schema: %w", err)
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

// Path returns the backing database file location.
func (s *Store) Path() string {
	return s.path
}

// Commit writes all records for a date as a single atomic snapshot. A second
// commit for the same date fails with ErrDuplicateSnapshot and leaves stored
// state unchanged.
func (s *Store) Commit(ctx context.Context, date string, records []source.Record) (*Snapshot, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid snapshot date %q: %w", date, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existing int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM snapshot_commits WHERE date = ?", date)
	if err := row.Scan(&existing); err != nil {
		return nil, fmt.Errorf("check existing snapshot: %w", err)
	}
	if existing > 0 {
		return nil, services.Wrap(services.ErrDuplicateSnapshot, "collecting", "commit",
			fmt.Sprintf("snapshot for %s already committed", date), nil)
	}

	committedAt := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshot_commits (date, committed_at, record_count) VALUES (?, ?, ?)",
		date, committedAt.Format(time.RFC3339Nano), len(records),
	); err != nil {
		return nil, fmt.Errorf("insert snapshot commit: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_records (
        date, source, external_id, title, url, rank, score, published_at, fetched_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	snap := &Snapshot{
		Date:        date,
		Records:     make(map[source.Key]source.Record, len(records)),
		CommittedAt: committedAt,
	}
	for _, record := range records {
		if _, dup := snap.Records[record.Key()]; dup {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			date,
			record.Source,
			record.ExternalID,
			record.Title,
			nullableString(record.URL),
			nullableInt(record.Rank),
			nullableFloat(record.Score),
			record.PublishedAt.UTC().Format(time.RFC3339Nano),
			record.FetchedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return nil, fmt.Errorf("insert snapshot record %s/%s: %w", record.Source, record.ExternalID, err)
		}
		snap.Records[record.Key()] = record
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

// Get returns the snapshot committed for a date, or nil when none exists.
func (s *Store) Get(ctx context.Context, date string) (*Snapshot, error) {
	return s.load(ctx, date, "")
}

// RecentBefore returns up to days full snapshots committed strictly before
// the given date, oldest first. Used as the detector's recurrence history.
func (s *Store) RecentBefore(ctx context.Context, date string, days int) ([]Snapshot, error) {
	if days <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT date FROM snapshot_commits WHERE date < ? ORDER BY date DESC LIMIT ?", date, days)
	if err != nil {
		return nil, fmt.Errorf("query recent snapshots: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan recent date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent dates: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(dates))
	for i := len(dates) - 1; i >= 0; i-- {
		snap, err := s.load(ctx, dates[i], "")
		if err != nil {
			return nil, err
		}
		if snap != nil {
			snapshots = append(snapshots, *snap)
		}
	}
	return snapshots, nil
}

// LatestBefore returns the most recent snapshot committed strictly before the
// given date, or nil on cold start.
func (s *Store) LatestBefore(ctx context.Context, date string) (*Snapshot, error) {
	var latest string
	row := s.db.QueryRowContext(ctx,
		"SELECT date FROM snapshot_commits WHERE date < ? ORDER BY date DESC LIMIT 1", date)
	if err := row.Scan(&latest); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	return s.load(ctx, latest, "")
}

// History returns the most recent lookbackDays snapshots containing records
// for the given source, oldest first. Short history is returned as-is, never
// an error.
func (s *Store) History(ctx context.Context, src string, lookbackDays int) ([]Snapshot, error) {
	if lookbackDays <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT date FROM snapshot_records WHERE source = ?
         ORDER BY date DESC LIMIT ?`, src, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("query snapshot history: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan history date: %w", err)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history dates: %w", err)
	}

	// Dates arrive newest first; reverse to oldest first.
	snapshots := make([]Snapshot, 0, len(dates))
	for i := len(dates) - 1; i >= 0; i-- {
		snap, err := s.load(ctx, dates[i], src)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			snapshots = append(snapshots, *snap)
		}
	}
	return snapshots, nil
}

// Cleanup removes snapshots older than keepDays. Returns the number of dates
// pruned.
func (s *Store) Cleanup(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Format(DateLayout)

	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshot_commits WHERE date < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruned row count: %w", err)
	}
	return pruned, nil
}

func (s *Store) load(ctx context.Context, date, src string) (*Snapshot, error) {
	var committedAt string
	row := s.db.QueryRowContext(ctx, "SELECT committed_at FROM snapshot_commits WHERE date = ?", date)
	if err := row.Scan(&committedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot commit: %w", err)
	}

	query := `SELECT source, external_id, title, url, rank, score, published_at, fetched_at
        FROM snapshot_records WHERE date = ?`
	args := []any{date}
	if src != "" {
		query += " AND source = ?"
		args = append(args, src)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load snapshot records: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{Date: date, Records: make(map[source.Key]source.Record)}
	snap.CommittedAt, _ = time.Parse(time.RFC3339Nano, committedAt)

	for rows.Next() {
		record, err := scanRecord(rows, date)
		if err != nil {
			return nil, err
		}
		snap.Records[record.Key()] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot records: %w", err)
	}
	return snap, nil
}

func scanRecord(rows *sql.Rows, date string) (source.Record, error) {
	var (
		record      source.Record
		url         sql.NullString
		rank        sql.NullInt64
		score       sql.NullFloat64
		publishedAt string
		fetchedAt   string
	)
	if err := rows.Scan(&record.Source, &record.ExternalID, &record.Title,
		&url, &rank, &score, &publishedAt, &fetchedAt); err != nil {
		return source.Record{}, fmt.Errorf("scan snapshot record for %s: %w", date, err)
	}
	if url.Valid {
		record.URL = url.String
	}
	if rank.Valid {
		v := int(rank.Int64)
		record.Rank = &v
	}
	if score.Valid {
		v := score.Float64
		record.Score = &v
	}
	record.PublishedAt, _ = time.Parse(time.RFC3339Nano, publishedAt)
	record.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetchedAt)
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}
