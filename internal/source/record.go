package source

import (
	"context"
	"strings"
	"time"
)

// RawItem is a source-specific payload as fetched. It is discarded after
// normalization.
type RawItem struct {
	ID        string
	Title     string
	URL       string
	Rank      *int
	Score     *float64
	Published time.Time
}

// Record is the normalized shape every adapter produces. The pair
// (Source, ExternalID) is the stable identity used across runs.
type Record struct {
	Source      string    `json:"source"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Rank        *int      `json:"rank,omitempty"`
	Score       *float64  `json:"score,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Key identifies a record across snapshots.
type Key struct {
	Source     string
	ExternalID string
}

// Key returns the record's cross-run identity.
func (r Record) Key() Key {
	return Key{Source: r.Source, ExternalID: r.ExternalID}
}

// Adapter is the capability set every source implements. Fetch reports
// upstream failures; Normalize is total and signals an unusable raw item by
// returning false. Adapters hold no shared mutable state so they are safe to
// invoke concurrently.
type Adapter interface {
	Name() string
	Priority() int
	Fetch(ctx context.Context) ([]RawItem, error)
	Normalize(item RawItem) (Record, bool)
}

// Collect fetches from an adapter and normalizes the results. Raw items that
// cannot be normalized are dropped and counted, never propagated as errors.
// Records are deduplicated by ExternalID within the fetch, first occurrence
// wins.
func Collect(ctx context.Context, adapter Adapter) ([]Record, int, error) {
	raw, err := adapter.Fetch(ctx)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]struct{}, len(raw))
	records := make([]Record, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		record, ok := adapter.Normalize(item)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[record.ExternalID]; dup {
			continue
		}
		seen[record.ExternalID] = struct{}{}
		records = append(records, record)
	}
	return records, dropped, nil
}

func cleanTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

func intPtr(v int) *int {
	return &v
}
