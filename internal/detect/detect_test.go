package detect

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"nightfeed/internal/snapshot"
	"nightfeed/internal/source"
)

func testOptions() Options {
	return Options{
		BaseWeight:          0.5,
		RankJumpThreshold:   5,
		RankedSlots:         30,
		ScoreSpikeThreshold: 0.5,
		RecurrenceWindow:    3,
		RecurrencePenalty:   0.25,
		MaxSignals:          20,
		SourcePriorities:    map[string]int{"steam_top_sellers": 10, "example_news": 3},
	}
}

func ranked(id string, rank int) source.Record {
	ts := time.Date(2026, 8, 17, 21, 30, 0, 0, time.UTC)
	return source.Record{
		Source:      "steam_top_sellers",
		ExternalID:  id,
		Title:       "Game " + id,
		Rank:        &rank,
		PublishedAt: ts,
		FetchedAt:   ts,
	}
}

func scored(id string, score float64) source.Record {
	ts := time.Date(2026, 8, 17, 21, 30, 0, 0, time.UTC)
	return source.Record{
		Source:      "example_news",
		ExternalID:  id,
		Title:       "Item " + id,
		Score:       &score,
		PublishedAt: ts,
		FetchedAt:   ts,
	}
}

func snapshotOf(date string, records ...source.Record) snapshot.Snapshot {
	snap := snapshot.Snapshot{Date: date, Records: make(map[source.Key]source.Record, len(records))}
	for _, r := range records {
		snap.Records[r.Key()] = r
	}
	return snap
}

func TestColdStartEverythingIsNewEntry(t *testing.T) {
	detector := New(testOptions())
	today := []source.Record{ranked("570", 1), ranked("730", 2), scored("a", 10)}

	bundle := detector.Detect("2026-08-17", today, nil, nil)
	if len(bundle.Signals) != 3 {
		t.Fatalf("expected every record to signal on cold start, got %d", len(bundle.Signals))
	}
	for _, sig := range bundle.Signals {
		if sig.Reason != ReasonNewEntry {
			t.Fatalf("expected NEW_ENTRY, got %s for %s", sig.Reason, sig.Record.ExternalID)
		}
	}
}

func TestNewEntryCompleteness(t *testing.T) {
	detector := New(testOptions())
	baseline := snapshotOf("2026-08-16", ranked("570", 1))
	today := []source.Record{ranked("570", 1), ranked("730", 5), ranked("440", 9)}

	bundle := detector.Detect("2026-08-17", today, &baseline, nil)

	newEntries := map[string]bool{}
	for _, sig := range bundle.Signals {
		if sig.Reason == ReasonNewEntry {
			newEntries[sig.Record.ExternalID] = true
		}
	}
	if len(newEntries) != 2 || !newEntries["730"] || !newEntries["440"] {
		t.Fatalf("expected exactly the baseline-absent records as NEW_ENTRY, got %v", newEntries)
	}
}

func TestRankJumpAndDropSymmetry(t *testing.T) {
	detector := New(testOptions())
	baseline := snapshotOf("2026-08-16", ranked("up", 10), ranked("down", 1))
	today := []source.Record{ranked("up", 1), ranked("down", 10)}

	bundle := detector.Detect("2026-08-17", today, &baseline, nil)
	if len(bundle.Signals) != 2 {
		t.Fatalf("expected both movers to signal, got %d", len(bundle.Signals))
	}

	byID := map[string]Signal{}
	for _, sig := range bundle.Signals {
		byID[sig.Record.ExternalID] = sig
	}
	up, down := byID["up"], byID["down"]
	if up.Reason != ReasonRankJump {
		t.Fatalf("expected RANK_JUMP for improver, got %s", up.Reason)
	}
	if down.Reason != ReasonRankDrop {
		t.Fatalf("expected RANK_DROP for faller, got %s", down.Reason)
	}
	if up.Delta == nil || down.Delta == nil || *up.Delta != 9 || *down.Delta != -9 {
		t.Fatalf("expected deltas +9/-9, got %v/%v", up.Delta, down.Delta)
	}
	if up.Salience != down.Salience {
		t.Fatalf("expected equal-magnitude salience, got %v vs %v", up.Salience, down.Salience)
	}
}

func TestRankJumpThresholdBoundary(t *testing.T) {
	detector := New(testOptions())
	baseline := snapshotOf("2026-08-16", ranked("small", 4), ranked("exact", 6))
	today := []source.Record{ranked("small", 1), ranked("exact", 1)}

	bundle := detector.Detect("2026-08-17", today, &baseline, nil)
	if len(bundle.Signals) != 1 {
		t.Fatalf("expected only the at-threshold mover, got %d signals", len(bundle.Signals))
	}
	if bundle.Signals[0].Record.ExternalID != "exact" {
		t.Fatalf("expected the delta-5 item to signal, got %s", bundle.Signals[0].Record.ExternalID)
	}
}

func TestScoreSpike(t *testing.T) {
	detector := New(testOptions())
	baseline := snapshotOf("2026-08-16", scored("hot", 10), scored("flat", 10))
	today := []source.Record{scored("hot", 20), scored("flat", 11)}

	bundle := detector.Detect("2026-08-17", today, &baseline, nil)
	if len(bundle.Signals) != 1 {
		t.Fatalf("expected one spike, got %d", len(bundle.Signals))
	}
	sig := bundle.Signals[0]
	if sig.Reason != ReasonScoreSpike || sig.Record.ExternalID != "hot" {
		t.Fatalf("unexpected signal %+v", sig)
	}
	if sig.Delta == nil || *sig.Delta != 1.0 {
		t.Fatalf("expected relative change 1.0, got %v", sig.Delta)
	}
}

// An item carried in every history snapshot is downgraded even when today
// brings its first qualifying rank jump: presence, not past signals, drives
// the recurrence window.
func TestRecurringDowngrade(t *testing.T) {
	detector := New(testOptions())
	baseline := snapshotOf("2026-08-16", ranked("repeat", 10))
	history := []snapshot.Snapshot{
		snapshotOf("2026-08-14", ranked("repeat", 12)),
		snapshotOf("2026-08-15", ranked("repeat", 11)),
		snapshotOf("2026-08-16", ranked("repeat", 10)),
	}
	today := []source.Record{ranked("repeat", 1)}

	bundle := detector.Detect("2026-08-17", today, &baseline, history)
	if len(bundle.Signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(bundle.Signals))
	}
	sig := bundle.Signals[0]
	if sig.Reason != ReasonRecurring {
		t.Fatalf("expected RECURRING downgrade, got %s", sig.Reason)
	}
	// (0.5 base + 9/30 rank move) * 0.25 penalty.
	if want := 0.2; math.Abs(sig.Salience-want) > 1e-9 {
		t.Fatalf("expected penalized salience %v, got %v", want, sig.Salience)
	}

	fresh := detector.Detect("2026-08-17", today, &baseline, history[1:])
	if fresh.Signals[0].Reason != ReasonRankJump {
		t.Fatalf("expected RANK_JUMP with short history, got %s", fresh.Signals[0].Reason)
	}
	if sig.Salience >= fresh.Signals[0].Salience {
		t.Fatalf("expected recurrence penalty to reduce salience: %v vs %v",
			sig.Salience, fresh.Signals[0].Salience)
	}
}

func TestDeterministicOrdering(t *testing.T) {
	detector := New(testOptions())
	baseline := snapshotOf("2026-08-16", ranked("a", 20), ranked("b", 20))
	today := []source.Record{
		ranked("b", 5), ranked("a", 5),
		scored("news-1", 1), scored("news-2", 1),
	}
	history := []snapshot.Snapshot{baseline}

	first := detector.Detect("2026-08-17", today, &baseline, history)
	second := detector.Detect("2026-08-17", today, &baseline, history)

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first bundle: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second bundle: %v", err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Fatal("expected byte-identical bundles for identical inputs")
	}

	// Equal salience and source resolves by external id ascending.
	var rankMovers []string
	for _, sig := range first.Signals {
		if sig.Reason == ReasonRankJump {
			rankMovers = append(rankMovers, sig.Record.ExternalID)
		}
	}
	if len(rankMovers) != 2 || rankMovers[0] != "a" || rankMovers[1] != "b" {
		t.Fatalf("expected lexical tie-break a before b, got %v", rankMovers)
	}
}

func TestPriorityTieBreak(t *testing.T) {
	detector := New(Options{
		BaseWeight:       0.5,
		MaxSignals:       10,
		SourcePriorities: map[string]int{"high": 10, "low": 1},
	})
	ts := time.Now().UTC()
	today := []source.Record{
		{Source: "low", ExternalID: "x", Title: "Low", PublishedAt: ts, FetchedAt: ts},
		{Source: "high", ExternalID: "x", Title: "High", PublishedAt: ts, FetchedAt: ts},
	}

	bundle := detector.Detect("2026-08-17", today, &snapshot.Snapshot{Date: "2026-08-16", Records: map[source.Key]source.Record{}}, nil)
	if len(bundle.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(bundle.Signals))
	}
	if bundle.Signals[0].Record.Source != "high" {
		t.Fatalf("expected higher-priority source first, got %s", bundle.Signals[0].Record.Source)
	}
}

func TestMaxSignalsTruncation(t *testing.T) {
	opts := testOptions()
	opts.MaxSignals = 3
	detector := New(opts)

	today := make([]source.Record, 0, 10)
	for i := 0; i < 10; i++ {
		today = append(today, ranked(fmt.Sprintf("%03d", i), i+1))
	}

	bundle := detector.Detect("2026-08-17", today, nil, nil)
	if len(bundle.Signals) != 3 {
		t.Fatalf("expected truncation to 3 signals, got %d", len(bundle.Signals))
	}
}

func TestEmptyInputProducesEmptyBundle(t *testing.T) {
	detector := New(testOptions())
	bundle := detector.Detect("2026-08-17", nil, nil, nil)
	if bundle.Date != "2026-08-17" {
		t.Fatalf("unexpected date %q", bundle.Date)
	}
	if len(bundle.Signals) != 0 {
		t.Fatalf("expected empty bundle, got %d signals", len(bundle.Signals))
	}
	if bundle.Signals == nil {
		t.Fatal("signals slice must be non-nil so the artifact serializes as []")
	}
}
