package handoff

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nightfeed/internal/detect"
	"nightfeed/internal/source"
)

func sampleBundle() detect.Bundle {
	rank := 1
	delta := 9.0
	ts := time.Date(2026, 8, 17, 21, 30, 0, 0, time.UTC)
	return detect.Bundle{
		Date: "2026-08-17",
		Signals: []detect.Signal{
			{
				Record: source.Record{
					Source:      "steam_top_sellers",
					ExternalID:  "570",
					Title:       "Dota 2",
					URL:         "https://store.example/app/570/",
					Rank:        &rank,
					PublishedAt: ts,
					FetchedAt:   ts,
				},
				Reason:   detect.ReasonRankJump,
				Salience: 0.8,
				Delta:    &delta,
			},
		},
	}
}

func TestWriteAndReadBundle(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()
	bundle := sampleBundle()

	path, err := store.WriteBundle(ctx, bundle)
	if err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	if filepath.Base(path) != "2026-08-17.json" {
		t.Fatalf("unexpected artifact name %q", path)
	}

	loaded, err := store.ReadBundle(ctx, "2026-08-17")
	if err != nil {
		t.Fatalf("ReadBundle: %v", err)
	}
	if loaded == nil || loaded.Date != bundle.Date {
		t.Fatalf("expected round-tripped bundle, got %+v", loaded)
	}
	if len(loaded.Signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(loaded.Signals))
	}
	sig := loaded.Signals[0]
	if sig.Reason != detect.ReasonRankJump || sig.Salience != 0.8 {
		t.Fatalf("signal fields did not survive round trip: %+v", sig)
	}
	if sig.Delta == nil || *sig.Delta != 9.0 {
		t.Fatalf("expected delta 9.0, got %v", sig.Delta)
	}
	if sig.Record.Rank == nil || *sig.Record.Rank != 1 {
		t.Fatalf("expected rank 1, got %v", sig.Record.Rank)
	}
}

func TestReadBundleMissing(t *testing.T) {
	store := NewFSStore(t.TempDir())

	bundle, err := store.ReadBundle(context.Background(), "2026-08-17")
	if err != nil {
		t.Fatalf("ReadBundle: %v", err)
	}
	if bundle != nil {
		t.Fatalf("expected nil for absent artifact, got %+v", bundle)
	}
}

func TestWriteBundleLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store := NewFSStore(root)

	if _, err := store.WriteBundle(context.Background(), sampleBundle()); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "signals"))
	if err != nil {
		t.Fatalf("read signals dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the artifact, got %d entries", len(entries))
	}
}
