package services

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-123")
	ctx = WithStage(ctx, "collecting")
	ctx = WithSource(ctx, "steam_top_sellers")

	if id, ok := RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("run id round trip failed: %q %v", id, ok)
	}
	if stage, ok := StageFromContext(ctx); !ok || stage != "collecting" {
		t.Fatalf("stage round trip failed: %q %v", stage, ok)
	}
	if source, ok := SourceFromContext(ctx); !ok || source != "steam_top_sellers" {
		t.Fatalf("source round trip failed: %q %v", source, ok)
	}
}

func TestContextEmptyValuesIgnored(t *testing.T) {
	ctx := context.Background()
	if got := WithRunID(ctx, ""); got != ctx {
		t.Fatal("empty run id should not allocate a new context")
	}
	if _, ok := StageFromContext(ctx); ok {
		t.Fatal("expected no stage on bare context")
	}
	if _, ok := SourceFromContext(ctx); ok {
		t.Fatal("expected no source on bare context")
	}
}
