package testsupport

import (
	"testing"

	"nightfeed/internal/config"
)

// NewConfig returns a validated configuration rooted in per-test temp
// directories, with fast retry and timeout settings suited to tests.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = base + "/data"
	cfg.Paths.HandoffDir = base + "/handoff"
	cfg.Paths.LogDir = base + "/logs"
	cfg.Paths.SourcesFile = base + "/sources.yml"

	cfg.Workflow.MaxRetries = 1
	cfg.Workflow.RetryBackoffSeconds = 0
	cfg.Workflow.FetchTimeoutSeconds = 5
	cfg.Workflow.MinSuccessfulSources = 1
	cfg.ScriptWriter.Enabled = false
	cfg.Notifications.WebhookURL = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("create test directories: %v", err)
	}
	return &cfg
}
