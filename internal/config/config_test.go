package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nightfeed/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "nightfeed", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if !cfg.Steam.Enabled {
		t.Fatal("expected steam adapter enabled by default")
	}
	if cfg.Steam.MaxItems != 30 {
		t.Fatalf("unexpected steam max items: %d", cfg.Steam.MaxItems)
	}
	if cfg.ScriptWriter.Enabled {
		t.Fatal("expected script writer disabled by default")
	}
	if cfg.Detector.RankJumpThreshold != 5 {
		t.Fatalf("unexpected rank jump threshold: %d", cfg.Detector.RankJumpThreshold)
	}
	if cfg.Workflow.RunTime != "21:30" {
		t.Fatalf("unexpected run time: %q", cfg.Workflow.RunTime)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadParsesExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		"[detector]",
		"rank_jump_threshold = 8",
		"max_signals = 5",
		"[workflow]",
		`run_time = "06:15"`,
		`timezone = "UTC"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit file to resolve, got %q exists=%v", resolved, exists)
	}
	if cfg.Detector.RankJumpThreshold != 8 {
		t.Fatalf("unexpected threshold: %d", cfg.Detector.RankJumpThreshold)
	}
	if cfg.Detector.MaxSignals != 5 {
		t.Fatalf("unexpected max signals: %d", cfg.Detector.MaxSignals)
	}
	if cfg.Workflow.RunTime != "06:15" {
		t.Fatalf("unexpected run time: %q", cfg.Workflow.RunTime)
	}
	// Untouched sections keep defaults.
	if cfg.Detector.RecurrenceWindow != 3 {
		t.Fatalf("unexpected recurrence window: %d", cfg.Detector.RecurrenceWindow)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"base weight", func(c *config.Config) { c.Detector.BaseWeight = 1.5 }, "base_weight"},
		{"rank jump", func(c *config.Config) { c.Detector.RankJumpThreshold = 0 }, "rank_jump_threshold"},
		{"recurrence penalty", func(c *config.Config) { c.Detector.RecurrencePenalty = 0 }, "recurrence_penalty"},
		{"max signals", func(c *config.Config) { c.Detector.MaxSignals = 0 }, "max_signals"},
		{"run time", func(c *config.Config) { c.Workflow.RunTime = "25:00" }, "run_time"},
		{"writer key", func(c *config.Config) {
			c.ScriptWriter.Enabled = true
			c.ScriptWriter.Model = "m"
		}, "scriptwriter.api_key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParseRunTime(t *testing.T) {
	hour, minute, err := config.ParseRunTime("06:45")
	if err != nil {
		t.Fatalf("ParseRunTime failed: %v", err)
	}
	if hour != 6 || minute != 45 {
		t.Fatalf("unexpected parse result: %d:%d", hour, minute)
	}
	for _, bad := range []string{"", "24:00", "12:60", "noon", "1230"} {
		if _, _, err := config.ParseRunTime(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[detector]") {
		t.Fatal("sample config missing detector section")
	}
}
