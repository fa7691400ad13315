package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for pipeline state and artifacts.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	HandoffDir  string `toml:"handoff_dir"`
	LogDir      string `toml:"log_dir"`
	SourcesFile string `toml:"sources_file"`
}

// Steam contains configuration for the Steam top-sellers ranking adapter.
type Steam struct {
	Enabled  bool   `toml:"enabled"`
	BaseURL  string `toml:"base_url"`
	MaxItems int    `toml:"max_items"`
	Priority int    `toml:"priority"`
}

// Trending contains configuration for the Steam new-and-trending adapter.
type Trending struct {
	Enabled  bool   `toml:"enabled"`
	BaseURL  string `toml:"base_url"`
	MaxItems int    `toml:"max_items"`
	Priority int    `toml:"priority"`
}

// Feeds contains shared configuration for RSS feed adapters. Individual feeds
// are declared in the YAML sources file referenced by paths.sources_file.
type Feeds struct {
	Enabled           bool `toml:"enabled"`
	MaxItemsPerSource int  `toml:"max_items_per_source"`
}

// Detector contains the novelty detection tunables.
type Detector struct {
	BaseWeight          float64 `toml:"base_weight"`
	RankJumpThreshold   int     `toml:"rank_jump_threshold"`
	RankedSlots         int     `toml:"ranked_slots"`
	ScoreSpikeThreshold float64 `toml:"score_spike_threshold"`
	RecurrenceWindow    int     `toml:"recurrence_window"`
	RecurrencePenalty   float64 `toml:"recurrence_penalty"`
	MaxSignals          int     `toml:"max_signals"`
}

// Workflow contains run scheduling, retry, and concurrency settings.
type Workflow struct {
	RunTime               string `toml:"run_time"`
	Timezone              string `toml:"timezone"`
	MaxRetries            int    `toml:"max_retries"`
	RetryBackoffSeconds   int    `toml:"retry_backoff_seconds"`
	FetchTimeoutSeconds   int    `toml:"fetch_timeout_seconds"`
	MaxConcurrentFetches  int    `toml:"max_concurrent_fetches"`
	MinSuccessfulSources  int    `toml:"min_successful_sources"`
	SnapshotRetentionDays int    `toml:"snapshot_retention_days"`
}

// ScriptWriter contains connection settings for the downstream script-writing
// collaborator. The pipeline only hands a signal bundle to it; narrative
// quality is the collaborator's concern.
type ScriptWriter struct {
	Enabled               bool   `toml:"enabled"`
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	Model                 string `toml:"model"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	TargetDurationMinutes int    `toml:"target_duration_minutes"`
}

// Notifications contains webhook notification settings.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	RunFailed      bool   `toml:"run_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Night-Feed.
//
// Configuration sections by subsystem:
//   - Paths: data, handoff, and log directories plus the feed source list
//   - Steam / Trending / Feeds: source adapter settings
//   - Detector: novelty detection thresholds
//   - Workflow: daily schedule, retries, concurrency, retention
//   - ScriptWriter: downstream collaborator connection
//   - Notifications: webhook settings for terminal run states
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Steam         Steam         `toml:"steam"`
	Trending      Trending      `toml:"trending"`
	Feeds         Feeds         `toml:"feeds"`
	Detector      Detector      `toml:"detector"`
	Workflow      Workflow      `toml:"workflow"`
	ScriptWriter  ScriptWriter  `toml:"scriptwriter"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/nightfeed/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("nightfeed.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.HandoffDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
