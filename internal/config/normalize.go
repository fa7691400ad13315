package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSteam()
	c.normalizeWorkflow()
	c.normalizeScriptWriter()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HandoffDir) == "" {
		c.Paths.HandoffDir = defaultHandoffDir
	}
	if c.Paths.HandoffDir, err = expandPath(c.Paths.HandoffDir); err != nil {
		return fmt.Errorf("paths.handoff_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SourcesFile) != "" {
		if c.Paths.SourcesFile, err = expandPath(c.Paths.SourcesFile); err != nil {
			return fmt.Errorf("paths.sources_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeSteam() {
	c.Steam.BaseURL = strings.TrimRight(strings.TrimSpace(c.Steam.BaseURL), "/")
	if c.Steam.BaseURL == "" {
		c.Steam.BaseURL = defaultSteamBaseURL
	}
	if c.Steam.MaxItems <= 0 {
		c.Steam.MaxItems = defaultSteamMaxItems
	}
	c.Trending.BaseURL = strings.TrimRight(strings.TrimSpace(c.Trending.BaseURL), "/")
	if c.Trending.BaseURL == "" {
		c.Trending.BaseURL = c.Steam.BaseURL
	}
	if c.Trending.MaxItems <= 0 {
		c.Trending.MaxItems = defaultTrendingMax
	}
	if c.Feeds.MaxItemsPerSource <= 0 {
		c.Feeds.MaxItemsPerSource = defaultFeedMaxPerFeed
	}
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.RunTime = strings.TrimSpace(c.Workflow.RunTime)
	if c.Workflow.RunTime == "" {
		c.Workflow.RunTime = defaultRunTime
	}
	c.Workflow.Timezone = strings.TrimSpace(c.Workflow.Timezone)
	if c.Workflow.Timezone == "" {
		c.Workflow.Timezone = defaultTimezone
	}
	if c.Workflow.MaxRetries <= 0 {
		c.Workflow.MaxRetries = defaultMaxRetries
	}
	if c.Workflow.RetryBackoffSeconds <= 0 {
		c.Workflow.RetryBackoffSeconds = defaultRetryBackoff
	}
	if c.Workflow.FetchTimeoutSeconds <= 0 {
		c.Workflow.FetchTimeoutSeconds = defaultFetchTimeout
	}
	if c.Workflow.MaxConcurrentFetches <= 0 {
		c.Workflow.MaxConcurrentFetches = defaultMaxConcurrent
	}
	if c.Workflow.MinSuccessfulSources <= 0 {
		c.Workflow.MinSuccessfulSources = defaultMinSuccessful
	}
	if c.Workflow.SnapshotRetentionDays <= 0 {
		c.Workflow.SnapshotRetentionDays = defaultRetentionDays
	}
}

func (c *Config) normalizeScriptWriter() {
	c.ScriptWriter.APIKey = strings.TrimSpace(c.ScriptWriter.APIKey)
	c.ScriptWriter.BaseURL = strings.TrimSpace(c.ScriptWriter.BaseURL)
	if c.ScriptWriter.BaseURL == "" {
		c.ScriptWriter.BaseURL = defaultWriterBaseURL
	}
	c.ScriptWriter.Model = strings.TrimSpace(c.ScriptWriter.Model)
	if c.ScriptWriter.TimeoutSeconds <= 0 {
		c.ScriptWriter.TimeoutSeconds = defaultWriterTimeout
	}
	if c.ScriptWriter.TargetDurationMinutes <= 0 {
		c.ScriptWriter.TargetDurationMinutes = defaultTargetMinutes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultWebhookTimeout
	}
}
