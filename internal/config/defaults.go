package config

const (
	defaultDataDir     = "~/.local/share/nightfeed/data"
	defaultHandoffDir  = "~/.local/share/nightfeed/handoff"
	defaultLogDir      = "~/.local/share/nightfeed/logs"
	defaultSourcesFile = "~/.config/nightfeed/sources.yml"

	defaultSteamBaseURL    = "https://store.steampowered.com"
	defaultSteamMaxItems   = 30
	defaultSteamPriority   = 10
	defaultTrendingMax     = 20
	defaultFeedMaxPerFeed  = 50
	defaultRunTime         = "21:30"
	defaultTimezone        = "Europe/Warsaw"
	defaultMaxRetries      = 3
	defaultRetryBackoff    = 2
	defaultFetchTimeout    = 30
	defaultMaxConcurrent   = 4
	defaultMinSuccessful   = 1
	defaultRetentionDays   = 30
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultWriterBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultWriterTimeout   = 120
	defaultTargetMinutes   = 12
	defaultWebhookTimeout  = 10
	defaultDetectorWeight  = 0.5
	defaultRankJump        = 5
	defaultRankedSlots     = 30
	defaultScoreSpike      = 0.5
	defaultRecurrenceDays  = 3
	defaultRecurrenceScale = 0.25
	defaultMaxSignals      = 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			HandoffDir:  defaultHandoffDir,
			LogDir:      defaultLogDir,
			SourcesFile: defaultSourcesFile,
		},
		Steam: Steam{
			Enabled:  true,
			BaseURL:  defaultSteamBaseURL,
			MaxItems: defaultSteamMaxItems,
			Priority: defaultSteamPriority,
		},
		Trending: Trending{
			Enabled:  true,
			BaseURL:  defaultSteamBaseURL,
			MaxItems: defaultTrendingMax,
			Priority: defaultSteamPriority - 2,
		},
		Feeds: Feeds{
			Enabled:           true,
			MaxItemsPerSource: defaultFeedMaxPerFeed,
		},
		Detector: Detector{
			BaseWeight:          defaultDetectorWeight,
			RankJumpThreshold:   defaultRankJump,
			RankedSlots:         defaultRankedSlots,
			ScoreSpikeThreshold: defaultScoreSpike,
			RecurrenceWindow:    defaultRecurrenceDays,
			RecurrencePenalty:   defaultRecurrenceScale,
			MaxSignals:          defaultMaxSignals,
		},
		Workflow: Workflow{
			RunTime:               defaultRunTime,
			Timezone:              defaultTimezone,
			MaxRetries:            defaultMaxRetries,
			RetryBackoffSeconds:   defaultRetryBackoff,
			FetchTimeoutSeconds:   defaultFetchTimeout,
			MaxConcurrentFetches:  defaultMaxConcurrent,
			MinSuccessfulSources:  defaultMinSuccessful,
			SnapshotRetentionDays: defaultRetentionDays,
		},
		ScriptWriter: ScriptWriter{
			BaseURL:               defaultWriterBaseURL,
			TimeoutSeconds:        defaultWriterTimeout,
			TargetDurationMinutes: defaultTargetMinutes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultWebhookTimeout,
			RunCompleted:   true,
			RunFailed:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
