package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Source   SourceConfig   `json:"source"`
	Watcher  WatcherConfig  `json:"watcher"`
	Search   SearchConfig   `json:"search"`
	Dispatch DispatchConfig `json:"dispatch"`
	Storage  StorageConfig  `json:"storage"`
	Debug    DebugConfig    `json:"debug,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// ReplyTimeout is how long command replies stay in the chat.
	// "0s" keeps them.
	ReplyTimeout string `json:"reply_timeout,omitempty"`
	// BotUsername overrides the name shown in broadcast headers. Defaults to
	// the account reported by Telegram.
	BotUsername string `json:"bot_username,omitempty"`
	ChannelURL  string `json:"channel_url,omitempty"`
	AuctionURL  string `json:"auction_url,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type SourceConfig struct {
	URL       string `json:"url,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// WatcherConfig controls the polling schedule.
//
// Schedule accepts a duration ("60s"), plain seconds ("60"), a cron
// expression ("*/5 * * * *") or a descriptor ("@hourly").
type WatcherConfig struct {
	Schedule    string `json:"schedule"`
	Timezone    string `json:"timezone,omitempty"`
	TickTimeout string `json:"tick_timeout,omitempty"`
	RunOnStart  *bool  `json:"run_on_start,omitempty"`
}

type SearchConfig struct {
	MaxDaily          int `json:"max_daily"`
	MaxResults        int `json:"max_results"`
	PremiumMaxResults int `json:"premium_max_results"`
}

type DispatchConfig struct {
	BroadcastChatID int64  `json:"broadcast_chat_id"`
	ThreadID        int    `json:"thread_id,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	SendTimeout     string `json:"send_timeout,omitempty"`
}

// StorageConfig selects the persistence backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data" }
type StorageConfig struct {
	Driver       string `json:"driver"`
	Path         string `json:"path"`
	SnapshotFile string `json:"snapshot_file,omitempty"`
	SessionFile  string `json:"session_file,omitempty"`
	Compress     bool   `json:"compress,omitempty"`
	BusyTimeout  string `json:"busy_timeout,omitempty"` // sqlite
}

// DebugConfig controls the metrics/health/pprof HTTP server.
//
// A non-loopback addr needs a token or allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:9108"
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
}

// Default is the configuration used for fields a file leaves out.
func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			PollTimeout:  "10s",
			ReplyTimeout: "5s",
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Watcher: WatcherConfig{Schedule: "60s"},
		Search: SearchConfig{
			MaxDaily:          5,
			MaxResults:        3,
			PremiumMaxResults: 10,
		},
		Storage: StorageConfig{Driver: "file", Path: "data"},
	}
}
