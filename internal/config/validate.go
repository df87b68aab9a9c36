package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	logx "auctionwatch/pkg/logx"
)

// Validate checks everything that can be checked without other packages.
// The app adds schedule parsing on top through the manager's validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required (or set "+EnvToken+")"))
	}
	if lvl := cfg.Logging.Level; lvl != "" && logx.ParseLevel(lvl, zerolog.NoLevel) == zerolog.NoLevel {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", lvl))
	}
	if cfg.Logging.Telegram.Enabled && cfg.Logging.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("logging.telegram.chat_id is required when enabled"))
	}
	if strings.TrimSpace(cfg.Watcher.Schedule) == "" {
		errs = append(errs, errors.New("watcher.schedule is required"))
	}
	if cfg.Search.MaxDaily < 0 {
		errs = append(errs, errors.New("search.max_daily must be >= 0"))
	}
	if cfg.Search.MaxResults < 0 || cfg.Search.PremiumMaxResults < 0 {
		errs = append(errs, errors.New("search result limits must be >= 0"))
	}
	if cfg.Dispatch.RatePerSec < 0 || cfg.Dispatch.RetryMax < 0 {
		errs = append(errs, errors.New("dispatch.rate_per_sec and dispatch.retry_max must be >= 0"))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	durations := map[string]string{
		"telegram.poll_timeout":    cfg.Telegram.PollTimeout,
		"telegram.reply_timeout":   cfg.Telegram.ReplyTimeout,
		"source.timeout":           cfg.Source.Timeout,
		"watcher.tick_timeout":     cfg.Watcher.TickTimeout,
		"dispatch.retry_base":      cfg.Dispatch.RetryBase,
		"dispatch.retry_max_delay": cfg.Dispatch.RetryMaxDelay,
		"dispatch.send_timeout":    cfg.Dispatch.SendTimeout,
		"storage.busy_timeout":     cfg.Storage.BusyTimeout,
		"debug.read_timeout":       cfg.Debug.ReadTimeout,
		"debug.write_timeout":      cfg.Debug.WriteTimeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
