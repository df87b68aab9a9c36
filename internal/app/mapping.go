package app

import (
	"fmt"
	"strings"
	"time"

	"auctionwatch/internal/bot"
	"auctionwatch/internal/config"
	"auctionwatch/internal/dispatch"
	"auctionwatch/internal/message"
	"auctionwatch/internal/observability"
	"auctionwatch/internal/search"
	"auctionwatch/internal/source"
	"auctionwatch/internal/storage"
	"auctionwatch/internal/transport/telegram"
	"auctionwatch/internal/watcher"
	logx "auctionwatch/pkg/logx"
)

// validate is the manager hook for checks that need other packages.
func validate(cfg *config.Config) error {
	if _, err := watcher.ParseSchedule(cfg.Watcher.Schedule); err != nil {
		return fmt.Errorf("watcher.schedule: %w", err)
	}
	if tz := strings.TrimSpace(cfg.Watcher.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("watcher.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

func mapTelegram(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:        cfg.Telegram.Token,
		PollTimeout:  config.MustDuration(cfg.Telegram.PollTimeout, 10*time.Second),
		UpdateBuffer: 256,
	}
}

func mapLogging(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     l.Telegram.ChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func mapStorage(cfg *config.Config) storage.Config {
	s := cfg.Storage
	return storage.Config{
		Driver:       s.Driver,
		Path:         s.Path,
		SnapshotFile: s.SnapshotFile,
		SessionFile:  s.SessionFile,
		Compress:     s.Compress,
		BusyTimeout:  config.MustDuration(s.BusyTimeout, 5*time.Second),
	}
}

func mapSource(cfg *config.Config) source.Config {
	return source.Config{
		URL:       cfg.Source.URL,
		Timeout:   config.MustDuration(cfg.Source.Timeout, source.DefaultTimeout),
		UserAgent: cfg.Source.UserAgent,
	}
}

func mapWatcher(cfg *config.Config) watcher.Config {
	w := cfg.Watcher
	return watcher.Config{
		Schedule:    w.Schedule,
		Timezone:    w.Timezone,
		TickTimeout: config.MustDuration(w.TickTimeout, 0),
		RunOnStart:  w.StartsImmediately(),
	}
}

func mapSearch(cfg *config.Config) search.Config {
	return search.Config{
		MaxDaily:          cfg.Search.MaxDaily,
		MaxResults:        cfg.Search.MaxResults,
		PremiumMaxResults: cfg.Search.PremiumMaxResults,
	}
}

func mapDispatch(cfg *config.Config) dispatch.Config {
	d := cfg.Dispatch
	return dispatch.Config{
		BroadcastChatID: d.BroadcastChatID,
		ThreadID:        d.ThreadID,
		RatePerSec:      d.RatePerSec,
		RetryMax:        d.RetryMax,
		RetryBase:       config.MustDuration(d.RetryBase, 0),
		RetryMaxDelay:   config.MustDuration(d.RetryMaxDelay, 0),
		SendTimeout:     config.MustDuration(d.SendTimeout, 0),
	}
}

func mapBot(cfg *config.Config) bot.Config {
	return bot.Config{ReplyTimeout: config.MustDuration(cfg.Telegram.ReplyTimeout, 0)}
}

// mapMessage prefers the configured username over the one Telegram reports.
func mapMessage(cfg *config.Config, username string) message.Options {
	if u := strings.TrimSpace(cfg.Telegram.BotUsername); u != "" {
		username = u
	}
	return message.Options{
		BotUsername: username,
		AuctionURL:  cfg.Telegram.AuctionURL,
		ChannelURL:  cfg.Telegram.ChannelURL,
	}
}

func mapDebug(cfg *config.Config) observability.ServerConfig {
	d := cfg.Debug
	return observability.ServerConfig{
		Enabled:       d.Enabled,
		Addr:          d.Addr,
		Token:         d.Token,
		AllowInsecure: d.AllowInsecure,
		Pprof:         d.Pprof,
		ReadTimeout:   config.MustDuration(d.ReadTimeout, 10*time.Second),
		WriteTimeout:  config.MustDuration(d.WriteTimeout, 0),
	}
}
