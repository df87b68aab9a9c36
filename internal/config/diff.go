package config

import (
	"sort"

	logx "auctionwatch/pkg/logx"
)

// SummarizeChange returns the changed sections and safe attrs for logging.
// Tokens are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	o, n := oldCfg.Telegram, newCfg.Telegram
	if o.Token != n.Token || o.PollTimeout != n.PollTimeout || o.ReplyTimeout != n.ReplyTimeout ||
		o.BotUsername != n.BotUsername || o.ChannelURL != n.ChannelURL || o.AuctionURL != n.AuctionURL {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", o.Token != n.Token),
			logx.String("telegram.reply_timeout", n.ReplyTimeout),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Source != newCfg.Source {
		changed = append(changed, "source")
		attrs = append(attrs, logx.String("source.url", newCfg.Source.URL))
	}
	if !sameWatcher(oldCfg.Watcher, newCfg.Watcher) {
		changed = append(changed, "watcher")
		attrs = append(attrs,
			logx.String("watcher.schedule", newCfg.Watcher.Schedule),
			logx.String("watcher.timezone", newCfg.Watcher.Timezone),
		)
	}
	if oldCfg.Search != newCfg.Search {
		changed = append(changed, "search")
		attrs = append(attrs,
			logx.Int("search.max_daily", newCfg.Search.MaxDaily),
			logx.Int("search.max_results", newCfg.Search.MaxResults),
		)
	}
	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.Bool("dispatch.broadcast_set", newCfg.Dispatch.BroadcastChatID != 0),
			logx.Int("dispatch.rate_per_sec", newCfg.Dispatch.RatePerSec),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	od, nd := oldCfg.Debug, newCfg.Debug
	if od != nd {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", nd.Enabled),
			logx.String("debug.addr", nd.Addr),
			logx.Bool("debug.token_set", nd.Token != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func sameWatcher(a, b WatcherConfig) bool {
	if a.Schedule != b.Schedule || a.Timezone != b.Timezone || a.TickTimeout != b.TickTimeout {
		return false
	}
	return a.StartsImmediately() == b.StartsImmediately()
}

// StartsImmediately reports whether a tick runs right after start. Default
// true.
func (w WatcherConfig) StartsImmediately() bool {
	return w.RunOnStart == nil || *w.RunOnStart
}
