package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables honoured on top of the file, as deployed with
// docker-compose.
const (
	EnvToken         = "TELEGRAM_KEY"
	EnvChatID        = "TELEGRAM_CHATID"
	EnvTimeout       = "TIMEOUT"
	EnvMaxSearches   = "MAX_SEARCHES"
	EnvMaxResults    = "MAX_RESULTS"
	EnvAbsMaxResults = "ABS_MAX_RESULTS"
	EnvReplyTimeout  = "REPLY_TIMEOUT"
	EnvLogLevel      = "LOGLEVEL"
)

// ApplyEnv overlays the environment onto cfg. lookup defaults to
// os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	atoi := func(k, v string) (int, error) {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid integer %q", k, v)
		}
		return n, nil
	}

	if v, ok := get(EnvToken); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get(EnvChatID); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q", EnvChatID, v)
		}
		cfg.Dispatch.BroadcastChatID = id
	}
	if v, ok := get(EnvTimeout); ok {
		cfg.Watcher.Schedule = v
	}
	if v, ok := get(EnvMaxSearches); ok {
		n, err := atoi(EnvMaxSearches, v)
		if err != nil {
			return err
		}
		cfg.Search.MaxDaily = n
	}
	if v, ok := get(EnvMaxResults); ok {
		n, err := atoi(EnvMaxResults, v)
		if err != nil {
			return err
		}
		cfg.Search.MaxResults = n
	}
	if v, ok := get(EnvAbsMaxResults); ok {
		n, err := atoi(EnvAbsMaxResults, v)
		if err != nil {
			return err
		}
		cfg.Search.PremiumMaxResults = n
	}
	if v, ok := get(EnvReplyTimeout); ok {
		cfg.Telegram.ReplyTimeout = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	return nil
}
