package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/config"
	"auctionwatch/internal/message"
	"auctionwatch/internal/source"
)

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	require.NoError(t, validate(&cfg))

	cfg.Watcher.Schedule = "every now and then"
	assert.ErrorContains(t, validate(&cfg), "watcher.schedule")

	cfg = config.Default()
	cfg.Watcher.Timezone = "Mars/Olympus"
	assert.ErrorContains(t, validate(&cfg), "watcher.timezone")
}

func TestMappingDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Telegram.ReplyTimeout = "7"
	cfg.Dispatch.RetryBase = "250ms"
	cfg.Source.Timeout = ""

	assert.Equal(t, 10*time.Second, mapTelegram(&cfg).PollTimeout)
	assert.Equal(t, 7*time.Second, mapBot(&cfg).ReplyTimeout)
	assert.Equal(t, 250*time.Millisecond, mapDispatch(&cfg).RetryBase)
	assert.Equal(t, source.DefaultTimeout, mapSource(&cfg).Timeout)
	assert.True(t, mapWatcher(&cfg).RunOnStart)
	assert.Equal(t, 5, mapSearch(&cfg).MaxDaily)

	off := false
	cfg.Watcher.RunOnStart = &off
	assert.False(t, mapWatcher(&cfg).RunOnStart)
}

func TestMapMessagePrefersConfiguredName(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.Equal(t, "fromtelegram", mapMessage(&cfg, "fromtelegram").BotUsername)
	cfg.Telegram.BotUsername = "@configured"
	assert.Equal(t, "@configured", mapMessage(&cfg, "fromtelegram").BotUsername)
}

func TestComposerRefSwaps(t *testing.T) {
	t.Parallel()

	r := &composerRef{}
	r.v.Store(message.NewComposer(message.Options{BotUsername: "one"}))
	l := catalog.Listing{Key: "1", CPU: "Intel", Price: 40}
	assert.Contains(t, r.Broadcast(l), "@one")

	r.v.Store(message.NewComposer(message.Options{BotUsername: "two"}))
	assert.Contains(t, r.Broadcast(l), "@two")
}

func TestNewRejectsMissingToken(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), filepath.Join(t.TempDir(), "none.json"), Options{
		Env:     func(string) (string, bool) { return "", false },
		Offline: true,
	})
	assert.ErrorContains(t, err, "telegram.token")
}
