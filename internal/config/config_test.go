package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParseJSONOverDefaults(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "config.json", `{
		"telegram": {"token": "abc"},
		"watcher": {"schedule": "2m"},
		"search": {"max_daily": 7, "max_results": 3, "premium_max_results": 10}
	}`)
	m := NewManager(p)
	m.SetEnv(noEnv)
	cfg, err := m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Telegram.Token)
	assert.Equal(t, "2m", cfg.Watcher.Schedule)
	assert.Equal(t, 7, cfg.Search.MaxDaily)
	assert.Equal(t, "5s", cfg.Telegram.ReplyTimeout)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Same(t, cfg, m.Get())
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "config.yaml", "telegram:\n  token: abc\nstorage:\n  driver: sqlite\n  path: /var/lib/aw\n")
	m := NewManager(p)
	m.SetEnv(noEnv)
	cfg, err := m.Parse()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/aw", cfg.Storage.Path)
}

func TestParseRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, "a.json", `{"telegram":{"token":"x"},"pprof":{}}`))
	m.SetEnv(noEnv)
	_, err := m.Parse()
	assert.Error(t, err)

	m = NewManager(writeFile(t, "b.json", `{"telegram":{"token":"x"}} {}`))
	m.SetEnv(noEnv)
	_, err = m.Parse()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()

	m := NewManager(filepath.Join(t.TempDir(), "missing.json"))
	m.SetEnv(envOf(map[string]string{
		EnvToken:         "tok",
		EnvChatID:        "-1001234",
		EnvTimeout:       "90",
		EnvMaxSearches:   "2",
		EnvMaxResults:    "4",
		EnvAbsMaxResults: "12",
		EnvReplyTimeout:  "8",
		EnvLogLevel:      "debug",
	}))
	cfg, err := m.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Telegram.Token)
	assert.Equal(t, int64(-1001234), cfg.Dispatch.BroadcastChatID)
	assert.Equal(t, "90", cfg.Watcher.Schedule)
	assert.Equal(t, 2, cfg.Search.MaxDaily)
	assert.Equal(t, 4, cfg.Search.MaxResults)
	assert.Equal(t, 12, cfg.Search.PremiumMaxResults)
	assert.Equal(t, 8*time.Second, MustDuration(cfg.Telegram.ReplyTimeout, 0))
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvRejectsGarbage(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Error(t, ApplyEnv(&cfg, envOf(map[string]string{EnvChatID: "channel"})))
	assert.Error(t, ApplyEnv(&cfg, envOf(map[string]string{EnvMaxSearches: "five"})))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token")

	cfg.Telegram.Token = "x"
	require.NoError(t, Validate(&cfg))

	bad := cfg
	bad.Logging.Level = "loud"
	bad.Storage.Driver = "postgres"
	bad.Dispatch.RetryBase = "soon"
	err = Validate(&bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "dispatch.retry_base")
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationField("x", "45")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	d, err = ParseDurationField("x", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDurationField("x", "-1s")
	assert.Error(t, err)

	assert.Equal(t, time.Minute, MustDuration("bogus", time.Minute))
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	a := Default()
	a.Telegram.Token = "old-secret"
	b := a
	b.Telegram.Token = "new-secret"
	b.Watcher.Schedule = "5m"

	changed, attrs := SummarizeChange(&a, &b)
	assert.Equal(t, []string{"telegram", "watcher"}, changed)
	assert.NotEmpty(t, attrs)

	changed, _ = SummarizeChange(&a, &a)
	assert.Empty(t, changed)
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "config.json", `{"telegram":{"token":"a"}}`)
	m := NewManager(p)
	m.SetEnv(noEnv)
	m.debounce = 20 * time.Millisecond
	_, err := m.Load(context.Background())
	require.NoError(t, err)

	sub := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	// Invalid: missing token after no env. Must not publish.
	require.NoError(t, os.WriteFile(p, []byte(`{"telegram":{"token":""}}`), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "a", m.Get().Telegram.Token)

	require.NoError(t, os.WriteFile(p, []byte(`{"telegram":{"token":"b"}}`), 0o600))
	select {
	case cfg := <-sub:
		assert.Equal(t, "b", cfg.Telegram.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}

	cancel()
	<-done
	m.Unsubscribe(sub)
}
