package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFormatChatLine(t *testing.T) {
	line := []byte(`{"level":"warn","time":"2026-01-01T00:00:00Z","message":"tick failed","stage":"fetch","comp":"watcher"}` + "\n")
	got := formatChatLine(line)
	assert.Equal(t, "[WARN] tick failed\n- comp=watcher\n- stage=fetch", got)
}

func TestFormatChatLineNotJSON(t *testing.T) {
	got := formatChatLine([]byte("  plain text \n"))
	assert.Equal(t, "plain text", got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	long := strings.Repeat("x", 50)
	got := truncate(long, 20)
	assert.Len(t, got, 20)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in, zerolog.InfoLevel), in)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Info("dropped", String("k", "v"))
	assert.False(t, Nop().IsZero())
}
