package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"60", "@every 1m0s"},
		{"90s", "@every 1m30s"},
		{"00:05", "@every 5m0s"},
		{"every:2m", "@every 2m0s"},
		{"interval:01:30", "@every 1h30m0s"},
		{"*/5 * * * *", "*/5 * * * *"},
		{"cron:0 */2 * * * *", "0 */2 * * * *"},
		{"@hourly", "@hourly"},
		{"@every 45s", "@every 45s"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSchedule(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseScheduleRejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "0", "-5s", "500ms", "soon", "00:75", "cron:", "* * *"} {
		_, err := ParseSchedule(in)
		assert.Error(t, err, in)
	}
}
