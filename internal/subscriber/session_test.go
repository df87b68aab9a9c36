package subscriber

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFilters(t *testing.T) {
	t.Parallel()

	s := NewSession(42)
	require.Nil(t, s.Filters)

	fs, changed := s.EnsureFilters()
	assert.True(t, changed)
	assert.Len(t, fs, len(Definitions))
	assert.Equal(t, Filter{Title: "Max. Price", Value: Any}, s.Filters[FilterMaxPrice])

	again, changed := s.EnsureFilters()
	assert.False(t, changed)
	assert.Equal(t, fs, again)

	partial := Session{Filters: FilterSet{FilterMinRAM: {Title: "Min. RAM", Value: "32"}}}
	fs, changed = partial.EnsureFilters()
	assert.True(t, changed)
	assert.Equal(t, "32", fs[FilterMinRAM].Value)
	assert.Equal(t, Any, fs[FilterCPUType].Value)
}

func TestSetFilter(t *testing.T) {
	t.Parallel()

	s := NewSession(1)
	require.NoError(t, s.SetFilter("MinRAM", "64"))
	assert.Equal(t, "64", s.Filters[FilterMinRAM].Value)
	require.NoError(t, s.SetFilter("cputype", "amd"))
	assert.Equal(t, "AMD", s.Filters[FilterCPUType].Value)

	assert.True(t, errors.Is(s.SetFilter("colour", "red"), ErrUnknownFilter))
	assert.True(t, errors.Is(s.SetFilter(FilterMinRAM, "3"), ErrInvalidValue))
}

func TestSessionID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "123:123", SessionID(123))
	id, err := ParseSessionID("123:123")
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)
	id, err = ParseSessionID("-100200")
	require.NoError(t, err)
	assert.Equal(t, int64(-100200), id)
	_, err = ParseSessionID("x:y")
	assert.Error(t, err)
}

func fixedQuota(max int) Quota {
	return Quota{MaxDaily: max, Now: func() time.Time {
		return time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	}}
}

func TestQuotaConsumeLastSearch(t *testing.T) {
	t.Parallel()

	q := fixedQuota(5)
	s := Session{SearchCount: 4, SearchDate: "2026-03-14"}
	allowed, remaining := q.CheckAndConsume(&s)
	assert.True(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 5, s.SearchCount)

	allowed, remaining = q.CheckAndConsume(&s)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 5, s.SearchCount)
}

func TestQuotaResetsStaleDay(t *testing.T) {
	t.Parallel()

	q := fixedQuota(5)
	for _, prior := range []int{0, 3, 5, 99} {
		s := Session{SearchCount: prior, SearchDate: "2026-03-13"}
		allowed, remaining := q.CheckAndConsume(&s)
		assert.True(t, allowed)
		assert.Equal(t, 4, remaining)
		assert.Equal(t, 1, s.SearchCount)
		assert.Equal(t, "2026-03-14", s.SearchDate)
	}
}

func TestQuotaPremium(t *testing.T) {
	t.Parallel()

	q := fixedQuota(1)
	s := Session{Premium: true, SearchCount: 7, SearchDate: "2026-03-14"}
	for i := 0; i < 3; i++ {
		allowed, remaining := q.CheckAndConsume(&s)
		assert.True(t, allowed)
		assert.Equal(t, Unlimited, remaining)
	}
	assert.Equal(t, 7, s.SearchCount)
	assert.Equal(t, Unlimited, q.Remaining(s))
}

func TestQuotaUsesUTCDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*3600)
	q := Quota{MaxDaily: 5, Now: func() time.Time { return time.Date(2026, 3, 15, 1, 0, 0, 0, loc) }}
	assert.Equal(t, "2026-03-14", q.Today())
}
