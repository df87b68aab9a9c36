package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/storage"
	"auctionwatch/internal/subscriber"
	logx "auctionwatch/pkg/logx"
)

var today = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, cfg Config, listings ...catalog.Listing) (*Service, storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	require.NoError(t, err)
	if listings != nil {
		require.NoError(t, st.SaveSnapshot(context.Background(), catalog.NewSnapshot(listings, today)))
	}
	q := subscriber.Quota{Now: func() time.Time { return today }}
	return New(cfg, q, st, st, logx.Nop(), nil), st
}

func listings(n int) []catalog.Listing {
	out := make([]catalog.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, catalog.Listing{Key: catalog.Key(rune('A' + i)), CPU: "Intel Xeon", RAMSize: catalog.Number(16 * (i + 1)), Price: 40})
	}
	return out
}

func TestSearchLastAllowed(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, Config{MaxDaily: 5, MaxResults: 3}, listings(5)...)
	ctx := context.Background()

	s := subscriber.NewSession(7)
	s.SearchCount = 4
	s.SearchDate = "2026-05-01"
	require.NoError(t, st.PutSession(ctx, s))

	res, err := svc.Search(ctx, 7, "carol")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 5, res.Total)
	assert.Len(t, res.Listings, 3)

	saved, ok, err := st.Session(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, saved.SearchCount)
	assert.Equal(t, "carol", saved.Username)
	assert.NotNil(t, saved.Filters, "filters are materialized on first use")

	res, err = svc.Search(ctx, 7, "")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Empty(t, res.Listings)
}

func TestSearchCreatesSessionAndAppliesFilters(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, Config{MaxDaily: 5}, listings(4)...)
	ctx := context.Background()

	res, err := svc.Search(ctx, 8, "")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Remaining)
	assert.Equal(t, 4, res.Total)

	sess, _, err := st.Session(ctx, 8)
	require.NoError(t, err)
	require.NoError(t, sess.SetFilter(subscriber.FilterMinRAM, "48"))
	require.NoError(t, st.PutSession(ctx, sess))

	res, err = svc.Search(ctx, 8, "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []catalog.Key{"C", "D"}, []catalog.Key{res.Listings[0].Key, res.Listings[1].Key})
}

func TestSearchPremium(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, Config{MaxDaily: 1, MaxResults: 1, PremiumMaxResults: 4}, listings(6)...)
	ctx := context.Background()

	p := subscriber.NewSession(9)
	p.Premium = true
	require.NoError(t, st.PutSession(ctx, p))

	for i := 0; i < 3; i++ {
		res, err := svc.Search(ctx, 9, "")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, subscriber.Unlimited, res.Remaining)
		assert.Len(t, res.Listings, 4)
	}
	saved, _, err := st.Session(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, saved.SearchCount)
}

func TestSearchWithoutSnapshot(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, Config{MaxDaily: 5})
	res, err := svc.Search(context.Background(), 1, "")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Zero(t, res.Total)
}

func TestPreviewDoesNotConsume(t *testing.T) {
	t.Parallel()

	svc, st := newService(t, Config{MaxDaily: 5}, listings(2)...)
	ctx := context.Background()

	res, err := svc.Preview(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 5, res.Remaining)

	_, ok, err := st.Session(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
