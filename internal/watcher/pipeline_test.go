package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/dispatch"
	"auctionwatch/internal/message"
	"auctionwatch/internal/source"
	"auctionwatch/internal/storage"
	"auctionwatch/internal/subscriber"
	"auctionwatch/internal/transport"
	logx "auctionwatch/pkg/logx"
)

const channel = int64(-100)

type fakeFetcher struct {
	mu   sync.Mutex
	snap catalog.Snapshot
	err  error
}

func (f *fakeFetcher) set(ls ...catalog.Listing) {
	f.mu.Lock()
	f.snap = catalog.NewSnapshot(ls, time.Now())
	f.err = nil
	f.mu.Unlock()
}

func (f *fakeFetcher) Fetch(ctx context.Context) (catalog.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

type memSnapshots struct {
	mu      sync.Mutex
	snap    *catalog.Snapshot
	loadErr error
	saveErr error
	saves   int
}

func (m *memSnapshots) LoadSnapshot(ctx context.Context) (catalog.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return catalog.Snapshot{}, m.loadErr
	}
	if m.snap == nil {
		return catalog.Snapshot{}, storage.ErrNotFound
	}
	return *m.snap, nil
}

func (m *memSnapshots) SaveSnapshot(ctx context.Context, s catalog.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.snap = &s
	return nil
}

type memSessions struct {
	list []subscriber.Session
	err  error
}

func (m memSessions) Sessions(ctx context.Context) ([]subscriber.Session, error) {
	return m.list, m.err
}

type recordingSender struct {
	mu   sync.Mutex
	sent []int64
}

func (r *recordingSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to.ChatID)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(r.sent)}, nil
}

func (r *recordingSender) recipients() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.sent...)
}

type fixture struct {
	fetcher   *fakeFetcher
	snapshots *memSnapshots
	sender    *recordingSender
	pipeline  *Pipeline
}

func newFixture(sessions memSessions) *fixture {
	f := &fixture{
		fetcher:   &fakeFetcher{},
		snapshots: &memSnapshots{},
		sender:    &recordingSender{},
	}
	d := dispatch.New(dispatch.Config{BroadcastChatID: channel, RatePerSec: 1000}, f.sender, logx.Nop(), nil)
	f.pipeline = NewPipeline(f.fetcher, f.snapshots, sessions, d, message.NewComposer(message.Options{}), logx.Nop(), nil)
	return f
}

func srv(key string, ram float64) catalog.Listing {
	return catalog.Listing{Key: catalog.Key(key), CPU: "AMD Ryzen 7 3700X", RAMSize: catalog.Number(ram), Price: 40}
}

func subscriberWith(chatID int64, minram string) subscriber.Session {
	s := subscriber.NewSession(chatID)
	_ = s.SetFilter(subscriber.FilterMinRAM, minram)
	return s
}

func keysOf(ls []catalog.Listing) []catalog.Key {
	out := make([]catalog.Key, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Key)
	}
	return out
}

func TestTickFirstRunIsBaseline(t *testing.T) {
	t.Parallel()

	f := newFixture(memSessions{list: []subscriber.Session{subscriber.NewSession(1)}})
	f.fetcher.set(srv("A", 64), srv("B", 64))

	rep, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultBaseline, rep.Result)
	assert.Empty(t, f.sender.recipients())
	assert.Equal(t, 1, f.snapshots.saves)

	rep, err = f.pipeline.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, rep.Result)
	assert.Equal(t, 1, f.snapshots.saves)
}

func TestTickNewListingScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(memSessions{list: []subscriber.Session{
		subscriberWith(10, "32"),
		subscriberWith(20, subscriber.Any),
	}})
	f.fetcher.set(srv("A", 64), srv("B", 64))
	_, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)

	f.fetcher.set(srv("A", 64), srv("B", 64), srv("C", 16))
	rep, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ResultDispatched, rep.Result)
	assert.Equal(t, []catalog.Key{"C"}, keysOf(rep.NewListings))
	assert.Equal(t, []int64{channel, 20}, f.sender.recipients())
	assert.Equal(t, 2, rep.Dispatch.Sent())
	assert.Equal(t, 3, f.snapshots.snap.Len())
}

func TestTickPersistFailureBlocksDispatch(t *testing.T) {
	t.Parallel()

	f := newFixture(memSessions{list: []subscriber.Session{subscriberWith(20, subscriber.Any)}})
	f.fetcher.set(srv("A", 64), srv("B", 64))
	_, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)

	f.fetcher.set(srv("A", 64), srv("B", 64), srv("C", 16))
	f.snapshots.mu.Lock()
	f.snapshots.saveErr = errors.New("disk full")
	f.snapshots.mu.Unlock()

	rep, err := f.pipeline.Tick(context.Background())
	var pe *PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ResultPersistError, rep.Result)
	assert.Empty(t, f.sender.recipients())

	f.snapshots.mu.Lock()
	f.snapshots.saveErr = nil
	f.snapshots.mu.Unlock()

	rep, err = f.pipeline.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []catalog.Key{"C"}, keysOf(rep.NewListings))
	assert.Equal(t, []int64{channel, 20}, f.sender.recipients())
}

func TestTickFetchErrorAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(memSessions{})
	f.fetcher.err = &source.FetchError{URL: "http://feed", Status: 503, Err: errors.New("http status 503")}

	rep, err := f.pipeline.Tick(context.Background())
	var fe *source.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ResultFetchError, rep.Result)
	assert.Zero(t, f.snapshots.saves)
}

func TestTickCorruptSnapshotRebaselines(t *testing.T) {
	t.Parallel()

	f := newFixture(memSessions{})
	f.snapshots.loadErr = storage.ErrCorrupt
	f.fetcher.set(srv("A", 64))

	rep, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultBaseline, rep.Result)
	assert.Empty(t, f.sender.recipients())
}

func TestTickLoadFailureAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(memSessions{})
	f.snapshots.loadErr = errors.New("permission denied")
	f.fetcher.set(srv("A", 64))

	rep, err := f.pipeline.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, ResultLoadError, rep.Result)
	assert.Zero(t, f.snapshots.saves)
}

func TestTickSessionReadFailureStillBroadcasts(t *testing.T) {
	t.Parallel()

	f := newFixture(memSessions{err: errors.New("session file locked")})
	f.fetcher.set(srv("A", 64))
	_, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)

	f.fetcher.set(srv("A", 64), srv("B", 64))
	rep, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.SessionsSkipped)
	assert.Equal(t, []int64{channel}, f.sender.recipients())
}

func TestTickRemovedListingsNotReported(t *testing.T) {
	t.Parallel()

	f := newFixture(memSessions{})
	f.fetcher.set(srv("A", 64), srv("B", 64))
	_, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)

	f.fetcher.set(srv("A", 64))
	rep, err := f.pipeline.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, rep.Result)
	assert.Empty(t, f.sender.recipients())
}
