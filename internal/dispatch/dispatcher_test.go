package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/message"
	"auctionwatch/internal/subscriber"
	"auctionwatch/internal/transport"
	logx "auctionwatch/pkg/logx"
)

type sent struct {
	chatID int64
	text   string
}

// fakeSender records sends and fails for chats listed in failures.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sent
	calls    map[int64]int
	failures map[int64]error
	// flaky fails the first n calls per chat with a transient error.
	flaky int
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int64]int{}
	}
	f.calls[to.ChatID]++
	if err := f.failures[to.ChatID]; err != nil {
		return transport.MessageRef{}, err
	}
	if f.calls[to.ChatID] <= f.flaky {
		return transport.MessageRef{}, errors.New("telegram: 502 bad gateway")
	}
	f.sent = append(f.sent, sent{chatID: to.ChatID, text: text})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) recipients() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.chatID)
	}
	return out
}

// keyComposer renders just the key so tests can follow ordering.
type keyComposer struct{}

func (keyComposer) Broadcast(l catalog.Listing) string { return "B:" + string(l.Key) }
func (keyComposer) Listing(l catalog.Listing) string   { return "L:" + string(l.Key) }

const channel = int64(-1001)

func newTestDispatcher(s transport.Sender) *Dispatcher {
	return New(Config{
		BroadcastChatID: channel,
		RatePerSec:      1000,
		RetryMax:        2,
		RetryBase:       time.Millisecond,
		RetryMaxDelay:   2 * time.Millisecond,
	}, s, logx.Nop(), nil)
}

func session(chatID int64, minram string) subscriber.Session {
	s := subscriber.NewSession(chatID)
	if minram != "" {
		if err := s.SetFilter(subscriber.FilterMinRAM, minram); err != nil {
			panic(err)
		}
	}
	return s
}

func TestDispatchScenarioMinRAM(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	d := newTestDispatcher(fs)
	c := catalog.Listing{Key: "C", CPU: "Intel Core i7", RAMSize: 16, Price: 30}

	rep := d.DispatchListings(context.Background(), []catalog.Listing{c}, []subscriber.Session{
		session(10, "32"),
		session(20, subscriber.Any),
	}, keyComposer{})

	assert.Equal(t, []int64{channel, 20}, fs.recipients())
	assert.Equal(t, 2, rep.Sent())
	assert.Empty(t, rep.For(10))
	assert.Equal(t, "B:C", fs.sent[0].text)
	assert.Equal(t, "L:C", fs.sent[1].text)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{failures: map[int64]error{
		channel: errors.New("channel down"),
		20:      fmt.Errorf("blocked: %w", transport.ErrPermanent),
	}}
	d := newTestDispatcher(fs)

	listings := []catalog.Listing{{Key: "A", RAMSize: 64}, {Key: "B", RAMSize: 64}}
	sessions := []subscriber.Session{session(10, ""), session(20, ""), session(30, "")}

	rep := d.DispatchListings(context.Background(), listings, sessions, keyComposer{})

	require.Len(t, rep.Outcomes, 8)
	assert.Equal(t, []int64{10, 30, 10, 30}, fs.recipients())
	assert.Equal(t, 4, rep.Failed())

	// Permanent errors are not retried; transient ones use every attempt.
	for _, o := range rep.For(20) {
		assert.Equal(t, 1, o.Attempts)
		assert.True(t, transport.IsPermanent(o.Err))
	}
	for _, o := range rep.For(channel) {
		assert.Equal(t, 3, o.Attempts)
		assert.Equal(t, TargetBroadcast, o.Target.Kind)
	}

	var keys []catalog.Key
	for _, o := range rep.Outcomes {
		keys = append(keys, o.ListingKey)
	}
	assert.Equal(t, []catalog.Key{"A", "A", "A", "A", "B", "B", "B", "B"}, keys)
}

func TestDispatchSkipsDisabledNotifications(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	d := newTestDispatcher(fs)
	off := session(10, "")
	off.Notifications = false

	d.DispatchListings(context.Background(), []catalog.Listing{{Key: "A"}}, []subscriber.Session{off, session(20, "")}, keyComposer{})
	assert.Equal(t, []int64{channel, 20}, fs.recipients())
}

func TestDispatchUnconfiguredSessionMatchesAll(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	d := newTestDispatcher(fs)
	fresh := subscriber.NewSession(10)

	sessions := []subscriber.Session{fresh}
	d.DispatchListings(context.Background(), []catalog.Listing{{Key: "A"}}, sessions, keyComposer{})
	assert.Equal(t, []int64{channel, 10}, fs.recipients())
	assert.Nil(t, sessions[0].Filters)
}

func TestRetryRecovers(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{flaky: 2}
	d := newTestDispatcher(fs)
	o := d.Notify(context.Background(), 10, "hi")
	assert.NoError(t, o.Err)
	assert.Equal(t, 3, o.Attempts)
}

func TestBroadcastWithoutChannel(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	d := New(Config{RatePerSec: 1000}, fs, logx.Nop(), nil)
	o := d.Broadcast(context.Background(), "x")
	assert.ErrorIs(t, o.Err, ErrNoTarget)

	rep := d.DispatchListings(context.Background(), []catalog.Listing{{Key: "A"}}, []subscriber.Session{session(5, "")}, message.NewComposer(message.Options{}))
	assert.Equal(t, []int64{5}, fs.recipients())
	assert.Equal(t, 1, rep.Sent())
}

func TestRetryDelayBounds(t *testing.T) {
	t.Parallel()

	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt <= 6; attempt++ {
		d := retryDelay(cfg, attempt)
		assert.GreaterOrEqual(t, d, 70*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}
