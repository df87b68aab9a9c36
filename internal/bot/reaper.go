package bot

import (
	"context"
	"sync"
	"time"

	kit "auctionwatch/internal/transport"
	logx "auctionwatch/pkg/logx"
)

// reaper deletes replies once their timeout expires. Pending deletions are
// dropped on close.
type reaper struct {
	chat Chat
	log  logx.Logger

	mu     sync.Mutex
	closed bool
	timers map[kit.MessageRef]*time.Timer
}

func newReaper(chat Chat, log logx.Logger) *reaper {
	return &reaper{chat: chat, log: log, timers: map[kit.MessageRef]*time.Timer{}}
}

func (rp *reaper) schedule(ref kit.MessageRef, after time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.closed {
		return
	}
	if t, ok := rp.timers[ref]; ok {
		t.Stop()
	}
	rp.timers[ref] = time.AfterFunc(after, func() { rp.fire(ref) })
}

func (rp *reaper) fire(ref kit.MessageRef) {
	rp.mu.Lock()
	if rp.closed {
		rp.mu.Unlock()
		return
	}
	delete(rp.timers, ref)
	rp.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rp.chat.DeleteMessage(ctx, ref); err != nil {
		rp.log.Debug("auto-delete failed", logx.Int64("chat_id", ref.ChatID), logx.Int("message_id", ref.MessageID), logx.Err(err))
	}
}

func (rp *reaper) open() {
	rp.mu.Lock()
	rp.closed = false
	rp.mu.Unlock()
}

func (rp *reaper) pending() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return len(rp.timers)
}

func (rp *reaper) close() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.closed = true
	for ref, t := range rp.timers {
		t.Stop()
		delete(rp.timers, ref)
	}
}
