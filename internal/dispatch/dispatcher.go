package dispatch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/message"
	"auctionwatch/internal/observability"
	"auctionwatch/internal/subscriber"
	"auctionwatch/internal/transport"
	logx "auctionwatch/pkg/logx"
)

// Dispatcher sends sequentially through a shared rate limiter. A failed
// recipient never prevents later sends.
type Dispatcher struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender  transport.Sender
	log     logx.Logger
	metrics observability.Metrics
}

func New(cfg Config, sender transport.Sender, log logx.Logger, metrics observability.Metrics) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if metrics == nil {
		metrics = observability.Nop()
	}
	d := &Dispatcher{
		sender:  sender,
		log:     log.With(logx.String("comp", "dispatch")),
		metrics: metrics,
	}
	d.Apply(cfg)
	return d
}

// Apply swaps the configuration; sends in flight keep the old one.
func (d *Dispatcher) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	d.mu.Lock()
	d.cfg = cfg
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	d.mu.Unlock()
}

func (d *Dispatcher) snapshot() (Config, *rate.Limiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg, d.limiter
}

// Broadcast sends msg to the broadcast chat.
func (d *Dispatcher) Broadcast(ctx context.Context, msg string) Outcome {
	cfg, _ := d.snapshot()
	to := Target{Kind: TargetBroadcast, ChatID: cfg.BroadcastChatID}
	if to.ChatID == 0 {
		return Outcome{Target: to, Err: ErrNoTarget}
	}
	return d.send(ctx, to, msg)
}

// Notify sends msg to one subscriber chat.
func (d *Dispatcher) Notify(ctx context.Context, chatID int64, msg string) Outcome {
	to := Target{Kind: TargetSubscriber, ChatID: chatID}
	if chatID == 0 {
		return Outcome{Target: to, Err: ErrNoTarget}
	}
	return d.send(ctx, to, msg)
}

// DispatchListings announces each listing in order: one broadcast, then one
// message per subscriber with notifications on whose filters match. Every
// listing's sends complete before the next listing starts.
//
// Sessions read here are never written back: a session that never
// configured filters matches like the all-Any defaults.
func (d *Dispatcher) DispatchListings(ctx context.Context, listings []catalog.Listing, sessions []subscriber.Session, c Composer) Report {
	cfg, _ := d.snapshot()
	var rep Report
	for _, l := range listings {
		if cfg.BroadcastChatID != 0 {
			o := d.Broadcast(ctx, c.Broadcast(l))
			o.ListingKey = l.Key
			rep.Outcomes = append(rep.Outcomes, o)
		}

		var text string
		for _, s := range sessions {
			if !s.Notifications {
				d.log.Trace("notifications off", logx.Int64("chat_id", s.ChatID))
				continue
			}
			if !subscriber.Matches(l, s.Filters) {
				continue
			}
			if text == "" {
				text = c.Listing(l)
			}
			o := d.Notify(ctx, s.ChatID, text)
			o.ListingKey = l.Key
			rep.Outcomes = append(rep.Outcomes, o)
		}
	}
	return rep
}

func (d *Dispatcher) send(ctx context.Context, to Target, text string) Outcome {
	cfg, lim := d.snapshot()
	out := Outcome{Target: to}
	if d.sender == nil {
		out.Err = ErrNoTarget
		return out
	}

	maxAttempts := 1 + cfg.RetryMax
	opts := &transport.SendOptions{ParseMode: message.ParseMode, DisablePreview: true}
loop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				out.Err = err
				break loop
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := d.sender.SendText(callCtx, transport.ChatTarget{ChatID: to.ChatID, ThreadID: threadFor(cfg, to)}, text, opts)
		cancel()
		out.Err = err
		if err == nil || transport.IsPermanent(err) || attempt >= maxAttempts {
			break loop
		}
		d.log.Debug("send failed, retrying",
			logx.Int64("chat_id", to.ChatID), logx.Int("attempt", attempt), logx.Int("max", maxAttempts), logx.Err(err))

		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			out.Err = ctx.Err()
			break loop
		}
	}

	result := "ok"
	if out.Err != nil {
		result = "error"
		d.log.Warn("delivery failed",
			logx.String("target", string(to.Kind)),
			logx.Int64("chat_id", to.ChatID),
			logx.Int("attempts", out.Attempts),
			logx.Err(out.Err),
		)
	}
	d.metrics.IncSend(string(to.Kind), result)
	return out
}

func threadFor(cfg Config, to Target) int {
	if to.Kind == TargetBroadcast {
		return cfg.ThreadID
	}
	return 0
}

// retryDelay is base*2^(attempt-1) capped at RetryMaxDelay, with 0.7..1.3
// jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
