// Package search answers on-demand searches against the last persisted
// snapshot, gated by the daily quota.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/observability"
	"auctionwatch/internal/storage"
	"auctionwatch/internal/subscriber"
	logx "auctionwatch/pkg/logx"
)

type Config struct {
	MaxDaily          int
	MaxResults        int
	PremiumMaxResults int
}

// Result is one search answer. Listings is already truncated to Limit.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	Total     int
	Listings  []catalog.Listing
	Session   subscriber.Session
}

type Service struct {
	mu        sync.RWMutex
	cfg       Config
	quota     subscriber.Quota
	sessions  storage.SessionStore
	snapshots storage.SnapshotStore
	log       logx.Logger
	metrics   observability.Metrics
}

func New(cfg Config, quota subscriber.Quota, sessions storage.SessionStore, snapshots storage.SnapshotStore, log logx.Logger, metrics observability.Metrics) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if metrics == nil {
		metrics = observability.Nop()
	}
	s := &Service{
		quota:     quota,
		sessions:  sessions,
		snapshots: snapshots,
		log:       log.With(logx.String("comp", "search")),
		metrics:   metrics,
	}
	s.Apply(cfg)
	return s
}

// Apply swaps limits. Counters already stored in sessions are kept.
func (s *Service) Apply(cfg Config) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.PremiumMaxResults <= 0 {
		cfg.PremiumMaxResults = 10
	}
	s.mu.Lock()
	s.cfg = cfg
	s.quota.MaxDaily = cfg.MaxDaily
	s.mu.Unlock()
}

func (s *Service) current() (Config, subscriber.Quota) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.quota
}

// Search consumes one search for chatID and returns the matching listings.
// The session (filters, counter, date) is written back before the snapshot
// is read, so a denied or failed search still records the day rollover.
func (s *Service) Search(ctx context.Context, chatID int64, username string) (Result, error) {
	sess, err := s.session(ctx, chatID)
	if err != nil {
		return Result{}, err
	}
	if username != "" {
		sess.Username = username
	}
	cfg, quota := s.current()
	sess.EnsureFilters()
	allowed, remaining := quota.CheckAndConsume(&sess)
	if err := s.sessions.PutSession(ctx, sess); err != nil {
		return Result{}, fmt.Errorf("save session: %w", err)
	}

	res := Result{Allowed: allowed, Remaining: remaining, Session: sess}
	if !allowed {
		s.metrics.IncSearch("denied")
		s.log.Debug("search denied", logx.Int64("chat_id", chatID), logx.Int("count", sess.SearchCount))
		return res, nil
	}
	s.metrics.IncSearch("allowed")

	matches, err := s.match(ctx, sess.Filters)
	if err != nil {
		return res, err
	}
	res.Total = len(matches)
	res.Limit = limitFor(cfg, sess)
	if len(matches) > res.Limit {
		matches = matches[:res.Limit]
	}
	res.Listings = matches
	return res, nil
}

// Preview runs the filters of chatID without touching its quota or session.
func (s *Service) Preview(ctx context.Context, chatID int64) (Result, error) {
	sess, err := s.session(ctx, chatID)
	if err != nil {
		return Result{}, err
	}
	fs := sess.Filters
	if fs == nil {
		fs = subscriber.DefaultFilters()
	}
	matches, err := s.match(ctx, fs)
	if err != nil {
		return Result{}, err
	}
	cfg, quota := s.current()
	res := Result{
		Allowed:   true,
		Remaining: quota.Remaining(sess),
		Limit:     limitFor(cfg, sess),
		Total:     len(matches),
		Session:   sess,
	}
	if len(matches) > res.Limit {
		matches = matches[:res.Limit]
	}
	res.Listings = matches
	return res, nil
}

func (s *Service) MaxDaily() int {
	cfg, _ := s.current()
	return cfg.MaxDaily
}

func (s *Service) session(ctx context.Context, chatID int64) (subscriber.Session, error) {
	sess, ok, err := s.sessions.Session(ctx, chatID)
	if err != nil && !errors.Is(err, storage.ErrCorrupt) {
		return subscriber.Session{}, fmt.Errorf("load session: %w", err)
	}
	if err != nil {
		s.log.Warn("session unreadable, starting fresh", logx.Int64("chat_id", chatID), logx.Err(err))
		ok = false
	}
	if !ok {
		sess = subscriber.NewSession(chatID)
	}
	return sess, nil
}

func (s *Service) match(ctx context.Context, fs subscriber.FilterSet) ([]catalog.Listing, error) {
	snap, err := s.snapshots.LoadSnapshot(ctx)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorrupt) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var out []catalog.Listing
	for _, l := range snap.Listings {
		if subscriber.Matches(l, fs) {
			out = append(out, l)
		}
	}
	return out, nil
}

func limitFor(cfg Config, sess subscriber.Session) int {
	if sess.Premium {
		return cfg.PremiumMaxResults
	}
	return cfg.MaxResults
}
