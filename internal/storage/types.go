package storage

import (
	"context"
	"errors"
	"time"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/subscriber"
)

var (
	// ErrNotFound means nothing has been persisted yet.
	ErrNotFound = errors.New("storage: not found")
	// ErrCorrupt means persisted data exists but cannot be decoded.
	ErrCorrupt = errors.New("storage: corrupt data")
	ErrClosed  = errors.New("storage: closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": Path is the data directory
//   - "sqlite": Path is the database file
type Config struct {
	Driver       string
	Path         string
	SnapshotFile string // file only; default live_data.json
	SessionFile  string // file only; default session.json
	Compress     bool   // file only; zstd-compress the snapshot
	BusyTimeout  time.Duration
}

// SnapshotStore owns the last persisted snapshot.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (catalog.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap catalog.Snapshot) error
}

// SessionStore owns subscriber sessions.
type SessionStore interface {
	// Sessions returns every decodable session in store order.
	Sessions(ctx context.Context) ([]subscriber.Session, error)
	Session(ctx context.Context, chatID int64) (subscriber.Session, bool, error)
	PutSession(ctx context.Context, s subscriber.Session) error
}

// Store is the full persistence API.
type Store interface {
	SnapshotStore
	SessionStore
	Close() error
}
