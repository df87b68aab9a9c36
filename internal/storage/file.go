package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/subscriber"
	logx "auctionwatch/pkg/logx"
)

// fileStore keeps the snapshot and sessions as JSON files:
//   - <dir>/live_data.json (snapshot, optionally zstd)
//   - <dir>/session.json   (sessions)
//
// Each file has its own lock; every write goes through writeFileAtomic.
type fileStore struct {
	log logx.Logger

	snapshotPath string
	sessionPath  string
	compress     bool

	snapMu sync.RWMutex
	sessMu sync.RWMutex
}

type sessionFile struct {
	Sessions []sessionEntry `json:"sessions"`
}

type sessionEntry struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	snapName := strings.TrimSpace(cfg.SnapshotFile)
	if snapName == "" {
		snapName = defaultSnapshotFile
	}
	sessName := strings.TrimSpace(cfg.SessionFile)
	if sessName == "" {
		sessName = defaultSessionFile
	}
	return &fileStore{
		log:          log,
		snapshotPath: filepath.Join(dir, snapName),
		sessionPath:  filepath.Join(dir, sessName),
		compress:     cfg.Compress,
	}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) LoadSnapshot(ctx context.Context) (catalog.Snapshot, error) {
	_ = ctx
	s.snapMu.RLock()
	b, err := os.ReadFile(s.snapshotPath)
	s.snapMu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return catalog.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return decodeSnapshot(b)
}

func (s *fileStore) SaveSnapshot(ctx context.Context, snap catalog.Snapshot) error {
	_ = ctx
	b, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if s.compress {
		if b, err = compress(b); err != nil {
			return err
		}
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	return writeFileAtomic(s.snapshotPath, b, 0o644)
}

func (s *fileStore) Sessions(ctx context.Context) ([]subscriber.Session, error) {
	_ = ctx
	s.sessMu.RLock()
	sf, err := s.readSessionsLocked()
	s.sessMu.RUnlock()
	if err != nil {
		return nil, err
	}
	out := make([]subscriber.Session, 0, len(sf.Sessions))
	for i, e := range sf.Sessions {
		sess, err := s.decodeEntry(e)
		if err != nil {
			s.log.Warn("skipping malformed session",
				logx.Int("index", i), logx.String("id", e.ID), logx.Err(err))
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *fileStore) Session(ctx context.Context, chatID int64) (subscriber.Session, bool, error) {
	_ = ctx
	s.sessMu.RLock()
	sf, err := s.readSessionsLocked()
	s.sessMu.RUnlock()
	if err != nil {
		return subscriber.Session{}, false, err
	}
	for _, e := range sf.Sessions {
		id, err := subscriber.ParseSessionID(e.ID)
		if err != nil || id != chatID {
			continue
		}
		sess, err := decodeSession(id, e.Data)
		if err != nil {
			return subscriber.Session{}, false, fmt.Errorf("%w: session %s: %v", ErrCorrupt, e.ID, err)
		}
		return sess, true, nil
	}
	return subscriber.Session{}, false, nil
}

func (s *fileStore) PutSession(ctx context.Context, sess subscriber.Session) error {
	_ = ctx
	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	sf, err := s.readSessionsLocked()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	if errors.Is(err, ErrCorrupt) {
		s.log.Warn("session file unreadable, starting a new one", logx.Err(err))
		sf = sessionFile{}
	}

	id := sess.ID()
	idx := -1
	for i, e := range sf.Sessions {
		if e.ID == id {
			idx = i
			break
		}
	}
	var prev []byte
	if idx >= 0 {
		prev = sf.Sessions[idx].Data
	}
	data, err := encodeSession(sess, prev)
	if err != nil {
		return err
	}
	if idx >= 0 {
		sf.Sessions[idx].Data = data
	} else {
		sf.Sessions = append(sf.Sessions, sessionEntry{ID: id, Data: data})
	}

	b, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.sessionPath, b, 0o600)
}

func (s *fileStore) readSessionsLocked() (sessionFile, error) {
	b, err := os.ReadFile(s.sessionPath)
	if errors.Is(err, fs.ErrNotExist) {
		return sessionFile{}, nil
	}
	if err != nil {
		return sessionFile{}, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return sessionFile{}, nil
	}
	var sf sessionFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return sessionFile{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.sessionPath, err)
	}
	return sf, nil
}

func (s *fileStore) decodeEntry(e sessionEntry) (subscriber.Session, error) {
	id, err := subscriber.ParseSessionID(e.ID)
	if err != nil {
		return subscriber.Session{}, err
	}
	return decodeSession(id, e.Data)
}

func encodeSnapshot(snap catalog.Snapshot) ([]byte, error) {
	if snap.Fingerprint == "" {
		snap.Fingerprint = catalog.Fingerprint(snap.Listings)
	}
	if snap.Listings == nil {
		snap.Listings = []catalog.Listing{}
	}
	return json.Marshal(snap)
}

func decodeSnapshot(b []byte) (catalog.Snapshot, error) {
	b, err := maybeDecompress(b)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	var raw struct {
		Server      *[]catalog.Listing `json:"server"`
		Fingerprint string             `json:"fingerprint"`
		FetchedAt   time.Time          `json:"fetched_at"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if raw.Server == nil {
		return catalog.Snapshot{}, fmt.Errorf("%w: missing server list", ErrCorrupt)
	}
	snap := catalog.Snapshot{Listings: *raw.Server, Fingerprint: raw.Fingerprint, FetchedAt: raw.FetchedAt}
	if snap.Fingerprint == "" {
		snap.Fingerprint = catalog.Fingerprint(snap.Listings)
	}
	return snap, nil
}
