//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/subscriber"
	logx "auctionwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadSnapshot(ctx context.Context) (catalog.Snapshot, error) {
	if s == nil || s.db == nil {
		return catalog.Snapshot{}, ErrClosed
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshot WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return decodeSnapshot(payload)
}

func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap catalog.Snapshot) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	b, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	fp := snap.Fingerprint
	if fp == "" {
		fp = catalog.Fingerprint(snap.Listings)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot(id, fingerprint, fetched_at, payload) VALUES(1,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET fingerprint=excluded.fingerprint, fetched_at=excluded.fetched_at, payload=excluded.payload`,
		fp, snap.FetchedAt.UTC().Format(time.RFC3339Nano), b,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Sessions(ctx context.Context) ([]subscriber.Session, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, payload FROM sessions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []subscriber.Session
	for rows.Next() {
		var (
			chatID  int64
			payload string
		)
		if err := rows.Scan(&chatID, &payload); err != nil {
			return nil, err
		}
		sess, err := decodeSession(chatID, []byte(payload))
		if err != nil {
			s.log.Warn("skipping malformed session", logx.Int64("chat_id", chatID), logx.Err(err))
			continue
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Session(ctx context.Context, chatID int64) (subscriber.Session, bool, error) {
	if s == nil || s.db == nil {
		return subscriber.Session{}, false, ErrClosed
	}
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE chat_id = ?`, chatID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return subscriber.Session{}, false, nil
	}
	if err != nil {
		return subscriber.Session{}, false, err
	}
	sess, err := decodeSession(chatID, []byte(payload))
	if err != nil {
		return subscriber.Session{}, false, fmt.Errorf("%w: session %d: %v", ErrCorrupt, chatID, err)
	}
	return sess, true, nil
}

func (s *sqliteStore) PutSession(ctx context.Context, sess subscriber.Session) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var prev string
	err = tx.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE chat_id = ?`, sess.ChatID).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	b, err := encodeSession(sess, []byte(prev))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions(chat_id, payload, updated) VALUES(?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET payload=excluded.payload, updated=excluded.updated`,
		sess.ChatID, string(b), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}
