// Package sqlite stores snapshots in a SQLite database file so they survive process
// death on a single machine.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	pr "github.com/unkn0wn-root/retainstate/provider"
)

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("sqlite provider: store closed")

type Provider struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

// New opens (or creates) the database at path. Use ":memory:" for tests.
func New(path string) (*Provider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Provider{db: db, now: time.Now}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, false, ErrStoreClosed
	}

	var (
		data      []byte
		expiresAt int64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT data, expires_at FROM snapshots WHERE key = ?
	`, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	if expiresAt != 0 && p.now().UnixNano() >= expiresAt {
		return nil, false, nil
	}
	return data, true, nil
}

// Set replaces the row for key. Expired rows are purged on each write.
func (p *Provider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false, ErrStoreClosed
	}

	now := p.now().UnixNano()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now + int64(ttl)
	}
	if _, err := p.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE expires_at != 0 AND expires_at <= ?
	`, now); err != nil {
		return false, fmt.Errorf("purge expired snapshots: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrStoreClosed
	}

	if _, err := p.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	return p.db.Close()
}
