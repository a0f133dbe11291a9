package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Swap statuses.
const (
	SwapPending   = "pending"
	SwapSubmitted = "submitted"
	SwapSuccess   = "success"
	SwapFailed    = "failed"
	SwapTimeout   = "timeout"
)

// Store wraps sqlc Queries with connection management and helpers.
type Store struct {
	*Queries
	conn *sql.DB
}

func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows a single writer; serialise through one connection.
	conn.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{
		Queries: New(conn),
		conn:    conn,
	}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// LoadCacheEntry returns the stored bytes for key. found is false when the key
// has never been written.
func (s *Store) LoadCacheEntry(ctx context.Context, key string) (value []byte, storedAt time.Time, found bool, err error) {
	entry, err := s.GetCacheEntry(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("loading cache entry %s: %w", key, err)
	}
	return entry.Value, entry.StoredAt, true, nil
}

// SaveCacheEntry overwrites key unconditionally (last writer wins).
func (s *Store) SaveCacheEntry(ctx context.Context, key string, value []byte, storedAt time.Time) error {
	return s.UpsertCacheEntry(ctx, UpsertCacheEntryParams{
		Key:      key,
		Value:    value,
		StoredAt: storedAt.UTC(),
	})
}

// PruneCache removes entries stored before cutoff.
func (s *Store) PruneCache(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.DeleteCacheEntriesBefore(ctx, cutoff.UTC())
}

// RecentSwaps lists swaps newest first, optionally filtered by wallet.
func (s *Store) RecentSwaps(ctx context.Context, wallet string, limit int64) ([]Swap, error) {
	if limit <= 0 {
		limit = 50
	}
	if wallet == "" {
		return s.ListSwaps(ctx, limit)
	}
	return s.ListSwapsByWallet(ctx, ListSwapsByWalletParams{Wallet: wallet, Limit: limit})
}

// NullString converts an empty string to NULL.
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
