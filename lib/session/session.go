// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package session caches successful re-authentications so a user who
// just proved their identity is not prompted again for every
// invocation in the same terminal.
//
// A record is keyed by the invoking credential tuple (user name, tty
// device, parent pid) and carries the verification time plus a keyed
// BLAKE3 fingerprint over the whole record. The fingerprint key lives
// next to the database; a record that does not verify against it is
// treated as absent, so hand-edits to the store can widen nothing.
//
// The store is deliberately forgiving: a missing or unreadable
// database means "not verified", never a refusal to run.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zeebo/blake3"

	"github.com/provost-linux/provost/lib/sqlitepool"
	"github.com/provost-linux/provost/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    user        TEXT    NOT NULL,
    tty         INTEGER NOT NULL,
    ppid        INTEGER NOT NULL,
    verified_at INTEGER NOT NULL,
    fingerprint BLOB    NOT NULL,
    PRIMARY KEY (user, tty, ppid)
);
`

// Config holds the store parameters, normally taken from settings.
type Config struct {
	// Path is the database file. Its directory is created with mode
	// 0700 if absent; the fingerprint key lives alongside it.
	Path string

	// TTL is how long a verification stays fresh. Zero or negative
	// disables the cache: nothing is recorded and nothing is fresh.
	TTL time.Duration

	// Logger receives store diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Store is the re-authentication cache.
type Store struct {
	pool   *sqlitepool.Pool
	ttl    time.Duration
	key    []byte
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the store. The caller must Close it.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("session: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("session: creating state directory: %w", err)
	}
	key, err := loadOrCreateKey(cfg.Path + ".key")
	if err != nil {
		return nil, err
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: 1,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return &Store{
		pool:   pool,
		ttl:    cfg.TTL,
		key:    key,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.pool.Close()
}

// IsRecentlyVerified reports whether cred authenticated within the
// TTL. A record with a bad fingerprint or an expired timestamp is
// deleted and reported as not verified.
func (s *Store) IsRecentlyVerified(ctx context.Context, cred policy.Credential) (bool, error) {
	if s.ttl <= 0 {
		return false, nil
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)

	var (
		found      bool
		verifiedAt int64
		stored     []byte
	)
	err = sqlitex.Execute(conn,
		"SELECT verified_at, fingerprint FROM sessions WHERE user = ? AND tty = ? AND ppid = ?",
		&sqlitex.ExecOptions{
			Args: []any{cred.User.Name, int64(cred.TTY), int64(cred.PPID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				verifiedAt = stmt.ColumnInt64(0)
				stored = make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, stored)
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("session: lookup: %w", err)
	}
	if !found {
		return false, nil
	}

	want := s.fingerprint(cred, verifiedAt)
	if subtle.ConstantTimeCompare(stored, want) != 1 {
		s.logger.Warn("session record failed fingerprint check, dropping",
			"user", cred.User.Name)
		s.delete(conn, cred)
		return false, nil
	}
	if s.now().Unix()-verifiedAt > int64(s.ttl/time.Second) {
		s.delete(conn, cred)
		return false, nil
	}
	return true, nil
}

// RecordVerification stores a fresh verification for cred.
func (s *Store) RecordVerification(ctx context.Context, cred policy.Credential) error {
	if s.ttl <= 0 {
		return nil
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	verifiedAt := s.now().Unix()
	err = sqlitex.Execute(conn,
		`INSERT INTO sessions (user, tty, ppid, verified_at, fingerprint)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user, tty, ppid)
		 DO UPDATE SET verified_at = excluded.verified_at, fingerprint = excluded.fingerprint`,
		&sqlitex.ExecOptions{
			Args: []any{
				cred.User.Name, int64(cred.TTY), int64(cred.PPID),
				verifiedAt, s.fingerprint(cred, verifiedAt),
			},
		})
	if err != nil {
		return fmt.Errorf("session: record: %w", err)
	}
	return nil
}

// Purge deletes records older than the given age. A zero or negative
// age deletes everything.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	cutoff := s.now().Add(-olderThan).Unix()
	err = sqlitex.Execute(conn,
		"DELETE FROM sessions WHERE verified_at <= ?",
		&sqlitex.ExecOptions{Args: []any{cutoff}})
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	return conn.Changes(), nil
}

func (s *Store) delete(conn *sqlite.Conn, cred policy.Credential) {
	err := sqlitex.Execute(conn,
		"DELETE FROM sessions WHERE user = ? AND tty = ? AND ppid = ?",
		&sqlitex.ExecOptions{Args: []any{cred.User.Name, int64(cred.TTY), int64(cred.PPID)}})
	if err != nil {
		s.logger.Warn("session cleanup failed", "user", cred.User.Name, "error", err)
	}
}

// fingerprint computes the keyed BLAKE3 token binding a record's key
// tuple to its verification time.
func (s *Store) fingerprint(cred policy.Credential, verifiedAt int64) []byte {
	hasher, err := blake3.NewKeyed(s.key)
	if err != nil {
		// The key is always 32 bytes by construction.
		panic(fmt.Sprintf("session: keyed hasher: %v", err))
	}
	hasher.Write([]byte(cred.User.Name))
	hasher.Write([]byte{0})
	var fixed [24]byte
	binary.BigEndian.PutUint64(fixed[0:], cred.TTY)
	binary.BigEndian.PutUint64(fixed[8:], uint64(cred.PPID))
	binary.BigEndian.PutUint64(fixed[16:], uint64(verifiedAt))
	hasher.Write(fixed[:])
	return hasher.Sum(nil)
}

// loadOrCreateKey reads the fingerprint key, generating it on first
// use. The key file is root-readable only.
func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != 32 {
			return nil, fmt.Errorf("session: key file %s has %d bytes, want 32", path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("session: reading key: %w", err)
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("session: generating key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("session: writing key: %w", err)
	}
	return key, nil
}
