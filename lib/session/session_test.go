// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/provost-linux/provost/policy"
)

func testCredential() policy.Credential {
	return policy.Credential{
		User:   policy.User{Name: "alice", UID: 1000},
		Groups: []policy.Group{{Name: "alice", GID: 1000}},
		TTY:    0x8803,
		PPID:   4242,
	}
}

func openTestStore(t *testing.T, dir string, ttl time.Duration) *Store {
	t.Helper()
	store, err := Open(Config{
		Path: filepath.Join(dir, "sessions.db"),
		TTL:  ttl,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordThenVerified(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, t.TempDir(), 5*time.Minute)
	cred := testCredential()

	ok, err := store.IsRecentlyVerified(ctx, cred)
	if err != nil || ok {
		t.Fatalf("fresh store: verified=%v err=%v, want false nil", ok, err)
	}

	if err := store.RecordVerification(ctx, cred); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}
	ok, err = store.IsRecentlyVerified(ctx, cred)
	if err != nil {
		t.Fatalf("IsRecentlyVerified: %v", err)
	}
	if !ok {
		t.Error("recorded verification not found")
	}
}

func TestCredentialTupleIsolation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, t.TempDir(), 5*time.Minute)
	cred := testCredential()
	if err := store.RecordVerification(ctx, cred); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}

	otherTTY := cred
	otherTTY.TTY = 0x8804
	otherPPID := cred
	otherPPID.PPID = 9999
	otherUser := cred
	otherUser.User.Name = "bob"

	for name, other := range map[string]policy.Credential{
		"tty": otherTTY, "ppid": otherPPID, "user": otherUser,
	} {
		ok, err := store.IsRecentlyVerified(ctx, other)
		if err != nil {
			t.Fatalf("%s lookup: %v", name, err)
		}
		if ok {
			t.Errorf("verification leaked across %s change", name)
		}
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, t.TempDir(), time.Minute)
	cred := testCredential()

	base := time.Now()
	store.now = func() time.Time { return base }
	if err := store.RecordVerification(ctx, cred); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}

	store.now = func() time.Time { return base.Add(59 * time.Second) }
	if ok, _ := store.IsRecentlyVerified(ctx, cred); !ok {
		t.Error("verification expired before the TTL")
	}

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	if ok, _ := store.IsRecentlyVerified(ctx, cred); ok {
		t.Error("verification survived past the TTL")
	}

	// The expired row is dropped, so rolling the clock back does not
	// resurrect it.
	store.now = func() time.Time { return base }
	if ok, _ := store.IsRecentlyVerified(ctx, cred); ok {
		t.Error("expired record came back")
	}
}

func TestTamperedRecordRejected(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, t.TempDir(), time.Minute)
	cred := testCredential()

	base := time.Now()
	store.now = func() time.Time { return base }
	if err := store.RecordVerification(ctx, cred); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}

	// Push verified_at forward behind the store's back; the
	// fingerprint no longer matches, so freshness cannot be bought
	// by editing the row.
	conn, err := store.pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	err = sqlitex.Execute(conn, "UPDATE sessions SET verified_at = verified_at + 3600", nil)
	store.pool.Put(conn)
	if err != nil {
		t.Fatalf("UPDATE: %v", err)
	}

	store.now = func() time.Time { return base.Add(30 * time.Minute) }
	if ok, _ := store.IsRecentlyVerified(ctx, cred); ok {
		t.Error("tampered record accepted")
	}
}

func TestDisabledTTL(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, t.TempDir(), 0)
	cred := testCredential()

	if err := store.RecordVerification(ctx, cred); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}
	if ok, err := store.IsRecentlyVerified(ctx, cred); ok || err != nil {
		t.Errorf("disabled cache: verified=%v err=%v, want false nil", ok, err)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, t.TempDir(), time.Hour)

	base := time.Now()
	old := testCredential()
	recent := testCredential()
	recent.PPID = 777

	store.now = func() time.Time { return base.Add(-30 * time.Minute) }
	if err := store.RecordVerification(ctx, old); err != nil {
		t.Fatal(err)
	}
	store.now = func() time.Time { return base }
	if err := store.RecordVerification(ctx, recent); err != nil {
		t.Fatal(err)
	}

	deleted, err := store.Purge(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Purge deleted %d records, want 1", deleted)
	}
	if ok, _ := store.IsRecentlyVerified(ctx, recent); !ok {
		t.Error("recent record purged")
	}

	deleted, err = store.Purge(ctx, 0)
	if err != nil {
		t.Fatalf("Purge all: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Purge(0) deleted %d records, want the remaining 1", deleted)
	}
}

func TestKeyPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cred := testCredential()

	store := openTestStore(t, dir, time.Hour)
	if err := store.RecordVerification(ctx, cred); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestStore(t, dir, time.Hour)
	ok, err := reopened.IsRecentlyVerified(ctx, cred)
	if err != nil {
		t.Fatalf("IsRecentlyVerified after reopen: %v", err)
	}
	if !ok {
		t.Error("fingerprint key did not survive reopen")
	}
}
