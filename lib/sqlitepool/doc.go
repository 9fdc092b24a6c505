// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools with the pragmas
// every provost database uses.
//
// The front-ends are short-lived processes: a pool here is less about
// concurrency and more about getting WAL mode, a busy timeout, and
// schema setup applied uniformly before the first statement runs.
// Connections initialize lazily, so the pool costs nothing beyond the
// connections actually taken.
//
// The API mirrors zombiezen.com/go/sqlite/sqlitex: Take a connection,
// use it on one goroutine, Put it back.
package sqlitepool
