// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds passwords and key material in memory the Go
// runtime cannot leak.
//
// [Buffer] allocates outside the Go heap via mmap(MAP_ANONYMOUS),
// locks the pages into RAM with mlock so they never reach swap, and
// excludes them from core dumps with madvise(MADV_DONTDUMP). Close
// zeroes the region before unmapping it. Because the garbage
// collector never sees the allocation, it cannot copy or relocate the
// secret behind the program's back.
//
// [NewFromBytes] additionally zeroes the caller's source slice, and
// [ReadFile] loads key files (or stdin) straight into protected
// memory. [Buffer.Equal] compares in constant time. After Close, any
// access panics.
package secret
