// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal is the append-only audit log of elevation
// decisions.
//
// Every invocation of the runner appends exactly one record: who
// asked, what they asked for, what the policy decided, and the
// fingerprints of the policy file and target binary that were in
// force. Records are CBOR in deterministic encoding, length-prefixed,
// and fsync'd before the runner proceeds.
//
// Records accumulate in an active chunk. When the active chunk
// reaches the rotation threshold it is closed: the record stream is
// compressed (none, lz4, or zstd, tagged in the chunk header) and,
// when a journal key is configured, sealed with XChaCha20-Poly1305
// under a per-chunk derived key. A sealing failure aborts the
// rotation and keeps the active chunk growing; a journal configured
// for sealing never writes a plaintext closed chunk.
//
// [Writer.Append] is safe across concurrent runner processes; the
// active chunk is serialized with an exclusive flock. [Reader] walks
// closed chunks in sequence order and the active chunk last,
// yielding records oldest-first.
package journal
