// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash provides BLAKE3 content hashing for files.
//
// Provost records two digests in every journal entry: the policy
// database that authorized a decision and the binary that was
// executed. Either file can change between the decision and a later
// audit; the digests pin down exactly what was in force. BLAKE3 keeps
// the cost negligible even for large binaries.
//
// [HashFile] streams a file with constant memory. [FormatDigest] and
// [ParseDigest] convert to and from the canonical lower-case hex
// spelling used in journal records and admin output.
package binhash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3-256 content digest.
type Digest [32]byte

// HashFile computes the BLAKE3 digest of the file at path, streaming
// it through the hash in chunks.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// HashBytes computes the BLAKE3 digest of data in memory.
func HashBytes(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// FormatDigest returns the canonical hex spelling of a digest.
func FormatDigest(digest Digest) string {
	return hex.EncodeToString(digest[:])
}

// ParseDigest parses the canonical hex spelling back into a digest,
// validating length and encoding.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing hash digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("hash digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// String implements fmt.Stringer with the canonical hex spelling.
func (d Digest) String() string { return FormatDigest(d) }

// MarshalText emits the canonical hex spelling, so digests embed
// cleanly in journal records.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(FormatDigest(d)), nil
}

// UnmarshalText parses the canonical hex spelling.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
