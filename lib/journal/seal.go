// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/provost-linux/provost/lib/secret"
)

// sealVersion is the version byte prepended to every sealed chunk
// payload. It doubles as authenticated data, so flipping it breaks
// authentication rather than selecting a different parser.
const sealVersion byte = 0x01

// sealOverhead is the fixed per-chunk cost of sealing:
// version byte + XChaCha20-Poly1305 nonce + Poly1305 tag.
const sealOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoChunk is the HKDF domain separator for per-chunk keys.
// Changing it orphans every sealed journal written before the change.
var hkdfInfoChunk = []byte("provost.journal.chunk.v1")

// Sealer turns the journal master key into per-chunk seals. Each
// closed chunk is encrypted under its own HKDF-derived key, and the
// chunk sequence number rides along as authenticated data, so sealed
// chunks cannot be renumbered, swapped, or spliced between journals
// without detection.
type Sealer struct {
	masterKey *secret.Buffer
}

// NewSealer wraps the journal master key. The key buffer stays owned
// by the caller; the master key may be any length, since every use
// passes through HKDF first.
func NewSealer(masterKey *secret.Buffer) *Sealer {
	return &Sealer{masterKey: masterKey}
}

// Seal encrypts a chunk payload under the key for the given chunk
// sequence number.
func (s *Sealer) Seal(payload []byte, seq uint64) ([]byte, error) {
	key, err := s.chunkKey(seq)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating chunk cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := make([]byte, 1+chacha20poly1305.NonceSizeX, sealOverhead+len(payload))
	sealed[0] = sealVersion
	copy(sealed[1:], nonce[:])
	return aead.Seal(sealed, nonce[:], payload, chunkAAD(seq)), nil
}

// Open decrypts a sealed chunk payload, authenticating it against the
// chunk sequence number it was stored under.
func (s *Sealer) Open(sealed []byte, seq uint64) ([]byte, error) {
	if len(sealed) < sealOverhead {
		return nil, fmt.Errorf("sealed chunk is %d bytes, minimum is %d", len(sealed), sealOverhead)
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("sealed chunk version %d is not supported", sealed[0])
	}

	key, err := s.chunkKey(seq)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating chunk cipher: %w", err)
	}

	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[1+chacha20poly1305.NonceSizeX:]
	payload, err := aead.Open(nil, nonce, ciphertext, chunkAAD(seq))
	if err != nil {
		return nil, fmt.Errorf("chunk %d failed authentication (wrong key or tampered data): %w", seq, err)
	}
	return payload, nil
}

// chunkKey derives the per-chunk key: HKDF-SHA256 over the master key
// with the domain separator and the chunk sequence number as info.
// Nil salt is fine per RFC 5869 when the input keying material is
// itself high-entropy.
func (s *Sealer) chunkKey(seq uint64) (*secret.Buffer, error) {
	info := make([]byte, len(hkdfInfoChunk)+8)
	copy(info, hkdfInfoChunk)
	binary.BigEndian.PutUint64(info[len(hkdfInfoChunk):], seq)

	reader := hkdf.New(sha256.New, s.masterKey.Bytes(), nil, info)
	derived := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("deriving chunk key: %w", err)
	}
	return secret.NewFromBytes(derived)
}

func chunkAAD(seq uint64) []byte {
	aad := make([]byte, 9)
	aad[0] = sealVersion
	binary.BigEndian.PutUint64(aad[1:], seq)
	return aad
}
