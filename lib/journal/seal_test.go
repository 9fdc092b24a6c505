// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bytes"
	"testing"

	"github.com/provost-linux/provost/lib/secret"
)

func testSealer(t *testing.T, key string) *Sealer {
	t.Helper()
	buf, err := secret.NewFromBytes([]byte(key))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buf.Close() })
	return NewSealer(buf)
}

func TestSealOpenRoundTrip(t *testing.T) {
	sealer := testSealer(t, "journal-master-key")
	payload := []byte("granted alice /usr/sbin/ip link set eth0 up")

	sealed, err := sealer.Seal(payload, 7)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, payload) {
		t.Error("sealed chunk leaks the plaintext")
	}

	opened, err := sealer.Open(sealed, 7)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, payload) {
		t.Error("round trip changed the payload")
	}
}

func TestOpenRejectsWrongSequence(t *testing.T) {
	sealer := testSealer(t, "journal-master-key")
	sealed, err := sealer.Seal([]byte("payload"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sealer.Open(sealed, 4); err == nil {
		t.Error("Open accepted a chunk under the wrong sequence number")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	sealed, err := testSealer(t, "the right key").Seal([]byte("payload"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := testSealer(t, "the wrong key").Open(sealed, 1); err == nil {
		t.Error("Open accepted a chunk sealed under a different key")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	sealer := testSealer(t, "journal-master-key")
	sealed, err := sealer.Seal([]byte("outcome=granted"), 1)
	if err != nil {
		t.Fatal(err)
	}

	for _, offset := range []int{0, 1, len(sealed) - 1} {
		tampered := bytes.Clone(sealed)
		tampered[offset] ^= 0x01
		if _, err := sealer.Open(tampered, 1); err == nil {
			t.Errorf("Open accepted a chunk flipped at offset %d", offset)
		}
	}

	if _, err := sealer.Open(sealed[:sealOverhead-1], 1); err == nil {
		t.Error("Open accepted a truncated chunk")
	}
}

func TestSealedChunksDifferPerCall(t *testing.T) {
	sealer := testSealer(t, "journal-master-key")
	a, err := sealer.Seal([]byte("payload"), 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := sealer.Seal([]byte("payload"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two seals of the same payload produced identical bytes")
	}
}
