// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	buffer, err := New(64)
	if err != nil {
		t.Fatalf("New(64): %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 64 {
		t.Errorf("Len() = %d, want 64", buffer.Len())
	}
	for i, b := range buffer.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = %d, want zero-filled memory", i, b)
		}
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("correct horse battery staple")
	want := string(source)

	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	for i, b := range source {
		if b != 0 {
			t.Fatalf("source byte %d = %d, want zeroed after capture", i, b)
		}
	}
}

func TestNewFromBytesRejectsEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("NewFromBytes(nil) succeeded, want error")
	}
}

func TestEqualConstantTimeComparison(t *testing.T) {
	buffer, err := NewFromBytes([]byte("hunter2"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if !buffer.Equal([]byte("hunter2")) {
		t.Error("Equal rejected the matching secret")
	}
	if buffer.Equal([]byte("hunter3")) {
		t.Error("Equal accepted a different secret")
	}
	if buffer.Equal([]byte("hunter")) {
		t.Error("Equal accepted a shorter secret")
	}
}

func TestCloseIdempotent(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if buffer.data != nil {
		t.Error("data retained after Close")
	}
}

func TestAccessAfterClosePanics(t *testing.T) {
	accessors := map[string]func(*Buffer){
		"Bytes":  func(b *Buffer) { b.Bytes() },
		"String": func(b *Buffer) { b.String() },
		"Equal":  func(b *Buffer) { b.Equal(nil) },
	}
	for name, access := range accessors {
		t.Run(name, func(t *testing.T) {
			buffer, err := New(16)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			buffer.Close()
			defer func() {
				if recover() == nil {
					t.Errorf("%s did not panic after Close", name)
				}
			}()
			access(buffer)
		})
	}
}

func TestZero(t *testing.T) {
	buf := []byte{1, 2, 3}
	Zero(buf)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d after Zero", i, b)
		}
	}
}
