// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/provost-linux/provost/lib/capset"
)

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]int{"zulu": 26, "alpha": 1, "mike": 13}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 16 {
		next, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, next) {
			t.Fatalf("encoding varies: %x vs %x", first, next)
		}
	}
}

func TestCapabilitySetEncodesAsText(t *testing.T) {
	type record struct {
		Caps capset.Set `cbor:"caps"`
	}
	in := record{Caps: capset.Of(capset.NetBindService, capset.SysTime)}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	diag, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diag, `"cap_net_bind_service,cap_sys_time"`) {
		t.Errorf("capability set not encoded as canonical text: %s", diag)
	}

	var out record
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Caps != in.Caps {
		t.Errorf("round trip = %v, want %v", out.Caps, in.Caps)
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	wide := struct {
		User  string `cbor:"user"`
		Extra string `cbor:"extra"`
	}{User: "alice", Extra: "future"}

	data, err := Marshal(wide)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var narrow struct {
		User string `cbor:"user"`
	}
	if err := Unmarshal(data, &narrow); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if narrow.User != "alice" {
		t.Errorf("user = %q, want alice", narrow.User)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, user := range []string{"alice", "bob", "carol"} {
		if err := enc.Encode(map[string]string{"user": user}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	var got []string
	for {
		var rec map[string]string
		if err := dec.Decode(&rec); err != nil {
			break
		}
		got = append(got, rec["user"])
	}
	if len(got) != 3 || got[0] != "alice" || got[2] != "carol" {
		t.Errorf("decoded %v, want the three users in order", got)
	}
}
