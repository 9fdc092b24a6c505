// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package capset

import (
	"errors"
	"testing"
)

func TestParseSet(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Set
	}{
		{"empty", "", 0},
		{"blank", "   ", 0},
		{"single", "cap_net_admin", Of(NetAdmin)},
		{"pair", "cap_setuid,cap_setgid", Of(Setuid, Setgid)},
		{"unprefixed mixed case", "NET_RAW, Sys_Admin", Of(NetRaw, SysAdmin)},
		{"spacing", " cap_chown ,cap_kill ", Of(Chown, Kill)},
		{"reordered input", "cap_sys_admin,cap_chown", Of(Chown, SysAdmin)},
		{"star", "*", All()},
		{"all keyword", "ALL", All()},
		{"star among names", "cap_chown,*", All()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSet(tt.input)
			if err != nil {
				t.Fatalf("ParseSet(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSet(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSetErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		unknown bool
	}{
		{"unknown name", "cap_chown,cap_bogus", true},
		{"typo", "cap_sys_admn", true},
		{"empty element", "cap_chown,,cap_kill", false},
		{"trailing comma", "cap_chown,", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSet(tt.input)
			if err == nil {
				t.Fatalf("ParseSet(%q): expected error", tt.input)
			}
			var unknown *UnknownCapError
			if got := errors.As(err, &unknown); got != tt.unknown {
				t.Errorf("ParseSet(%q): UnknownCapError = %v, want %v (err: %v)",
					tt.input, got, tt.unknown, err)
			}
		})
	}
}

func TestSetStringCanonical(t *testing.T) {
	// Formatting is ascending bit order regardless of input order,
	// lower-case, cap_-prefixed.
	s, err := ParseSet("CAP_SYS_ADMIN , chown,cap_net_raw")
	if err != nil {
		t.Fatal(err)
	}
	want := "cap_chown,cap_net_raw,cap_sys_admin"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	// format(parse(format(x))) == format(x) for any valid x.
	again, err := ParseSet(s.String())
	if err != nil {
		t.Fatal(err)
	}
	if again.String() != want {
		t.Errorf("second round trip = %q, want %q", again.String(), want)
	}
}

func TestSetAlgebra(t *testing.T) {
	a := Of(Chown, Setuid, SysAdmin)
	b := Of(Setuid, NetAdmin)

	if got := a.Union(b); got != Of(Chown, Setuid, SysAdmin, NetAdmin) {
		t.Errorf("Union = %v", got)
	}
	if got := a.Intersect(b); got != Of(Setuid) {
		t.Errorf("Intersect = %v", got)
	}
	if got := a.Difference(b); got != Of(Chown, SysAdmin) {
		t.Errorf("Difference = %v", got)
	}
	if got := a.Add(Kill); got != Of(Chown, Setuid, SysAdmin, Kill) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Remove(Setuid); got != Of(Chown, SysAdmin) {
		t.Errorf("Remove = %v", got)
	}
	if !a.Has(SysAdmin) || a.Has(NetAdmin) {
		t.Errorf("Has: unexpected membership in %v", a)
	}
	if a.IsEmpty() || !Set(0).IsEmpty() {
		t.Error("IsEmpty misreported")
	}
	if got := a.Count(); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
}

func TestAllCoversEveryKnownCap(t *testing.T) {
	all := All()
	if got := all.Count(); got != int(LastCap)+1 {
		t.Fatalf("All().Count() = %d, want %d", got, int(LastCap)+1)
	}
	for c := Chown; c <= LastCap; c++ {
		if !all.Has(c) {
			t.Errorf("All() missing %v", c)
		}
	}
	// The bounding-drop loop uses All().Difference(kept): the result
	// must be exactly the complement within the known range.
	kept := Of(NetBindService, NetRaw)
	drop := all.Difference(kept)
	if drop.Has(NetBindService) || drop.Has(NetRaw) {
		t.Error("Difference kept a retained capability")
	}
	if drop.Count() != all.Count()-2 {
		t.Errorf("Difference dropped %d caps, want %d", drop.Count(), all.Count()-2)
	}
}

func TestSetCapsOrdering(t *testing.T) {
	s := Of(SysAdmin, Chown, NetRaw)
	caps := s.Caps()
	want := []Cap{Chown, NetRaw, SysAdmin}
	if len(caps) != len(want) {
		t.Fatalf("Caps() = %v, want %v", caps, want)
	}
	for i := range want {
		if caps[i] != want[i] {
			t.Fatalf("Caps() = %v, want %v", caps, want)
		}
	}
}

func TestSetTextMarshaling(t *testing.T) {
	s := Of(DacOverride, Setpcap)
	text, err := s.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back Set
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != s {
		t.Errorf("text round trip = %v, want %v", back, s)
	}
	var invalid Set
	if err := invalid.UnmarshalText([]byte("cap_nonsense")); err == nil {
		t.Error("UnmarshalText accepted an unknown capability")
	}
}
