// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package capset

import (
	"errors"
	"testing"
)

func TestParseCap(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Cap
	}{
		{"bare lower", "sys_admin", SysAdmin},
		{"prefixed lower", "cap_sys_admin", SysAdmin},
		{"prefixed upper", "CAP_SYS_ADMIN", SysAdmin},
		{"mixed case", "Cap_Net_Bind_Service", NetBindService},
		{"surrounding space", "  cap_chown  ", Chown},
		{"first bit", "chown", Chown},
		{"last bit", "cap_checkpoint_restore", CheckpointRestore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCap(tt.input)
			if err != nil {
				t.Fatalf("ParseCap(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseCap(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCapUnknown(t *testing.T) {
	for _, input := range []string{"sys_admim", "cap_", "cap_root", "42"} {
		_, err := ParseCap(input)
		if err == nil {
			t.Fatalf("ParseCap(%q): expected error", input)
		}
		var unknown *UnknownCapError
		if !errors.As(err, &unknown) {
			t.Fatalf("ParseCap(%q): error %v is not UnknownCapError", input, err)
		}
	}
}

func TestCapString(t *testing.T) {
	if got := SysAdmin.String(); got != "cap_sys_admin" {
		t.Errorf("SysAdmin.String() = %q, want %q", got, "cap_sys_admin")
	}
	if got := Cap(99).String(); got != "cap_99?" {
		t.Errorf("Cap(99).String() = %q, want %q", got, "cap_99?")
	}
}

func TestCapStringParseRoundTrip(t *testing.T) {
	for c := Chown; c <= LastCap; c++ {
		parsed, err := ParseCap(c.String())
		if err != nil {
			t.Fatalf("ParseCap(%q): %v", c.String(), err)
		}
		if parsed != c {
			t.Errorf("round trip of %v produced %v", c, parsed)
		}
	}
}
