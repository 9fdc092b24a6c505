// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package transition

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestFilterEnv(t *testing.T) {
	environ := []string{
		"HOME=/home/alice",
		"USER=alice",
		"PATH=/home/alice/bin:/usr/bin",
		"LD_PRELOAD=/tmp/evil.so",
		"LANG=en_US.UTF-8",
		"LC_ALL=C.UTF-8",
		"TERM=xterm-256color",
		"PROMPT_COMMAND=. /tmp/pwn",
		"EMPTY=",
		"=weird",
	}
	keep := []string{"HOME", "USER"}
	check := []string{"LANG", "LC_*", "TERM", "PROMPT_COMMAND", "EMPTY"}

	got := FilterEnv(environ, keep, check, "/usr/sbin:/usr/bin")
	want := []string{
		"HOME=/home/alice",
		"USER=alice",
		"LANG=en_US.UTF-8",
		"LC_ALL=C.UTF-8",
		"TERM=xterm-256color",
		"PATH=/usr/sbin:/usr/bin",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterEnv:\n got %q\nwant %q", got, want)
	}
}

func TestFilterEnvKeepIsVerbatim(t *testing.T) {
	// Keep-listed variables pass without the value check; only the
	// checklist is inspected.
	environ := []string{"DISPLAY=:0", "XAUTHORITY=/home/alice/.Xauthority"}
	got := FilterEnv(environ, []string{"DISPLAY", "XAUTHORITY"}, nil, "/bin")
	want := []string{"DISPLAY=:0", "XAUTHORITY=/home/alice/.Xauthority", "PATH=/bin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterEnv:\n got %q\nwant %q", got, want)
	}
}

func TestFilterEnvReplacesInheritedPath(t *testing.T) {
	// Even a keep-listed PATH cannot survive; the resolved value is
	// authoritative.
	got := FilterEnv([]string{"PATH=/tmp"}, []string{"PATH"}, nil, "/usr/bin")
	want := []string{"PATH=/usr/bin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterEnv:\n got %q\nwant %q", got, want)
	}
}

func TestCheckVar(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"LANG", "en_US.UTF-8", true},
		{"LANG", "", false},
		{"", "x", false},
		{"COLORTERM", "truecolor", true},
		{"LINGUAS", "en fr de", true},
		{"LC_ALL", "../evil", false},
		{"TERM", "xterm%n", false},
		{"TERM", "/dev/tty", false},
		{"TZ", "Europe/Paris", true},
		{"TZ", ":Europe/Paris", true},
		{"TZ", "/etc/passwd", false},
		{"TZ", ":/etc/passwd", false},
		{"TZ", "Europe/../../../etc/passwd", false},
		{"TZ", "America/New_York\n", false},
		{"TZ", "UTC0", true},
	}
	for _, tt := range tests {
		if got := checkVar(tt.name, tt.value); got != tt.want {
			t.Errorf("checkVar(%q, %q) = %v, want %v", tt.name, tt.value, got, tt.want)
		}
	}
}

func TestTzIsSafeLength(t *testing.T) {
	if tzIsSafe(strings.Repeat("A", 4096)) {
		t.Error("oversized TZ accepted")
	}
	if !tzIsSafe(strings.Repeat("A", 4095)) {
		t.Error("maximum-length TZ rejected")
	}
}

func TestLookupExecutableSearchesPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "deployctl")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := LookupExecutable("deployctl", "/nonexistent:"+dir)
	if err != nil {
		t.Fatalf("LookupExecutable: %v", err)
	}
	if got != bin {
		t.Errorf("resolved %q, want %q", got, bin)
	}
}

func TestLookupExecutableSkipsRelativeEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tool"), []byte{}, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	if _, err := LookupExecutable("tool", ".:"); err == nil {
		t.Error("relative PATH entry supplied the binary")
	}
}

func TestLookupExecutableRejectsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(plain, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LookupExecutable(plain, "/bin"); err == nil {
		t.Error("non-executable file accepted")
	}
	if _, err := LookupExecutable("notes.txt", dir); err == nil {
		t.Error("non-executable file found through PATH")
	}
}

func TestLookupExecutableUsesExplicitPath(t *testing.T) {
	target := writeScript(t)
	got, err := LookupExecutable(target, "/bin")
	if err != nil {
		t.Fatalf("LookupExecutable: %v", err)
	}
	if got != target {
		t.Errorf("resolved %q, want %q", got, target)
	}
}
