// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestCurrentReflectsRealIdentity(t *testing.T) {
	cred, err := Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}

	if got, want := int(cred.User.UID), unix.Getuid(); got != want {
		t.Errorf("UID = %d, want real uid %d", got, want)
	}
	if cred.User.Name == "" {
		t.Error("user name is empty")
	}
	if len(cred.Groups) == 0 {
		t.Fatal("no groups in credential")
	}
	if got, want := int(cred.Groups[0].GID), unix.Getgid(); got != want {
		t.Errorf("Groups[0].GID = %d, want real primary gid %d", got, want)
	}
	if cred.PPID <= 0 {
		t.Errorf("PPID = %d, want a live parent", cred.PPID)
	}

	for i, g := range cred.Groups {
		if g.Name == "" {
			t.Errorf("group %d has no name, want at least the decimal gid", g.GID)
		}
		if i > 0 && g.GID == cred.Groups[0].GID {
			t.Errorf("primary gid %d repeats at position %d", g.GID, i)
		}
	}
}

func TestLookupUserRoot(t *testing.T) {
	u, err := LookupUser("root")
	if err != nil {
		t.Fatalf("LookupUser(root): %v", err)
	}
	if u.UID != 0 || u.Name != "root" {
		t.Errorf("root = %+v, want uid 0 named root", u)
	}

	if _, err := LookupUser("no-such-provost-user"); err == nil {
		t.Error("LookupUser accepted a nonexistent account")
	}
}
