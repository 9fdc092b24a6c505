// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"strings"
)

// User is a resolved account name and numeric id.
type User struct {
	Name string
	UID  uint32
}

// Group is a resolved group name and numeric id. When a gid has no
// name in the group database the decimal gid string stands in for the
// name, so group-set matching stays well-defined.
type Group struct {
	Name string
	GID  uint32
}

// Credential is the caller's identity snapshot at decision time:
// the invoking user, the full group membership with the primary group
// first, the controlling terminal's device number (0 when the process
// has no controlling terminal), and the parent process id. A
// Credential is built once per invocation and never mutated.
type Credential struct {
	User   User
	Groups []Group
	TTY    uint64
	PPID   int
}

// HasTTY reports whether the credential carries a controlling
// terminal.
func (c Credential) HasTTY() bool { return c.TTY != 0 }

// GroupNames returns the set of group names held by the credential.
func (c Credential) GroupNames() map[string]bool {
	names := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		names[g.Name] = true
	}
	return names
}

// String renders the credential for logs and journal entries:
// "alice(1000) groups=[alice wheel] tty=34816 ppid=4242".
func (c Credential) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(%d) groups=[", c.User.Name, c.User.UID)
	for i, g := range c.Groups {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(g.Name)
	}
	fmt.Fprintf(&b, "] tty=%d ppid=%d", c.TTY, c.PPID)
	return b.String()
}

// Command is a requested command: the executable path as typed by the
// caller plus the remaining argument vector, both taken verbatim.
type Command struct {
	Path string
	Args []string
}

// Text returns the single-string form matched against command
// patterns: the path and arguments joined by single spaces.
func (c Command) Text() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return c.Path + " " + strings.Join(c.Args, " ")
}
