// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity builds the caller's credential snapshot from the
// operating system.
//
// The snapshot uses the real (not effective) user and group ids: the
// execution front-end runs setuid-root, and authorization must be
// decided for the invoking user, not for root. Group names that have
// no entry in the group database keep their decimal gid as the name
// so group-set matching stays well-defined.
package identity

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/provost-linux/provost/policy"
)

// Current snapshots the invoking user: real uid and name, the full
// group membership with the real primary group first, the
// controlling terminal's device number (0 when no standard stream is
// a terminal), and the parent process id.
func Current() (policy.Credential, error) {
	uid := unix.Getuid()
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return policy.Credential{}, fmt.Errorf("resolving uid %d: %w", uid, err)
	}

	groups, err := currentGroups()
	if err != nil {
		return policy.Credential{}, err
	}

	return policy.Credential{
		User:   policy.User{Name: u.Username, UID: uint32(uid)},
		Groups: groups,
		TTY:    terminalDevice(),
		PPID:   os.Getppid(),
	}, nil
}

// currentGroups returns the real primary group followed by the
// supplementary groups in kernel order, primary duplicates removed.
func currentGroups() ([]policy.Group, error) {
	primary := unix.Getgid()
	supplementary, err := unix.Getgroups()
	if err != nil {
		return nil, fmt.Errorf("reading supplementary groups: %w", err)
	}

	groups := make([]policy.Group, 0, len(supplementary)+1)
	groups = append(groups, groupForGID(primary))
	for _, gid := range supplementary {
		if gid == primary {
			continue
		}
		groups = append(groups, groupForGID(gid))
	}
	return groups, nil
}

// groupForGID resolves a gid to a named group, falling back to the
// decimal gid when the group database has no entry.
func groupForGID(gid int) policy.Group {
	name := strconv.Itoa(gid)
	if g, err := user.LookupGroupId(name); err == nil {
		name = g.Name
	}
	return policy.Group{Name: name, GID: uint32(gid)}
}

// terminalDevice returns the device number of the controlling
// terminal, probing the three standard streams in order. 0 means no
// standard stream is a terminal.
func terminalDevice() uint64 {
	for _, f := range []*os.File{os.Stdin, os.Stdout, os.Stderr} {
		fd := int(f.Fd())
		if !term.IsTerminal(fd) {
			continue
		}
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			continue
		}
		return uint64(st.Rdev)
	}
	return 0
}

// LookupUser resolves an account name to a numeric identity. Used to
// resolve a task's forced setuid user before the transition.
func LookupUser(name string) (policy.User, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return policy.User{}, fmt.Errorf("resolving user %q: %w", name, err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return policy.User{}, fmt.Errorf("uid %q of user %q: %w", u.Uid, name, err)
	}
	return policy.User{Name: u.Username, UID: uint32(uid)}, nil
}

// LookupGroup resolves a group name to a numeric identity. Used to
// resolve a task's forced setgid list before the transition.
func LookupGroup(name string) (policy.Group, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return policy.Group{}, fmt.Errorf("resolving group %q: %w", name, err)
	}
	gid, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return policy.Group{}, fmt.Errorf("gid %q of group %q: %w", g.Gid, name, err)
	}
	return policy.Group{Name: g.Name, GID: uint32(gid)}, nil
}
