// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package transition

import (
	"fmt"

	"github.com/moby/sys/capability"
	"golang.org/x/sys/unix"

	"github.com/provost-linux/provost/lib/capset"
)

// system is the set of kernel operations the sequencer drives. The
// production implementation talks to the real kernel; tests substitute
// a recording fake to verify ordering without holding any privilege.
type system interface {
	// SetNoNewPrivs sets the one-way no_new_privs flag on the
	// calling process.
	SetNoNewPrivs() error

	// RaiseEffective adds a single capability to the effective set,
	// leaving the other sets untouched.
	RaiseEffective(c capset.Cap) error

	// DropEffective removes a single capability from the effective
	// set, leaving the other sets untouched.
	DropEffective(c capset.Cap) error

	// SetEffectiveUID changes the effective user id.
	SetEffectiveUID(uid uint32) error

	// SetEffectiveGID changes the effective group id.
	SetEffectiveGID(gid uint32) error

	// SetSupplementary replaces the supplementary group list.
	SetSupplementary(gids []uint32) error

	// RestrictBounding drops every bounding-set capability not in
	// keep. An empty keep clears the bounding set entirely.
	RestrictBounding(keep capset.Set) error

	// InstallCapState writes the process capability sets: permitted
	// and inheritable become set, effective becomes empty.
	InstallCapState(set capset.Set) error

	// RaiseAmbient adds a single capability to the ambient set. The
	// capability must already be permitted and inheritable.
	RaiseAmbient(c capset.Cap) error

	// ClearAmbient empties the ambient set.
	ClearAmbient() error

	// Exec replaces the process image. It returns only on failure.
	Exec(path string, argv, env []string) error
}

// linuxSystem implements system against the real kernel.
type linuxSystem struct{}

func (linuxSystem) SetNoNewPrivs() error {
	return unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
}

func (linuxSystem) RaiseEffective(c capset.Cap) error {
	caps, err := loadProcessCaps()
	if err != nil {
		return err
	}
	caps.Set(capability.EFFECTIVE, capability.Cap(c))
	return caps.Apply(capability.CAPS)
}

func (linuxSystem) DropEffective(c capset.Cap) error {
	caps, err := loadProcessCaps()
	if err != nil {
		return err
	}
	caps.Unset(capability.EFFECTIVE, capability.Cap(c))
	return caps.Apply(capability.CAPS)
}

func (linuxSystem) SetEffectiveUID(uid uint32) error {
	return unix.Seteuid(int(uid))
}

func (linuxSystem) SetEffectiveGID(gid uint32) error {
	return unix.Setegid(int(gid))
}

func (linuxSystem) SetSupplementary(gids []uint32) error {
	list := make([]int, len(gids))
	for i, gid := range gids {
		list[i] = int(gid)
	}
	return unix.Setgroups(list)
}

func (linuxSystem) RestrictBounding(keep capset.Set) error {
	// The kernel may know more capabilities than the build does;
	// probe its upper bound so newer bits are dropped too.
	last, err := capability.LastCap()
	if err != nil {
		return fmt.Errorf("probing last capability: %w", err)
	}
	for c := capability.Cap(0); c <= last; c++ {
		if keep.Has(capset.Cap(c)) {
			continue
		}
		if err := unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(c), 0, 0, 0); err != nil {
			return fmt.Errorf("dropping bounding %v: %w", c, err)
		}
	}
	return nil
}

func (linuxSystem) InstallCapState(set capset.Set) error {
	// A fresh state object starts with every set empty, so applying
	// it writes effective as empty alongside the requested bits.
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	for _, c := range set.Caps() {
		caps.Set(capability.PERMITTED|capability.INHERITABLE, capability.Cap(c))
	}
	return caps.Apply(capability.CAPS)
}

func (linuxSystem) RaiseAmbient(c capset.Cap) error {
	return unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_RAISE, uintptr(c), 0, 0)
}

func (linuxSystem) ClearAmbient() error {
	return unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_CLEAR_ALL, 0, 0, 0)
}

func (linuxSystem) Exec(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}

func loadProcessCaps() (capability.Capabilities, error) {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return nil, err
	}
	if err := caps.Load(); err != nil {
		return nil, fmt.Errorf("loading capability state: %w", err)
	}
	return caps, nil
}
