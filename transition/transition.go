// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package transition

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/provost-linux/provost/lib/capset"
	"github.com/provost-linux/provost/policy"
)

// Config is the fully resolved input to a privilege transition. All
// policy evaluation has already happened by the time one is built:
// the capability set is the matched task's, the identity fields are
// resolved against the user database, and the option values come from
// the task-bound resolution.
type Config struct {
	// Caps is the capability state to install. Empty means the
	// target runs with no capabilities at all.
	Caps capset.Set

	// SetUser, when non-nil, is the identity the target runs as.
	// Nil leaves the invoking user's uid in place.
	SetUser *policy.User

	// SetGroups, when non-empty, replaces the group identity. The
	// first entry becomes the effective gid and the whole list
	// becomes the supplementary groups.
	SetGroups []policy.Group

	// AllowRoot, when false, sets no_new_privs before any other
	// change so the target and its descendants can never regain
	// privilege through setuid or file capabilities.
	AllowRoot bool

	// AllowBounding, when false, restricts the bounding set to Caps.
	AllowBounding bool

	// Path is the resolved search PATH, installed verbatim as the
	// target's PATH variable and used to locate the executable.
	Path string

	// EnvKeep and EnvCheck are the resolved environment policies.
	EnvKeep  []string
	EnvCheck []string

	// Command is the matched command as the user typed it.
	Command policy.Command

	// Environ is the invoking environment, os.Environ form.
	Environ []string
}

// Error reports the sequence step whose syscall failed. The step name
// is stable and appears in audit output, so callers can tell a failed
// identity change from a failed capability installation.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("privilege transition failed at %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sequencer drives one privilege transition.
type Sequencer struct {
	cfg Config
	sys system
}

// New returns a sequencer for the given resolved configuration.
func New(cfg Config) *Sequencer {
	return &Sequencer{cfg: cfg, sys: linuxSystem{}}
}

// Run applies the transition and replaces the process image. On
// success it does not return. Any failure returns an *Error naming
// the step; the caller must treat that as fatal, because the process
// may already hold a partially transitioned state.
func (s *Sequencer) Run() error {
	// Identity and capability changes must land on the thread that
	// performs the exec.
	runtime.LockOSThread()

	if !s.cfg.AllowRoot {
		if err := s.sys.SetNoNewPrivs(); err != nil {
			return &Error{Step: "no_new_privs", Err: err}
		}
	}

	if err := s.applyIdentity(); err != nil {
		return err
	}
	if err := s.applyCapabilities(); err != nil {
		return err
	}
	return s.execute()
}

// applyIdentity performs the forced uid change, then the forced group
// change. Each change runs inside the narrowest possible bracket: the
// enabling capability is raised immediately before the syscall and
// dropped immediately after.
func (s *Sequencer) applyIdentity() error {
	if u := s.cfg.SetUser; u != nil {
		if err := s.sys.RaiseEffective(capset.Setuid); err != nil {
			return &Error{Step: "raise setuid", Err: err}
		}
		if err := s.sys.SetEffectiveUID(u.UID); err != nil {
			return &Error{Step: "seteuid", Err: err}
		}
		if err := s.sys.DropEffective(capset.Setuid); err != nil {
			return &Error{Step: "drop setuid", Err: err}
		}
	}

	if len(s.cfg.SetGroups) == 0 {
		return nil
	}
	if err := s.sys.RaiseEffective(capset.Setgid); err != nil {
		return &Error{Step: "raise setgid", Err: err}
	}
	if err := s.sys.SetEffectiveGID(s.cfg.SetGroups[0].GID); err != nil {
		return &Error{Step: "setegid", Err: err}
	}
	gids := make([]uint32, len(s.cfg.SetGroups))
	for i, g := range s.cfg.SetGroups {
		gids[i] = g.GID
	}
	if err := s.sys.SetSupplementary(gids); err != nil {
		return &Error{Step: "setgroups", Err: err}
	}
	if err := s.sys.DropEffective(capset.Setgid); err != nil {
		return &Error{Step: "drop setgid", Err: err}
	}
	return nil
}

// applyCapabilities installs the target capability state under a
// setpcap bracket. Bounding restriction happens first because it
// needs setpcap in the effective set; the main state write then
// leaves effective empty, so the closing drop is a formality that
// keeps the bracket symmetric.
func (s *Sequencer) applyCapabilities() error {
	if err := s.sys.RaiseEffective(capset.Setpcap); err != nil {
		return &Error{Step: "raise setpcap", Err: err}
	}

	if !s.cfg.AllowBounding {
		if err := s.sys.RestrictBounding(s.cfg.Caps); err != nil {
			return &Error{Step: "restrict bounding", Err: err}
		}
	}

	if s.cfg.Caps.IsEmpty() {
		if err := s.sys.ClearAmbient(); err != nil {
			return &Error{Step: "clear ambient", Err: err}
		}
		if err := s.sys.InstallCapState(0); err != nil {
			return &Error{Step: "clear capabilities", Err: err}
		}
	} else {
		if err := s.sys.InstallCapState(s.cfg.Caps); err != nil {
			return &Error{Step: "install capabilities", Err: err}
		}
		// Ambient raises need the bits permitted and inheritable,
		// so they follow the state write.
		for _, c := range s.cfg.Caps.Caps() {
			if err := s.sys.RaiseAmbient(c); err != nil {
				return &Error{Step: fmt.Sprintf("raise ambient %v", c), Err: err}
			}
		}
	}

	if err := s.sys.DropEffective(capset.Setpcap); err != nil {
		return &Error{Step: "drop setpcap", Err: err}
	}
	return nil
}

// execute builds the child environment, locates the executable, and
// replaces the process image. A target lacking an interpreter line is
// retried through /bin/sh, matching execvp.
func (s *Sequencer) execute() error {
	env := FilterEnv(s.cfg.Environ, s.cfg.EnvKeep, s.cfg.EnvCheck, s.cfg.Path)

	target, err := LookupExecutable(s.cfg.Command.Path, s.cfg.Path)
	if err != nil {
		return &Error{Step: "resolve executable", Err: err}
	}

	argv := append([]string{s.cfg.Command.Path}, s.cfg.Command.Args...)
	err = s.sys.Exec(target, argv, env)
	if errors.Is(err, unix.ENOEXEC) {
		shArgv := append([]string{"/bin/sh", target}, s.cfg.Command.Args...)
		err = s.sys.Exec("/bin/sh", shArgv, env)
	}
	return &Error{Step: "exec", Err: err}
}
