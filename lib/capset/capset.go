// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package capset

import (
	"fmt"
	"strings"
)

// Cap is a single Linux capability, identified by its kernel bit
// position.
type Cap int

// Capability constants in kernel numbering order. The names mirror
// linux/capability.h with the CAP_ prefix dropped.
const (
	Chown             Cap = 0
	DacOverride       Cap = 1
	DacReadSearch     Cap = 2
	Fowner            Cap = 3
	Fsetid            Cap = 4
	Kill              Cap = 5
	Setgid            Cap = 6
	Setuid            Cap = 7
	Setpcap           Cap = 8
	LinuxImmutable    Cap = 9
	NetBindService    Cap = 10
	NetBroadcast      Cap = 11
	NetAdmin          Cap = 12
	NetRaw            Cap = 13
	IpcLock           Cap = 14
	IpcOwner          Cap = 15
	SysModule         Cap = 16
	SysRawio          Cap = 17
	SysChroot         Cap = 18
	SysPtrace         Cap = 19
	SysPacct          Cap = 20
	SysAdmin          Cap = 21
	SysBoot           Cap = 22
	SysNice           Cap = 23
	SysResource       Cap = 24
	SysTime           Cap = 25
	SysTtyConfig      Cap = 26
	Mknod             Cap = 27
	Lease             Cap = 28
	AuditWrite        Cap = 29
	AuditControl      Cap = 30
	Setfcap           Cap = 31
	MacOverride       Cap = 32
	MacAdmin          Cap = 33
	Syslog            Cap = 34
	WakeAlarm         Cap = 35
	BlockSuspend      Cap = 36
	AuditRead         Cap = 37
	Perfmon           Cap = 38
	Bpf               Cap = 39
	CheckpointRestore Cap = 40

	// LastCap is the highest capability known to this build.
	LastCap = CheckpointRestore
)

// names holds the bare (unprefixed) lower-case capability names,
// indexed by bit position.
var names = [LastCap + 1]string{
	Chown:             "chown",
	DacOverride:       "dac_override",
	DacReadSearch:     "dac_read_search",
	Fowner:            "fowner",
	Fsetid:            "fsetid",
	Kill:              "kill",
	Setgid:            "setgid",
	Setuid:            "setuid",
	Setpcap:           "setpcap",
	LinuxImmutable:    "linux_immutable",
	NetBindService:    "net_bind_service",
	NetBroadcast:      "net_broadcast",
	NetAdmin:          "net_admin",
	NetRaw:            "net_raw",
	IpcLock:           "ipc_lock",
	IpcOwner:          "ipc_owner",
	SysModule:         "sys_module",
	SysRawio:          "sys_rawio",
	SysChroot:         "sys_chroot",
	SysPtrace:         "sys_ptrace",
	SysPacct:          "sys_pacct",
	SysAdmin:          "sys_admin",
	SysBoot:           "sys_boot",
	SysNice:           "sys_nice",
	SysResource:       "sys_resource",
	SysTime:           "sys_time",
	SysTtyConfig:      "sys_tty_config",
	Mknod:             "mknod",
	Lease:             "lease",
	AuditWrite:        "audit_write",
	AuditControl:      "audit_control",
	Setfcap:           "setfcap",
	MacOverride:       "mac_override",
	MacAdmin:          "mac_admin",
	Syslog:            "syslog",
	WakeAlarm:         "wake_alarm",
	BlockSuspend:      "block_suspend",
	AuditRead:         "audit_read",
	Perfmon:           "perfmon",
	Bpf:               "bpf",
	CheckpointRestore: "checkpoint_restore",
}

// byName maps every accepted spelling (bare lower-case name) to its
// capability. Built once at init from the names table.
var byName = func() map[string]Cap {
	m := make(map[string]Cap, len(names))
	for i, name := range names {
		m[name] = Cap(i)
	}
	return m
}()

// UnknownCapError reports a capability name that this build does not
// recognize. Callers treat it as a hard configuration error.
type UnknownCapError struct {
	Name string
}

func (e *UnknownCapError) Error() string {
	return fmt.Sprintf("unknown capability %q", e.Name)
}

// ParseCap parses a single capability name. Matching is
// case-insensitive, ignores surrounding whitespace, and accepts an
// optional "cap_" prefix ("CAP_SYS_ADMIN", "sys_admin", and
// "cap_sys_admin" all parse to SysAdmin).
func ParseCap(name string) (Cap, error) {
	bare := strings.ToLower(strings.TrimSpace(name))
	bare = strings.TrimPrefix(bare, "cap_")
	if c, ok := byName[bare]; ok {
		return c, nil
	}
	return 0, &UnknownCapError{Name: strings.TrimSpace(name)}
}

// Valid reports whether c is within the known capability range.
func (c Cap) Valid() bool {
	return c >= 0 && c <= LastCap
}

// String returns the canonical name: lower-case with the "cap_"
// prefix, e.g. "cap_sys_admin". Out-of-range caps render as
// "cap_<n>?".
func (c Cap) String() string {
	if !c.Valid() {
		return fmt.Sprintf("cap_%d?", int(c))
	}
	return "cap_" + names[c]
}
