// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package capset implements Linux capability sets as immutable values.
//
// A Set is a bitmask over the capabilities known to this build, one bit
// per capability in kernel numbering order. The zero value is the empty
// set and every operation returns a new Set, so sets can be copied,
// compared, and embedded freely.
//
// The package owns the capability name table. Parsing is
// case-insensitive and accepts names with or without the "cap_" prefix;
// formatting always produces the canonical lower-case "cap_" form in
// ascending bit order, so formatting a parsed set yields a stable
// canonical string. Unknown names are hard errors — a policy that names
// a capability this build does not know must not load with a silently
// narrower grant.
//
// The table is fixed at build time (through CAP_CHECKPOINT_RESTORE,
// kernel 5.9). The running kernel's actual last capability is not
// probed.
package capset
