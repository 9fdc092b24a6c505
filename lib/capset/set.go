// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package capset

import (
	"fmt"
	"math/bits"
	"strings"
)

// Set is an immutable set of capabilities, one bit per capability in
// kernel numbering order. The zero value is the empty set.
type Set uint64

// Of returns the set containing exactly the given capabilities.
// Out-of-range caps panic: the constants in this package are the only
// intended arguments.
func Of(caps ...Cap) Set {
	var s Set
	for _, c := range caps {
		if !c.Valid() {
			panic(fmt.Sprintf("capset: capability %d out of range", int(c)))
		}
		s |= 1 << uint(c)
	}
	return s
}

// All returns the set of every capability known to this build.
func All() Set {
	return Set(1<<uint(LastCap+1) - 1)
}

// ParseSet parses a comma-separated list of capability names into a
// Set. Element matching follows ParseCap (case-insensitive, optional
// "cap_" prefix, surrounding whitespace ignored). The special elements
// "*" and "all" expand to every known capability. Empty or
// whitespace-only input is the empty set; an empty element between
// commas is an error. Any unknown name fails the whole parse.
func ParseSet(text string) (Set, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	var s Set
	for _, elem := range strings.Split(text, ",") {
		switch strings.ToLower(strings.TrimSpace(elem)) {
		case "":
			return 0, fmt.Errorf("empty element in capability list %q", text)
		case "*", "all":
			s = All()
		default:
			c, err := ParseCap(elem)
			if err != nil {
				return 0, err
			}
			s |= 1 << uint(c)
		}
	}
	return s, nil
}

// String returns the canonical serialization: lower-case "cap_" names
// joined by commas in ascending bit order. The empty set renders as
// "". Parsing a formatted set always reproduces the same set, and
// formatting is stable across parse/format cycles.
func (s Set) String() string {
	if s == 0 {
		return ""
	}
	parts := make([]string, 0, s.Count())
	for _, c := range s.Caps() {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}

// Has reports whether c is in the set.
func (s Set) Has(c Cap) bool {
	return c.Valid() && s&(1<<uint(c)) != 0
}

// IsEmpty reports whether the set contains no capabilities.
func (s Set) IsEmpty() bool { return s == 0 }

// Count returns the number of capabilities in the set.
func (s Set) Count() int { return bits.OnesCount64(uint64(s)) }

// Add returns the set with c added.
func (s Set) Add(c Cap) Set {
	if !c.Valid() {
		return s
	}
	return s | 1<<uint(c)
}

// Remove returns the set with c removed.
func (s Set) Remove(c Cap) Set {
	if !c.Valid() {
		return s
	}
	return s &^ (1 << uint(c))
}

// Union returns the set of capabilities in either s or t.
func (s Set) Union(t Set) Set { return s | t }

// Intersect returns the set of capabilities in both s and t.
func (s Set) Intersect(t Set) Set { return s & t }

// Difference returns the set of capabilities in s but not in t.
func (s Set) Difference(t Set) Set { return s &^ t }

// Caps returns the set's capabilities in ascending bit order.
func (s Set) Caps() []Cap {
	caps := make([]Cap, 0, s.Count())
	for c := Chown; c <= LastCap; c++ {
		if s&(1<<uint(c)) != 0 {
			caps = append(caps, c)
		}
	}
	return caps
}

// MarshalText implements encoding.TextMarshaler using the canonical
// comma-joined form.
func (s Set) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler via ParseSet.
func (s *Set) UnmarshalText(text []byte) error {
	parsed, err := ParseSet(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
