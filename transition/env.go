// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package transition

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// FilterEnv builds the child environment from the invoking one. A
// variable survives only if its name is on the keep list, or on the
// check list with a value that passes the safety check. Everything
// else is dropped, including any inherited PATH: the resolved path
// value is installed as the sole PATH entry.
//
// List entries ending in '*' match by prefix, so a check entry like
// "LC_*" covers the whole locale family.
func FilterEnv(environ, keep, check []string, path string) []string {
	env := make([]string, 0, len(keep)+len(check)+1)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" || name == "PATH" {
			continue
		}
		switch {
		case nameListed(keep, name):
			env = append(env, kv)
		case nameListed(check, name) && checkVar(name, value):
			env = append(env, kv)
		}
	}
	return append(env, "PATH="+path)
}

func nameListed(list []string, name string) bool {
	for _, entry := range list {
		if prefix, wild := strings.CutSuffix(entry, "*"); wild {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		} else if entry == name {
			return true
		}
	}
	return false
}

// checkVar decides whether a checklist variable is safe to pass on.
// Empty values are dropped, TZ gets the timezone-specific check, and
// everything else is rejected when the value could smuggle a path or
// a format directive.
func checkVar(name, value string) bool {
	if name == "" || value == "" {
		return false
	}
	if name == "TZ" {
		return tzIsSafe(value)
	}
	return !strings.ContainsAny(value, "/%")
}

// tzIsSafe vets a TZ value against the tzfile(5) attack surface: the
// value must not escape the system zone directory or reach an
// unbounded path. A single leading ':' is the standard "pathname"
// marker and is stripped before the checks.
func tzIsSafe(value string) bool {
	value = strings.TrimPrefix(value, ":")
	if strings.HasPrefix(value, "/") {
		return false
	}
	for _, elem := range strings.Split(value, "/") {
		if elem == ".." {
			return false
		}
	}
	for i := 0; i < len(value); i++ {
		if value[i] <= ' ' || value[i] > '~' {
			return false
		}
	}
	return len(value) < unix.PathMax
}

// LookupExecutable resolves the command path the user typed to the
// file that will be executed. A path containing a separator is used
// as given; a bare name is searched through the resolved PATH value,
// skipping entries that are not absolute so the working directory
// can never supply the binary.
func LookupExecutable(command, path string) (string, error) {
	if strings.Contains(command, "/") {
		if err := checkExecutable(command); err != nil {
			return "", err
		}
		return command, nil
	}
	for _, dir := range strings.Split(path, ":") {
		if !strings.HasPrefix(dir, "/") {
			continue
		}
		candidate := dir + "/" + command
		if err := checkExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%q not found in PATH %q", command, path)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", path)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("%q is not executable: %w", path, fs.ErrPermission)
	}
	return nil
}
