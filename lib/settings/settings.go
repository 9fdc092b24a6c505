// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings provides engine configuration for provost
// binaries.
//
// Settings are loaded from a single YAML file at a fixed path. The
// execution front-end runs setuid-root, so unlike ordinary tools the
// file location is never taken from the environment and no variable
// expansion is performed on configured paths — an attacker-controlled
// environment must not be able to redirect the policy database, the
// session store, or the authentication helper. The administration
// front-end (which already requires root) may point at an alternate
// file with --config for staging edits.
//
// A missing settings file is not an error: every field has a
// built-in default, and a stock installation works without writing
// one.
package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Path is the fixed location of the settings file.
const Path = "/etc/provost/config.yaml"

// StorageMethodJSONC is the only supported policy storage method.
// The field exists so a future method is a declared migration, not a
// guess from file contents.
const StorageMethodJSONC = "jsonc"

// Settings is the engine configuration.
type Settings struct {
	// Storage locates the policy database.
	Storage StorageSettings `yaml:"storage"`

	// Session configures the re-authentication session cache.
	Session SessionSettings `yaml:"session"`

	// Journal configures the audit journal.
	Journal JournalSettings `yaml:"journal"`

	// Auth configures the authentication helper.
	Auth AuthSettings `yaml:"auth"`
}

// StorageSettings locates the policy database.
type StorageSettings struct {
	// Method is the storage backend. Only "jsonc" is supported.
	Method string `yaml:"method"`

	// Path is the policy database file.
	Path string `yaml:"path"`
}

// SessionSettings configures the re-authentication session cache.
type SessionSettings struct {
	// TTL is how long a successful authentication is remembered for
	// the same user/terminal/parent-session tuple, as a Go duration
	// string. Zero disables the cache (every invocation
	// re-authenticates).
	TTL string `yaml:"ttl"`

	// Path is the SQLite session database.
	Path string `yaml:"path"`
}

// JournalSettings configures the audit journal.
type JournalSettings struct {
	// Dir is the journal directory.
	Dir string `yaml:"dir"`

	// Compression is applied to rotated journal chunks:
	// "none", "lz4", or "zstd".
	Compression string `yaml:"compression"`

	// KeyFile, when set, points at a 32-byte key; rotated chunks are
	// then sealed (encrypted and authenticated) with it.
	KeyFile string `yaml:"keyfile"`

	// RotateSize is the active chunk size in bytes that triggers
	// rotation.
	RotateSize int64 `yaml:"rotate_size"`
}

// AuthSettings configures the authentication helper.
type AuthSettings struct {
	// Helper is a checkpassword-style verifier binary. Empty
	// disables interactive authentication: a request whose session
	// is stale is denied instead of prompted.
	Helper string `yaml:"helper"`
}

// Default returns the built-in settings: the values a stock
// installation runs with when no settings file exists.
func Default() *Settings {
	return &Settings{
		Storage: StorageSettings{
			Method: StorageMethodJSONC,
			Path:   "/etc/provost/policy.jsonc",
		},
		Session: SessionSettings{
			TTL:  "5m",
			Path: "/run/provost/sessions.db",
		},
		Journal: JournalSettings{
			Dir:         "/var/log/provost",
			Compression: "zstd",
			RotateSize:  1 << 20,
		},
		Auth: AuthSettings{
			Helper: "",
		},
	}
}

// Load reads the settings from the fixed path. A missing file yields
// the defaults; any other read or parse failure is an error.
func Load() (*Settings, error) {
	s, err := LoadFile(Path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return s, err
}

// LoadFile reads settings from an explicit path, merging the file
// over the defaults and validating the result.
func LoadFile(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks the settings for errors. All problems are reported
// together.
func (s *Settings) Validate() error {
	var errs []error

	if s.Storage.Method != StorageMethodJSONC {
		errs = append(errs, fmt.Errorf("storage.method %q is not supported (only %q)", s.Storage.Method, StorageMethodJSONC))
	}
	if s.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if s.Session.Path == "" {
		errs = append(errs, errors.New("session.path is required"))
	}
	if _, err := time.ParseDuration(s.Session.TTL); s.Session.TTL != "" && err != nil {
		errs = append(errs, fmt.Errorf("session.ttl: %w", err))
	}
	if s.Journal.Dir == "" {
		errs = append(errs, errors.New("journal.dir is required"))
	}
	compressions := []string{"none", "lz4", "zstd"}
	if !contains(compressions, s.Journal.Compression) {
		errs = append(errs, fmt.Errorf("journal.compression must be one of: %v", compressions))
	}
	if s.Journal.RotateSize <= 0 {
		errs = append(errs, errors.New("journal.rotate_size must be positive"))
	}

	return errors.Join(errs...)
}

// SessionTTL returns the parsed session TTL. Call after Validate; an
// empty or unparseable value is zero (cache disabled).
func (s *Settings) SessionTTL() time.Duration {
	if s.Session.TTL == "" {
		return 0
	}
	ttl, err := time.ParseDuration(s.Session.TTL)
	if err != nil {
		return 0
	}
	return ttl
}

func contains(slice []string, v string) bool {
	for _, elem := range slice {
		if elem == v {
			return true
		}
	}
	return false
}
