// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package store loads and saves the provost policy database.
//
// The database is a single root-owned JSONC file (JSON extended with
// // line comments, /* block comments */, and trailing commas).
// Comments are stripped on read; Save writes canonical indented JSON,
// so hand-written comments do not survive an administrative edit.
// Decoding is strict: unknown fields are rejected, because a
// misspelled option name in a privilege policy must fail loudly
// rather than silently grant the default.
//
// Saves are atomic: the new content is written to a temporary file in
// the same directory, synced, and renamed over the old database, so a
// crashed edit never leaves a half-written policy behind.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/provost-linux/provost/lib/capset"
	"github.com/provost-linux/provost/policy"
)

// DefaultPath is where the policy database lives unless the engine
// settings override it.
const DefaultPath = "/etc/provost/policy.jsonc"

// fileMode is the mode for the policy database: readable by root and
// the provost group only. The decision path runs with raised read
// privilege, so the file never needs to be world-readable.
const fileMode = 0o640

// ParseError reports a policy database that could not be loaded:
// unreadable file, malformed JSON, unknown fields, unsupported
// version, unknown capability names, or structural rule violations.
// Nothing privileged happens after a ParseError.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("policy %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Wire layout. Option and capability fields distinguish "absent" from
// "explicitly empty" with pointers, matching the in-memory model.

type fileDoc struct {
	Version string      `json:"version"`
	Options *optionsDoc `json:"options,omitempty"`
	Roles   []roleDoc   `json:"roles"`
}

type roleDoc struct {
	Name    string      `json:"name"`
	Users   []string    `json:"users,omitempty"`
	Groups  [][]string  `json:"groups,omitempty"`
	Tasks   []taskDoc   `json:"tasks,omitempty"`
	Options *optionsDoc `json:"options,omitempty"`
}

type taskDoc struct {
	ID           string      `json:"id,omitempty"`
	Commands     []string    `json:"commands"`
	Capabilities *[]string   `json:"capabilities,omitempty"`
	SetUser      string      `json:"setuid,omitempty"`
	SetGroups    []string    `json:"setgid,omitempty"`
	Purpose      string      `json:"purpose,omitempty"`
	Options      *optionsDoc `json:"options,omitempty"`
}

type optionsDoc struct {
	Path           *string   `json:"path,omitempty"`
	EnvKeep        *[]string `json:"env-keep,omitempty"`
	EnvCheck       *[]string `json:"env-check,omitempty"`
	AllowRoot      *bool     `json:"allow-root,omitempty"`
	AllowBounding  *bool     `json:"allow-bounding,omitempty"`
	WildcardDenied *string   `json:"wildcard-denied,omitempty"`
}

// Load reads, parses, and validates the policy database at path.
func Load(path string) (*policy.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	tree, err := Parse(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return tree, nil
}

// Parse builds a validated tree from JSONC bytes.
func Parse(data []byte) (*policy.Tree, error) {
	stripped := jsonc.ToJSON(data)

	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()
	var doc fileDoc
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}

	if doc.Version != policy.Version {
		return nil, fmt.Errorf("unsupported policy version %q (this build reads %q)", doc.Version, policy.Version)
	}

	tree := policy.NewTree()
	tree.Global = doc.Options.toPolicy()
	for _, rd := range doc.Roles {
		role := &policy.Role{
			Name:    rd.Name,
			Users:   rd.Users,
			Options: rd.Options.toPolicy(),
		}
		for _, names := range rd.Groups {
			role.Groups = append(role.Groups, policy.GroupSet(names))
		}
		if err := tree.AddRole(role); err != nil {
			return nil, err
		}
		for i, td := range rd.Tasks {
			task, err := td.toPolicy()
			if err != nil {
				return nil, fmt.Errorf("role %q task %d: %w", rd.Name, i+1, err)
			}
			if err := role.AddTask(task); err != nil {
				return nil, err
			}
		}
	}
	tree.Reindex()

	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

func (d *taskDoc) toPolicy() (*policy.Task, error) {
	task := &policy.Task{
		Commands:  d.Commands,
		SetUser:   d.SetUser,
		SetGroups: d.SetGroups,
		Purpose:   d.Purpose,
		Options:   d.Options.toPolicy(),
	}
	if d.ID != "" {
		task.ID = policy.NameID(d.ID)
	}
	if d.Capabilities != nil {
		var set capset.Set
		for _, name := range *d.Capabilities {
			c, err := capset.ParseCap(name)
			if err != nil {
				return nil, err
			}
			set = set.Add(c)
		}
		task.Caps = &set
	}
	return task, nil
}

func (d *optionsDoc) toPolicy() *policy.Options {
	if d == nil {
		return nil
	}
	opts := &policy.Options{
		Path:           d.Path,
		AllowRoot:      d.AllowRoot,
		AllowBounding:  d.AllowBounding,
		WildcardDenied: d.WildcardDenied,
	}
	if d.EnvKeep != nil {
		opts.EnvKeep = *d.EnvKeep
		if opts.EnvKeep == nil {
			opts.EnvKeep = []string{}
		}
	}
	if d.EnvCheck != nil {
		opts.EnvCheck = *d.EnvCheck
		if opts.EnvCheck == nil {
			opts.EnvCheck = []string{}
		}
	}
	return opts
}

// Save validates the tree and atomically rewrites the database file.
func Save(path string, tree *policy.Tree) error {
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid policy: %w", err)
	}

	data, err := Marshal(tree)
	if err != nil {
		return err
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("creating temporary policy file: %w", err)
	}

	// Write, sync, close, rename — in that order. Any failure removes
	// the temporary file and leaves the existing database untouched.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary policy file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary policy file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary policy file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming policy file into place: %w", err)
	}

	// Sync the parent directory so the rename survives a power loss.
	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}

// Marshal renders the tree as canonical indented JSON with a trailing
// newline.
func Marshal(tree *policy.Tree) ([]byte, error) {
	doc := fileDoc{
		Version: tree.Version,
		Options: optionsToDoc(tree.Global),
	}
	doc.Roles = make([]roleDoc, 0, len(tree.Roles))
	for _, role := range tree.Roles {
		rd := roleDoc{
			Name:    role.Name,
			Users:   role.Users,
			Options: optionsToDoc(role.Options),
		}
		for _, set := range role.Groups {
			rd.Groups = append(rd.Groups, []string(set))
		}
		for _, task := range role.Tasks {
			rd.Tasks = append(rd.Tasks, taskToDoc(task))
		}
		doc.Roles = append(doc.Roles, rd)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding policy: %w", err)
	}
	return append(data, '\n'), nil
}

func taskToDoc(task *policy.Task) taskDoc {
	td := taskDoc{
		Commands:  task.Commands,
		SetUser:   task.SetUser,
		SetGroups: task.SetGroups,
		Purpose:   task.Purpose,
		Options:   optionsToDoc(task.Options),
	}
	// Positional ids are assigned from document order on every load;
	// only names persist.
	if name, ok := task.ID.Name(); ok {
		td.ID = name
	}
	if task.Caps != nil {
		names := make([]string, 0, task.Caps.Count())
		for _, c := range task.Caps.Caps() {
			names = append(names, c.String())
		}
		td.Capabilities = &names
	}
	return td
}

func optionsToDoc(opts *policy.Options) *optionsDoc {
	if opts.IsEmpty() {
		return nil
	}
	doc := &optionsDoc{
		Path:           opts.Path,
		AllowRoot:      opts.AllowRoot,
		AllowBounding:  opts.AllowBounding,
		WildcardDenied: opts.WildcardDenied,
	}
	if opts.EnvKeep != nil {
		doc.EnvKeep = &opts.EnvKeep
	}
	if opts.EnvCheck != nil {
		doc.EnvCheck = &opts.EnvCheck
	}
	return doc
}
