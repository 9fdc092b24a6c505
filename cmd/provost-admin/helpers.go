// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/provost-linux/provost/lib/settings"
	"github.com/provost-linux/provost/policy"
	"github.com/provost-linux/provost/policy/store"
)

// addConfigFlag wires the shared --config flag into a verb's flag
// set. An empty value means the fixed settings path with
// missing-file-is-defaults semantics; an explicit path must exist.
func addConfigFlag(flagSet *pflag.FlagSet, config *string) {
	flagSet.StringVar(config, "config", "", "settings file (default "+settings.Path+")")
}

// configFlags builds a flag set containing only --config, for verbs
// with no flags of their own.
func configFlags(name string, config *string) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		addConfigFlag(flagSet, config)
		return flagSet
	}
}

func settingsFrom(path string) (*settings.Settings, error) {
	if path == "" {
		return settings.Load()
	}
	return settings.LoadFile(path)
}

// loadTree reads the policy database named by the settings and
// returns it with its path.
func loadTree(configPath string) (*policy.Tree, string, error) {
	cfg, err := settingsFrom(configPath)
	if err != nil {
		return nil, "", err
	}
	tree, err := store.Load(cfg.Storage.Path)
	if err != nil {
		return nil, "", err
	}
	return tree, cfg.Storage.Path, nil
}

// editPolicy runs one policy mutation: load, edit, validate, atomic
// save. A missing policy file starts from an empty tree so the first
// new-role bootstraps the database.
func editPolicy(configPath string, edit func(*policy.Tree) error) error {
	cfg, err := settingsFrom(configPath)
	if err != nil {
		return err
	}

	tree, err := store.Load(cfg.Storage.Path)
	if errors.Is(err, os.ErrNotExist) {
		tree = policy.NewTree()
	} else if err != nil {
		return err
	}

	if err := edit(tree); err != nil {
		return err
	}
	tree.Reindex()
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	return store.Save(cfg.Storage.Path, tree)
}

// findRole resolves a role name or fails with the names that do
// exist, since admin typos are common and the list is short.
func findRole(tree *policy.Tree, name string) (*policy.Role, error) {
	if role := tree.Role(name); role != nil {
		return role, nil
	}
	if len(tree.Roles) == 0 {
		return nil, fmt.Errorf("role %q does not exist (policy has no roles)", name)
	}
	names := make([]string, len(tree.Roles))
	for i, role := range tree.Roles {
		names[i] = role.Name
	}
	return nil, fmt.Errorf("role %q does not exist (have: %s)", name, strings.Join(names, ", "))
}

// findTask resolves administrator task input (name, or digits for a
// positional id) within a role, failing with the ids that do exist.
func findTask(role *policy.Role, text string) (*policy.Task, error) {
	id, err := policy.ParseTaskID(text)
	if err != nil {
		return nil, err
	}
	if task := role.Task(id); task != nil {
		return task, nil
	}
	if len(role.Tasks) == 0 {
		return nil, fmt.Errorf("role %q has no tasks", role.Name)
	}
	ids := make([]string, len(role.Tasks))
	for i, task := range role.Tasks {
		ids[i] = task.ID.String()
	}
	return nil, fmt.Errorf("role %q has no task %s (have: %s)", role.Name, id, strings.Join(ids, ", "))
}
