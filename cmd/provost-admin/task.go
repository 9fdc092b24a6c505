// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/provost-linux/provost/cmd/provost-admin/cli"
	"github.com/provost-linux/provost/lib/capset"
	"github.com/provost-linux/provost/policy"
)

func addTaskCommand() *cli.Command {
	var opts struct {
		config   string
		commands []string
		caps     string
		setUser  string
		groups   []string
		purpose  string
		name     string
	}
	return &cli.Command{
		Name:    "add-task",
		Summary: "append a task to a role",
		Usage:   "provost-admin add-task <role> --cmd pattern... [flags]",
		Description: `add-task appends one task to a role, after its existing tasks.
Tasks are evaluated in that order, so a broad pattern added earlier
shadows a narrow one added later.

Command patterns match the full invocation text (path and arguments
joined by spaces). '*' and '?' are wildcards; characters in the
resolved wildcard-denied set stop them.`,
		Examples: []cli.Example{
			{
				Description: "wildcard restart with one capability",
				Command:     "provost-admin add-task deploy --cmd '/usr/bin/systemctl restart *' --caps sys_admin",
			},
			{
				Description: "run a literal command as another identity",
				Command:     "provost-admin add-task dbbackup --name dump --cmd '/usr/bin/pg_dumpall' --setuid postgres --setgid postgres",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("add-task", pflag.ContinueOnError)
			addConfigFlag(flagSet, &opts.config)
			flagSet.StringArrayVar(&opts.commands, "cmd", nil, "command pattern (repeatable, at least one)")
			flagSet.StringVar(&opts.caps, "caps", "", "capability list, comma-separated ('all' for every capability)")
			flagSet.StringVar(&opts.setUser, "setuid", "", "run matched commands as this user")
			flagSet.StringSliceVar(&opts.groups, "setgid", nil, "run with these groups (first becomes the effective gid)")
			flagSet.StringVar(&opts.purpose, "purpose", "", "free-text description shown in listings")
			flagSet.StringVar(&opts.name, "name", "", "stable task id (default: position in the role)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one role name required")
			}
			if len(opts.commands) == 0 {
				return errors.New("at least one --cmd pattern required")
			}

			task := &policy.Task{
				Commands:  opts.commands,
				SetUser:   opts.setUser,
				SetGroups: opts.groups,
				Purpose:   opts.purpose,
			}
			if opts.name != "" {
				id, err := policy.ParseTaskID(opts.name)
				if err != nil {
					return err
				}
				if id.IsIndex() {
					return fmt.Errorf("task name %q would collide with positional ids; pick a non-numeric name", opts.name)
				}
				task.ID = id
			}
			if opts.caps != "" {
				set, err := capset.ParseSet(opts.caps)
				if err != nil {
					return err
				}
				task.Caps = &set
			}

			return editPolicy(opts.config, func(tree *policy.Tree) error {
				role, err := findRole(tree, args[0])
				if err != nil {
					return err
				}
				if err := role.AddTask(task); err != nil {
					return err
				}
				fmt.Printf("added %s to role %s\n", task.ID, role.Name)
				return nil
			})
		},
	}
}

func delTaskCommand() *cli.Command {
	var opts struct{ config string }
	return &cli.Command{
		Name:    "del-task",
		Summary: "remove a task from a role",
		Usage:   "provost-admin del-task <role> <task> [flags]",
		Description: `del-task removes one task, identified by its name or its 1-based
position. Positional ids of the tasks that follow shift down by one,
exactly as a reload would renumber them.`,
		Flags: configFlags("del-task", &opts.config),
		Run: func(args []string) error {
			if len(args) != 2 {
				return errors.New("role name and task id required")
			}
			return editPolicy(opts.config, func(tree *policy.Tree) error {
				role, err := findRole(tree, args[0])
				if err != nil {
					return err
				}
				task, err := findTask(role, args[1])
				if err != nil {
					return err
				}
				id := task.ID
				role.DeleteTask(id)
				fmt.Printf("deleted %s from role %s\n", id, role.Name)
				return nil
			})
		},
	}
}
