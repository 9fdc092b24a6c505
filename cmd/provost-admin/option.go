// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/provost-linux/provost/cmd/provost-admin/cli"
	"github.com/provost-linux/provost/policy"
)

// optionKinds is the display order for "option get" without a field.
var optionKinds = []policy.OptionKind{
	policy.OptPath,
	policy.OptEnvKeep,
	policy.OptEnvCheck,
	policy.OptAllowRoot,
	policy.OptAllowBounding,
	policy.OptWildcardDenied,
}

func optionCommand() *cli.Command {
	return &cli.Command{
		Name:    "option",
		Summary: "inspect and edit the option override stack",
		Description: `Options resolve through a four-level stack: built-in defaults,
then the global block, then the selected role's, then the selected
task's. The most specific level that sets a field wins, each field
independently.

The position flags pick the level to operate on: no flags means
global, --role the role's block, --role with --task the task's.
"get" shows the value each field resolves to at that position and the
level it came from; "set" and "unset" edit that position's own block.`,
		Subcommands: []*cli.Command{
			optionGetCommand(),
			optionSetCommand(),
			optionUnsetCommand(),
		},
	}
}

// positionFlags wires the shared --role/--task selectors.
func positionFlags(flagSet *pflag.FlagSet, role, task *string) {
	flagSet.StringVar(role, "role", "", "operate on this role's options")
	flagSet.StringVar(task, "task", "", "operate on this task's options (requires --role)")
}

// stackAt binds an option stack at the selected position of the tree.
func stackAt(tree *policy.Tree, roleName, taskText string) (*policy.OptionStack, error) {
	if roleName == "" {
		if taskText != "" {
			return nil, errors.New("--task requires --role")
		}
		return policy.StackFromTree(tree), nil
	}
	role, err := findRole(tree, roleName)
	if err != nil {
		return nil, err
	}
	if taskText == "" {
		return policy.StackFromRole(tree, role.Index), nil
	}
	task, err := findTask(role, taskText)
	if err != nil {
		return nil, err
	}
	return policy.StackFromTask(tree, role.Index, task.Index), nil
}

func positionText(roleName, taskText string) string {
	switch {
	case roleName == "":
		return "global"
	case taskText == "":
		return "role " + roleName
	default:
		return fmt.Sprintf("role %s task %s", roleName, taskText)
	}
}

// resolveField renders one field's effective value and source level.
func resolveField(stack *policy.OptionStack, kind policy.OptionKind) (string, policy.Level) {
	switch kind {
	case policy.OptPath:
		value, level := stack.ResolvePath()
		return value, level
	case policy.OptEnvKeep:
		names, level := stack.ResolveEnvKeep()
		return strings.Join(names, ","), level
	case policy.OptEnvCheck:
		names, level := stack.ResolveEnvCheck()
		return strings.Join(names, ","), level
	case policy.OptAllowRoot:
		value, level := stack.ResolveAllowRoot()
		return strconv.FormatBool(value), level
	case policy.OptAllowBounding:
		value, level := stack.ResolveAllowBounding()
		return strconv.FormatBool(value), level
	case policy.OptWildcardDenied:
		value, level := stack.ResolveWildcardDenied()
		return value, level
	}
	return "", policy.LevelNone
}

func optionGetCommand() *cli.Command {
	var opts struct {
		config string
		role   string
		task   string
	}
	return &cli.Command{
		Name:    "get",
		Summary: "show effective option values at a position",
		Usage:   "provost-admin option get [field] [flags]",
		Examples: []cli.Example{
			{Description: "everything a task resolves", Command: "provost-admin option get --role deploy --task t1"},
			{Command: "provost-admin option get path --role deploy"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			addConfigFlag(flagSet, &opts.config)
			positionFlags(flagSet, &opts.role, &opts.task)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("at most one field name, got %d arguments", len(args))
			}
			tree, _, err := loadTree(opts.config)
			if err != nil {
				return err
			}
			stack, err := stackAt(tree, opts.role, opts.task)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				kind, err := policy.ParseOptionKind(args[0])
				if err != nil {
					return err
				}
				value, level := resolveField(stack, kind)
				fmt.Printf("%s = %s (from %s)\n", kind, value, level)
				return nil
			}
			for _, kind := range optionKinds {
				value, level := resolveField(stack, kind)
				fmt.Printf("%s = %s (from %s)\n", kind, value, level)
			}
			return nil
		},
	}
}

func optionSetCommand() *cli.Command {
	var opts struct {
		config string
		role   string
		task   string
	}
	return &cli.Command{
		Name:    "set",
		Summary: "set an option field at a position",
		Usage:   "provost-admin option set <field> <value> [flags]",
		Description: `set writes the field into the selected position's own block,
creating the block if the position had none. Shallower levels are
never edited: a task-bound set always lands on the task.

Fields: path, env-keep, env-check (comma-separated name lists, '*'
suffix matches by prefix), allow-root, allow-bounding (booleans),
wildcard-denied (the characters wildcards refuse to match).`,
		Examples: []cli.Example{
			{Command: "provost-admin option set path /usr/bin:/bin --role deploy"},
			{Description: "forbid regaining privilege for one task", Command: "provost-admin option set allow-root false --role deploy --task t1"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("set", pflag.ContinueOnError)
			addConfigFlag(flagSet, &opts.config)
			positionFlags(flagSet, &opts.role, &opts.task)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return errors.New("field name and value required")
			}
			kind, err := policy.ParseOptionKind(args[0])
			if err != nil {
				return err
			}
			return editPolicy(opts.config, func(tree *policy.Tree) error {
				stack, err := stackAt(tree, opts.role, opts.task)
				if err != nil {
					return err
				}
				if err := stack.SetField(kind, args[1]); err != nil {
					return err
				}
				fmt.Printf("%s set at %s\n", kind, positionText(opts.role, opts.task))
				return nil
			})
		},
	}
}

func optionUnsetCommand() *cli.Command {
	var opts struct {
		config string
		role   string
		task   string
	}
	return &cli.Command{
		Name:    "unset",
		Summary: "clear an option field at a position",
		Usage:   "provost-admin option unset <field> [flags]",
		Description: `unset clears the field from the selected position's block, so
resolution falls through to the next level down. Values set at
shallower levels are untouched.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("unset", pflag.ContinueOnError)
			addConfigFlag(flagSet, &opts.config)
			positionFlags(flagSet, &opts.role, &opts.task)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("field name required")
			}
			kind, err := policy.ParseOptionKind(args[0])
			if err != nil {
				return err
			}
			return editPolicy(opts.config, func(tree *policy.Tree) error {
				stack, err := stackAt(tree, opts.role, opts.task)
				if err != nil {
					return err
				}
				stack.Unset(kind)
				fmt.Printf("%s unset at %s\n", kind, positionText(opts.role, opts.task))
				return nil
			})
		},
	}
}
