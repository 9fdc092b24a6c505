// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/provost-linux/provost/cmd/provost-admin/cli"
	"github.com/provost-linux/provost/policy"
)

func listCommand() *cli.Command {
	var opts struct {
		config      string
		showOptions bool
	}
	return &cli.Command{
		Name:    "list",
		Summary: "render roles, actors, and tasks",
		Usage:   "provost-admin list [role] [flags]",
		Examples: []cli.Example{
			{Description: "the whole policy", Command: "provost-admin list"},
			{Description: "one role, with its option blocks", Command: "provost-admin list deploy -o"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			addConfigFlag(flagSet, &opts.config)
			flagSet.BoolVarP(&opts.showOptions, "options", "o", false, "include option blocks")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("at most one role name, got %d arguments", len(args))
			}
			tree, _, err := loadTree(opts.config)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				role, err := findRole(tree, args[0])
				if err != nil {
					return err
				}
				printRole(role, opts.showOptions)
				return nil
			}

			if opts.showOptions && tree.Global != nil {
				fmt.Println("global options:")
				printOptions(tree.Global, "  ")
			}
			if len(tree.Roles) == 0 {
				fmt.Println("policy has no roles")
				return nil
			}
			for _, role := range tree.Roles {
				printRole(role, opts.showOptions)
			}
			return nil
		},
	}
}

func printRole(role *policy.Role, showOptions bool) {
	fmt.Printf("role %s\n", role.Name)
	if len(role.Users) > 0 {
		fmt.Printf("  users: %s\n", strings.Join(role.Users, ", "))
	}
	if len(role.Groups) > 0 {
		sets := make([]string, len(role.Groups))
		for i, set := range role.Groups {
			sets[i] = set.String()
		}
		fmt.Printf("  groups: %s\n", strings.Join(sets, ", "))
	}
	if showOptions && role.Options != nil {
		fmt.Println("  options:")
		printOptions(role.Options, "    ")
	}

	for _, task := range role.Tasks {
		fmt.Printf("  task %s\n", task.ID)
		writer := tabwriter.NewWriter(os.Stdout, 2, 0, 1, ' ', 0)
		fmt.Fprintf(writer, "    commands:\t%s\n", strings.Join(task.Commands, ", "))
		if caps := task.CapSet(); !caps.IsEmpty() {
			fmt.Fprintf(writer, "    caps:\t%s\n", caps)
		}
		if task.SetUser != "" || len(task.SetGroups) != 0 {
			fmt.Fprintf(writer, "    runs as:\t%s\n", identityText(task.SetUser, task.SetGroups))
		}
		if task.Purpose != "" {
			fmt.Fprintf(writer, "    purpose:\t%s\n", task.Purpose)
		}
		writer.Flush()
		if showOptions && task.Options != nil {
			fmt.Println("    options:")
			printOptions(task.Options, "      ")
		}
	}
}

// printOptions renders only the fields the block actually sets;
// unset fields inherit and showing them here would misread as local.
func printOptions(block *policy.Options, indent string) {
	if block.Path != nil {
		fmt.Printf("%spath: %s\n", indent, *block.Path)
	}
	if block.EnvKeep != nil {
		fmt.Printf("%senv-keep: %s\n", indent, strings.Join(block.EnvKeep, ","))
	}
	if block.EnvCheck != nil {
		fmt.Printf("%senv-check: %s\n", indent, strings.Join(block.EnvCheck, ","))
	}
	if block.AllowRoot != nil {
		fmt.Printf("%sallow-root: %s\n", indent, strconv.FormatBool(*block.AllowRoot))
	}
	if block.AllowBounding != nil {
		fmt.Printf("%sallow-bounding: %s\n", indent, strconv.FormatBool(*block.AllowBounding))
	}
	if block.WildcardDenied != nil {
		fmt.Printf("%swildcard-denied: %q\n", indent, *block.WildcardDenied)
	}
}

func identityText(user string, groups []string) string {
	switch {
	case len(groups) == 0:
		return user
	case user == "":
		return ":" + strings.Join(groups, ",")
	default:
		return user + ":" + strings.Join(groups, ",")
	}
}
