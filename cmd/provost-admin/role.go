// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/provost-linux/provost/cmd/provost-admin/cli"
	"github.com/provost-linux/provost/policy"
)

func newRoleCommand() *cli.Command {
	var opts struct{ config string }
	return &cli.Command{
		Name:    "new-role",
		Summary: "create an empty role",
		Usage:   "provost-admin new-role <name> [flags]",
		Flags:   configFlags("new-role", &opts.config),
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one role name required")
			}
			return editPolicy(opts.config, func(tree *policy.Tree) error {
				return tree.AddRole(&policy.Role{Name: args[0]})
			})
		},
	}
}

func delRoleCommand() *cli.Command {
	var opts struct{ config string }
	return &cli.Command{
		Name:    "del-role",
		Summary: "delete a role and its tasks",
		Usage:   "provost-admin del-role <name> [flags]",
		Flags:   configFlags("del-role", &opts.config),
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one role name required")
			}
			return editPolicy(opts.config, func(tree *policy.Tree) error {
				if _, err := findRole(tree, args[0]); err != nil {
					return err
				}
				tree.DeleteRole(args[0])
				return nil
			})
		},
	}
}

func grantCommand() *cli.Command {
	var opts struct {
		config string
		users  []string
		groups []string
	}
	return &cli.Command{
		Name:    "grant",
		Summary: "admit users or group-sets to a role",
		Usage:   "provost-admin grant <role> (--user name | --group a&b)... [flags]",
		Examples: []cli.Example{
			{Command: "provost-admin grant deploy --user alice --user bob"},
			{Description: "membership in both ops and dba required", Command: "provost-admin grant dbbackup --group 'ops&dba'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("grant", pflag.ContinueOnError)
			addConfigFlag(flagSet, &opts.config)
			flagSet.StringSliceVar(&opts.users, "user", nil, "user name to admit (repeatable)")
			flagSet.StringArrayVar(&opts.groups, "group", nil, "group-set to admit, names joined with '&' (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			return editActors(opts.config, args, opts.users, opts.groups, true)
		},
	}
}

func revokeCommand() *cli.Command {
	var opts struct {
		config string
		users  []string
		groups []string
	}
	return &cli.Command{
		Name:    "revoke",
		Summary: "remove users or group-sets from a role",
		Usage:   "provost-admin revoke <role> (--user name | --group a&b)... [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("revoke", pflag.ContinueOnError)
			addConfigFlag(flagSet, &opts.config)
			flagSet.StringSliceVar(&opts.users, "user", nil, "user name to remove (repeatable)")
			flagSet.StringArrayVar(&opts.groups, "group", nil, "group-set to remove, names joined with '&' (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			return editActors(opts.config, args, opts.users, opts.groups, false)
		},
	}
}

// editActors applies one grant or revoke batch. Both directions are
// idempotent: re-granting a present actor or revoking an absent one
// prints a notice and leaves the policy as it was.
func editActors(config string, args, users, groups []string, grant bool) error {
	if len(args) != 1 {
		return errors.New("exactly one role name required")
	}
	if len(users) == 0 && len(groups) == 0 {
		return errors.New("nothing to change: pass --user or --group")
	}

	sets := make([]policy.GroupSet, len(groups))
	for i, text := range groups {
		set, err := policy.ParseGroupSet(text)
		if err != nil {
			return err
		}
		sets[i] = set
	}

	verb := "revoked"
	if grant {
		verb = "granted"
	}

	return editPolicy(config, func(tree *policy.Tree) error {
		role, err := findRole(tree, args[0])
		if err != nil {
			return err
		}
		for _, user := range users {
			changed := false
			if grant {
				changed = role.GrantUser(user)
			} else {
				changed = role.RevokeUser(user)
			}
			reportActor(changed, verb, "user "+user, role.Name)
		}
		for _, set := range sets {
			changed := false
			if grant {
				changed = role.GrantGroupSet(set)
			} else {
				changed = role.RevokeGroupSet(set)
			}
			reportActor(changed, verb, "group-set "+set.String(), role.Name)
		}
		return nil
	})
}

func reportActor(changed bool, verb, actor, role string) {
	if changed {
		fmt.Printf("%s %s on role %s\n", verb, actor, role)
	} else {
		fmt.Printf("%s unchanged on role %s\n", actor, role)
	}
}
