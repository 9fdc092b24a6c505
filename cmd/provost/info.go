// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/provost-linux/provost/policy"
)

// printRights answers "-i": with a command it lists every role/task
// that would authorize it (the first line is the one a plain
// invocation would use); without one it lists the roles the caller
// may assume and the tasks they carry. Nothing is executed and no
// authentication is required, since the output only restates what
// the policy already grants the caller.
func printRights(tree *policy.Tree, cred policy.Credential, roleName string, args []string) error {
	if len(args) > 0 {
		return printCommandRights(tree, cred, roleName, policy.Command{
			Path: args[0],
			Args: args[1:],
		})
	}
	return printRoleRights(tree, cred, roleName)
}

func printCommandRights(tree *policy.Tree, cred policy.Credential, roleName string, cmd policy.Command) error {
	decisions := tree.MatchAll(cred, cmd)
	if roleName != "" {
		kept := decisions[:0]
		for _, dec := range decisions {
			if dec.Role().Name == roleName {
				kept = append(kept, dec)
			}
		}
		decisions = kept
	}
	if len(decisions) == 0 {
		return &policy.NoMatchError{
			User:    cred.User.Name,
			Role:    roleName,
			Command: cmd.Text(),
		}
	}

	writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "ROLE\tTASK\tCAPS\tRUNS AS")
	for _, dec := range decisions {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			dec.Role().Name,
			dec.Task().ID,
			capsText(dec.Caps.String()),
			runsAsText(dec.SetUser, dec.SetGroups),
		)
	}
	return writer.Flush()
}

func printRoleRights(tree *policy.Tree, cred policy.Credential, roleName string) error {
	matched := 0
	for _, role := range tree.Roles {
		if roleName != "" && role.Name != roleName {
			continue
		}
		if !role.MatchesActor(cred) {
			continue
		}
		matched++

		fmt.Printf("role %s\n", role.Name)
		writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
		for _, task := range role.Tasks {
			fmt.Fprintf(writer, "  %s\t%s\t%s\t%s\n",
				task.ID,
				strings.Join(task.Commands, ", "),
				capsText(task.CapSet().String()),
				runsAsText(task.SetUser, task.SetGroups),
			)
		}
		writer.Flush()
		for _, task := range role.Tasks {
			if task.Purpose != "" {
				fmt.Printf("  %s: %s\n", task.ID, task.Purpose)
			}
		}
	}

	if matched == 0 {
		if roleName != "" {
			fmt.Printf("role %q does not include user %q\n", roleName, cred.User.Name)
		} else {
			fmt.Printf("no role includes user %q\n", cred.User.Name)
		}
	}
	return nil
}

func capsText(caps string) string {
	if caps == "" {
		return "-"
	}
	return caps
}

func runsAsText(user string, groups []string) string {
	switch {
	case user == "" && len(groups) == 0:
		return "caller"
	case len(groups) == 0:
		return user
	case user == "":
		return "caller:" + strings.Join(groups, ",")
	default:
		return user + ":" + strings.Join(groups, ",")
	}
}
