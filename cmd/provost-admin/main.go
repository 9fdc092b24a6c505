// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// provost-admin edits and inspects the provost policy database.
//
// Every mutating verb loads the policy, applies the edit in memory,
// validates the whole tree, and saves atomically, so a failed edit
// never leaves a half-written policy behind.
package main

import (
	"fmt"
	"os"

	"github.com/provost-linux/provost/cmd/provost-admin/cli"
	"github.com/provost-linux/provost/lib/process"
	"github.com/provost-linux/provost/lib/version"
)

func main() {
	if err := root().Execute(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func root() *cli.Command {
	return &cli.Command{
		Name: "provost-admin",
		Description: `provost-admin administers the provost policy database.

Roles grant named users and group-sets the right to run matched
commands with selected Linux capabilities, optionally as another
identity. The policy is evaluated in document order: the first role
and task that match an invocation decide it.`,
		Subcommands: []*cli.Command{
			listCommand(),
			newRoleCommand(),
			delRoleCommand(),
			grantCommand(),
			revokeCommand(),
			addTaskCommand(),
			delTaskCommand(),
			optionCommand(),
			journalCommand(),
			verifyCommand(),
			{
				Name:    "version",
				Summary: "print version information",
				Run: func(args []string) error {
					fmt.Printf("provost-admin %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
