// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/provost-linux/provost/cmd/provost-admin/cli"
	"github.com/provost-linux/provost/lib/binhash"
	"github.com/provost-linux/provost/policy/store"
)

func verifyCommand() *cli.Command {
	var config string
	return &cli.Command{
		Name:    "verify",
		Summary: "validate the policy database and print its fingerprint",
		Usage:   "provost-admin verify [flags]",
		Description: `verify parses and validates the policy database without changing
it. The printed fingerprint is the hash the audit journal records
with every decision, so a journal entry can be matched to the exact
policy revision it was decided under.`,
		Examples: []cli.Example{
			{Command: "provost-admin verify"},
			{Description: "check a staged policy before installing it", Command: "provost-admin verify --config staging.yaml"},
		},
		Flags: configFlags("verify", &config),
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("verify takes no positional arguments, got %q", args[0])
			}
			cfg, err := settingsFrom(config)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(cfg.Storage.Path)
			if err != nil {
				return err
			}
			tree, err := store.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", cfg.Storage.Path, err)
			}

			tasks := 0
			for _, role := range tree.Roles {
				tasks += len(role.Tasks)
			}
			fmt.Printf("%s: valid\n", cfg.Storage.Path)
			fmt.Printf("  roles: %d\n", len(tree.Roles))
			fmt.Printf("  tasks: %d\n", tasks)
			fmt.Printf("  fingerprint: %s\n", binhash.HashBytes(data))
			return nil
		},
	}
}
