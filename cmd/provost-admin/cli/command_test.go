// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "provost-admin",
		Subcommands: []*Command{
			{
				Name: "list",
				Run: func(args []string) error {
					called = "list"
					return nil
				},
			},
			{
				Name: "verify",
				Run: func(args []string) error {
					called = "verify"
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"verify"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "verify" {
		t.Errorf("dispatched to %q, want %q", called, "verify")
	}
}

func TestExecuteNestedSubcommands(t *testing.T) {
	var got []string

	root := &Command{
		Name: "provost-admin",
		Subcommands: []*Command{
			{
				Name: "option",
				Subcommands: []*Command{
					{
						Name: "get",
						Run: func(args []string) error {
							got = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"option", "get", "path"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 1 || got[0] != "path" {
		t.Errorf("args = %v, want [path]", got)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var role string
	var got []string

	command := &Command{
		Name: "grant",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("grant", pflag.ContinueOnError)
			flagSet.StringVar(&role, "role", "", "role name")
			return flagSet
		},
		Run: func(args []string) error {
			got = args
			return nil
		},
	}

	if err := command.Execute([]string{"--role", "deploy", "alice"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if role != "deploy" {
		t.Errorf("role = %q, want %q", role, "deploy")
	}
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("args = %v, want [alice]", got)
	}
}

func TestExecuteSuggestsNearCommand(t *testing.T) {
	root := &Command{
		Name: "provost-admin",
		Subcommands: []*Command{
			{Name: "list", Run: func([]string) error { return nil }},
			{Name: "verify", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"lst"})
	if err == nil {
		t.Fatal("Execute accepted an unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "list"`) {
		t.Errorf("error %q should suggest list", err)
	}
}

func TestExecuteSuggestsNearFlag(t *testing.T) {
	command := &Command{
		Name: "add-task",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("add-task", pflag.ContinueOnError)
			flagSet.String("purpose", "", "task purpose")
			return flagSet
		},
		Run: func([]string) error { return nil },
	}

	err := command.Execute([]string{"--purpsoe", "backups"})
	if err == nil {
		t.Fatal("Execute accepted an unknown flag")
	}
	if !strings.Contains(err.Error(), "--purpose") {
		t.Errorf("error %q should suggest --purpose", err)
	}
}

func TestExecuteGroupWithoutVerb(t *testing.T) {
	root := &Command{
		Name: "provost-admin",
		Subcommands: []*Command{
			{Name: "list", Summary: "render the policy", Run: func([]string) error { return nil }},
		},
	}

	if err := root.Execute(nil); err == nil {
		t.Error("a bare group invocation should require a subcommand")
	}
}

func TestExecuteHelpIsNotAnError(t *testing.T) {
	root := &Command{
		Name: "provost-admin",
		Subcommands: []*Command{
			{Name: "list", Run: func([]string) error { return nil }},
		},
	}

	for _, arg := range []string{"-h", "--help", "help"} {
		if err := root.Execute([]string{arg}); err != nil {
			t.Errorf("Execute(%q) = %v, want nil", arg, err)
		}
	}
}

func TestPrintHelpListsCommandsAndExamples(t *testing.T) {
	root := &Command{
		Name:        "provost-admin",
		Description: "Administer the provost policy database.",
		Subcommands: []*Command{
			{Name: "list", Summary: "render the policy tree"},
			{Name: "verify", Summary: "validate the policy database"},
		},
		Examples: []Example{
			{Description: "show everything", Command: "provost-admin list"},
		},
	}

	var out bytes.Buffer
	root.PrintHelp(&out)
	text := out.String()

	for _, want := range []string{
		"Administer the provost policy database.",
		"list",
		"render the policy tree",
		"verify",
		"provost-admin list",
		"Run 'provost-admin <command> --help'",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("help output missing %q:\n%s", want, text)
		}
	}
}

func TestFullNameWalksParents(t *testing.T) {
	root := &Command{
		Name: "provost-admin",
		Subcommands: []*Command{
			{
				Name: "option",
				Subcommands: []*Command{
					{
						Name: "set",
						Run: func([]string) error {
							return nil
						},
					},
				},
			},
		},
	}

	// Dispatch wires parent pointers; afterwards the leaf knows its
	// full path.
	if err := root.Execute([]string{"option", "set"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	leaf := root.Subcommands[0].Subcommands[0]
	if got := leaf.fullName(); got != "provost-admin option set" {
		t.Errorf("fullName = %q, want %q", got, "provost-admin option set")
	}
}
