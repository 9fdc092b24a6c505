// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/provost-linux/provost/cmd/provost-admin/cli"
	"github.com/provost-linux/provost/lib/codec"
	"github.com/provost-linux/provost/lib/journal"
	"github.com/provost-linux/provost/lib/secret"
)

func journalCommand() *cli.Command {
	var opts struct {
		config  string
		since   string
		user    string
		outcome string
		key     string
		raw     bool
	}
	return &cli.Command{
		Name:    "journal",
		Summary: "read the elevation audit journal",
		Usage:   "provost-admin journal [flags]",
		Description: `journal renders every recorded elevation attempt, oldest first:
closed chunks in rotation order, then the active chunk. Sealed chunks
need the journal key; it is taken from the engine settings, or from
--key when inspecting a journal copied off its host.`,
		Examples: []cli.Example{
			{Description: "denials in the last day", Command: "provost-admin journal --since 24h --outcome denied"},
			{Command: "provost-admin journal --user alice"},
			{Description: "undecoded records, one diagnostic line each", Command: "provost-admin journal --raw"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("journal", pflag.ContinueOnError)
			addConfigFlag(flagSet, &opts.config)
			flagSet.StringVar(&opts.since, "since", "", "only records newer than this age (a duration, e.g. 90m, 24h)")
			flagSet.StringVar(&opts.user, "user", "", "only records for this user")
			flagSet.StringVar(&opts.outcome, "outcome", "", "only records with this outcome: granted, denied, or error")
			flagSet.StringVar(&opts.key, "key", "", "journal key file for sealed chunks (default: settings keyfile)")
			flagSet.BoolVar(&opts.raw, "raw", false, "print records in CBOR diagnostic notation instead of the table")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("journal takes no positional arguments, got %q", args[0])
			}

			filter, err := recordFilter(opts.since, opts.user, opts.outcome)
			if err != nil {
				return err
			}
			if opts.raw && filter != nil {
				return errors.New("--raw prints undecoded records; it cannot be combined with filters")
			}

			cfg, err := settingsFrom(opts.config)
			if err != nil {
				return err
			}

			var sealer *journal.Sealer
			keyPath := opts.key
			if keyPath == "" {
				keyPath = cfg.Journal.KeyFile
			}
			if keyPath != "" {
				key, err := secret.ReadFile(keyPath)
				if err != nil {
					return fmt.Errorf("reading journal key: %w", err)
				}
				defer key.Close()
				sealer = journal.NewSealer(key)
			}

			reader := journal.NewReader(cfg.Journal.Dir, sealer)
			if opts.raw {
				return printRawRecords(reader)
			}
			return printRecords(reader, filter)
		},
	}
}

// recordFilter builds the record predicate, nil when no filter flag
// was given.
func recordFilter(since, user, outcome string) (func(journal.Record) bool, error) {
	var cutoff time.Time
	if since != "" {
		age, err := time.ParseDuration(since)
		if err != nil {
			return nil, fmt.Errorf("--since: %w", err)
		}
		cutoff = time.Now().Add(-age)
	}
	switch journal.Outcome(outcome) {
	case "", journal.OutcomeGranted, journal.OutcomeDenied, journal.OutcomeError:
	default:
		return nil, fmt.Errorf("--outcome %q is not granted, denied, or error", outcome)
	}

	if since == "" && user == "" && outcome == "" {
		return nil, nil
	}
	return func(rec journal.Record) bool {
		if !cutoff.IsZero() && rec.Time.Before(cutoff) {
			return false
		}
		if user != "" && rec.User != user {
			return false
		}
		if outcome != "" && rec.Outcome != journal.Outcome(outcome) {
			return false
		}
		return true
	}, nil
}

// printRecords renders matching records as a table. A read error
// after some records does not discard them: the table is flushed
// first, so a truncated journal still shows everything before the
// damage.
func printRecords(reader *journal.Reader, filter func(journal.Record) bool) error {
	table := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(table, "TIME\tUSER\tOUTCOME\tROLE\tTASK\tCOMMAND\tDETAIL")

	var readErr error
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if filter != nil && !filter(rec) {
			continue
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Time.Format("2006-01-02 15:04:05"),
			rec.User,
			rec.Outcome,
			orDash(rec.Role),
			orDash(rec.Task),
			rec.Command,
			recordDetail(rec),
		)
	}
	if err := table.Flush(); err != nil {
		return err
	}
	return readErr
}

// printRawRecords prints each record frame in CBOR diagnostic
// notation (RFC 8949 §8), which preserves the exact wire types when
// the record layout itself is under suspicion.
func printRawRecords(reader *journal.Reader) error {
	for {
		frame, err := reader.NextFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		notation, err := codec.Diagnose(frame)
		if err != nil {
			return fmt.Errorf("diagnosing record: %w", err)
		}
		fmt.Println(notation)
	}
}

// recordDetail is the trailing column: what was granted, or why not.
func recordDetail(rec journal.Record) string {
	if rec.Outcome != journal.OutcomeGranted {
		return orDash(rec.Detail)
	}
	var parts []string
	if !rec.Caps.IsEmpty() {
		parts = append(parts, rec.Caps.String())
	}
	if rec.SetUser != "" || len(rec.SetGroups) > 0 {
		parts = append(parts, "as "+identityText(rec.SetUser, rec.SetGroups))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
