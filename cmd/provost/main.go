// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// provost runs a single command with the privileges a policy role
// grants the invoking user.
//
// Usage:
//
//	provost [-r role] command [args...]
//	provost -i [command [args...]]
//
// The binary is installed with file capabilities (permitted set, empty
// effective set) and raises individual capabilities only for the
// operations that need them: CAP_DAC_READ_SEARCH around the policy
// read, and the setuid/setgid/setpcap raises inside the transition
// sequence itself. Every decision is appended to the audit journal
// before the target command replaces this process.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/provost-linux/provost/lib/authenticate"
	"github.com/provost-linux/provost/lib/binhash"
	"github.com/provost-linux/provost/lib/identity"
	"github.com/provost-linux/provost/lib/journal"
	"github.com/provost-linux/provost/lib/process"
	"github.com/provost-linux/provost/lib/secret"
	"github.com/provost-linux/provost/lib/session"
	"github.com/provost-linux/provost/lib/settings"
	"github.com/provost-linux/provost/lib/version"
	"github.com/provost-linux/provost/policy"
	"github.com/provost-linux/provost/policy/store"
	"github.com/provost-linux/provost/transition"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("provost", pflag.ContinueOnError)
	// Everything after the command word belongs to the command.
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(io.Discard)
	roleName := flagSet.StringP("role", "r", "", "match within this role only")
	info := flagSet.BoolP("info", "i", false, "show what the policy grants instead of executing")
	showVersion := flagSet.BoolP("version", "v", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(flagSet)
			return nil
		}
		return fmt.Errorf("%w\n\nRun 'provost --help' for usage.", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printUsage(flagSet)
		return nil
	}
	if *showVersion {
		version.Print("provost")
		return nil
	}

	cfg, err := settings.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cred, err := identity.Current()
	if err != nil {
		return fmt.Errorf("resolving invoking credential: %w", err)
	}

	tree, policySum, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	args := flagSet.Args()
	if *info {
		return printRights(tree, cred, *roleName, args)
	}
	if len(args) == 0 {
		printUsage(flagSet)
		return errors.New("command required")
	}

	app := &app{
		settings:  cfg,
		cred:      cred,
		tree:      tree,
		policySum: policySum,
		logger:    logger,
	}
	app.journal = openJournal(cfg, logger)

	return app.elevate(context.Background(), *roleName, policy.Command{
		Path: args[0],
		Args: args[1:],
	})
}

// app carries the per-invocation state between the decision steps.
type app struct {
	settings  *settings.Settings
	cred      policy.Credential
	tree      *policy.Tree
	policySum binhash.Digest
	journal   *journal.Writer
	logger    *slog.Logger
}

// elevate authenticates, matches the command against the policy,
// journals the decision, and hands off to the transition sequencer.
// On success it never returns: the target image replaces the process.
func (a *app) elevate(ctx context.Context, roleName string, cmd policy.Command) error {
	rec := journal.Record{
		Time:       time.Now(),
		User:       a.cred.User.Name,
		UID:        a.cred.User.UID,
		TTY:        a.cred.TTY,
		PPID:       a.cred.PPID,
		Command:    cmd.Text(),
		PolicyHash: a.policySum,
	}

	if err := a.authenticate(ctx); err != nil {
		rec.Outcome = journal.OutcomeError
		rec.Detail = err.Error()
		a.record(rec)
		return err
	}

	dec, err := a.match(roleName, cmd)
	if err != nil {
		rec.Outcome = journal.OutcomeDenied
		rec.Detail = err.Error()
		a.record(rec)
		return err
	}

	tcfg, err := a.transitionConfig(dec, cmd)
	if err != nil {
		rec.Outcome = journal.OutcomeError
		rec.Detail = err.Error()
		a.record(rec)
		return err
	}

	rec.Outcome = journal.OutcomeGranted
	rec.Role = dec.Role().Name
	rec.Task = dec.Task().ID.String()
	rec.Caps = dec.Caps
	rec.SetUser = dec.SetUser
	rec.SetGroups = dec.SetGroups
	if target, lookErr := transition.LookupExecutable(cmd.Path, tcfg.Path); lookErr == nil {
		if sum, hashErr := binhash.HashFile(target); hashErr == nil {
			rec.BinaryHash = &sum
		}
	}
	// The grant is journaled before exec; a successful transition
	// never comes back to report.
	a.record(rec)

	if err := transition.New(tcfg).Run(); err != nil {
		fail := rec
		fail.Time = time.Now()
		fail.Outcome = journal.OutcomeError
		fail.Detail = err.Error()
		a.record(fail)
		return err
	}
	return nil
}

// authenticate passes the caller through the session cache and, when
// the cache is stale, the configured authenticator. Session store
// trouble is never fatal; it only forces re-authentication.
func (a *app) authenticate(ctx context.Context) error {
	sess := a.openSession()
	if sess != nil {
		defer sess.Close()
		ok, err := sess.IsRecentlyVerified(ctx, a.cred)
		if err != nil {
			a.logger.Warn("session check failed", "error", err)
		}
		if ok {
			return nil
		}
	}

	var auth authenticate.Authenticator
	if a.settings.Auth.Helper != "" {
		auth = authenticate.NewHelper(a.settings.Auth.Helper)
	} else {
		auth = authenticate.Disabled{}
	}
	if err := auth.Verify(ctx, a.cred); err != nil {
		return err
	}

	if sess != nil {
		if err := sess.RecordVerification(ctx, a.cred); err != nil {
			a.logger.Warn("recording verification failed", "error", err)
		}
	}
	return nil
}

func (a *app) openSession() *session.Store {
	sess, err := session.Open(session.Config{
		Path:   a.settings.Session.Path,
		TTL:    a.settings.SessionTTL(),
		Logger: a.logger,
	})
	if err != nil {
		a.logger.Warn("session cache unavailable", "error", err)
		return nil
	}
	return sess
}

// match finds the first authorizing decision, scoped to one role when
// the caller asked for it. An unknown role name reports the same
// denial as a role that exists but does not authorize, so the error
// text never discloses which roles exist.
func (a *app) match(roleName string, cmd policy.Command) (*policy.Decision, error) {
	if roleName == "" {
		return a.tree.Match(a.cred, cmd)
	}
	role := a.tree.Role(roleName)
	if role == nil {
		return nil, &policy.NoMatchError{
			User:    a.cred.User.Name,
			Role:    roleName,
			Command: cmd.Text(),
		}
	}
	return a.tree.MatchInRole(role.Index, a.cred, cmd)
}

// transitionConfig resolves the matched decision into the fully
// concrete sequencer input: option values at the task-bound stack and
// the forced identity looked up in the user database.
func (a *app) transitionConfig(dec *policy.Decision, cmd policy.Command) (transition.Config, error) {
	path, _ := dec.Stack.ResolvePath()
	envKeep, _ := dec.Stack.ResolveEnvKeep()
	envCheck, _ := dec.Stack.ResolveEnvCheck()
	allowRoot, _ := dec.Stack.ResolveAllowRoot()
	allowBounding, _ := dec.Stack.ResolveAllowBounding()

	tcfg := transition.Config{
		Caps:          dec.Caps,
		AllowRoot:     allowRoot,
		AllowBounding: allowBounding,
		Path:          path,
		EnvKeep:       envKeep,
		EnvCheck:      envCheck,
		Command:       cmd,
		Environ:       os.Environ(),
	}

	if dec.SetUser != "" {
		user, err := identity.LookupUser(dec.SetUser)
		if err != nil {
			return transition.Config{}, fmt.Errorf("resolving task user %q: %w", dec.SetUser, err)
		}
		tcfg.SetUser = &user
	}
	for _, name := range dec.SetGroups {
		group, err := identity.LookupGroup(name)
		if err != nil {
			return transition.Config{}, fmt.Errorf("resolving task group %q: %w", name, err)
		}
		tcfg.SetGroups = append(tcfg.SetGroups, group)
	}
	return tcfg, nil
}

func (a *app) record(rec journal.Record) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Append(rec); err != nil {
		a.logger.Warn("journal append failed", "error", err)
	}
}

// loadPolicy reads the policy database under a CAP_DAC_READ_SEARCH
// bracket and returns the parsed tree with the file's fingerprint.
func loadPolicy(cfg *settings.Settings) (*policy.Tree, binhash.Digest, error) {
	var data []byte
	err := transition.WithFileReadCap(func() error {
		var readErr error
		data, readErr = os.ReadFile(cfg.Storage.Path)
		return readErr
	})
	if err != nil {
		return nil, binhash.Digest{}, &store.ParseError{Path: cfg.Storage.Path, Err: err}
	}
	tree, err := store.Parse(data)
	if err != nil {
		return nil, binhash.Digest{}, &store.ParseError{Path: cfg.Storage.Path, Err: err}
	}
	return tree, binhash.HashBytes(data), nil
}

// openJournal builds the journal writer from settings. A journal that
// cannot be opened disables journaling (with a warning) rather than
// blocking elevation; a configured seal key that cannot be read also
// disables it, because writing plaintext where sealing was requested
// is worse than not writing.
func openJournal(cfg *settings.Settings, logger *slog.Logger) *journal.Writer {
	jcfg := journal.Config{
		Dir:        cfg.Journal.Dir,
		RotateSize: cfg.Journal.RotateSize,
		Logger:     logger,
	}

	tag, err := journal.ParseCompressionTag(cfg.Journal.Compression)
	if err != nil {
		logger.Warn("unknown journal compression, storing uncompressed", "error", err)
		tag = journal.CompressionNone
	}
	jcfg.Compression = tag

	if cfg.Journal.KeyFile != "" {
		key, err := secret.ReadFile(cfg.Journal.KeyFile)
		if err != nil {
			logger.Warn("journal key unreadable, journal disabled", "error", err)
			return nil
		}
		jcfg.Sealer = journal.NewSealer(key)
	}

	writer, err := journal.NewWriter(jcfg)
	if err != nil {
		logger.Warn("journal unavailable", "error", err)
		return nil
	}
	return writer
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `provost runs a single command with the privileges a policy role grants.

Usage:
  provost [flags] command [args...]
  provost -i [command [args...]]

Flags:
%s`, flagSet.FlagUsages())
}
