// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package authenticate proves the invoking user's identity before a
// privileged execution.
//
// The pluggable seam is a checkpassword-style helper program: provost
// prompts for the password on the controlling terminal, hands
// "user\0pass\0" to the helper on file descriptor 3, and accepts the
// identity when the helper exits 0. The host's PAM stack (or whatever
// the site uses) stays behind the helper; provost never links against
// it.
package authenticate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"

	"github.com/provost-linux/provost/lib/secret"
	"github.com/provost-linux/provost/policy"
)

// ErrDenied reports that the identity proof itself failed, as opposed
// to the machinery around it breaking.
var ErrDenied = errors.New("authentication failed")

// Authenticator verifies that the credential's user is really at the
// keyboard.
type Authenticator interface {
	Verify(ctx context.Context, cred policy.Credential) error
}

// Helper authenticates through an external checkpassword-style
// program.
type Helper struct {
	// Path is the helper binary.
	Path string

	// Prompt obtains the password. The default prompts on the
	// controlling terminal with echo disabled; tests substitute a
	// canned secret.
	Prompt func(cred policy.Credential) (*secret.Buffer, error)

	// Logger receives non-sensitive diagnostics. Nil discards them.
	Logger *slog.Logger
}

// NewHelper returns a Helper running the given binary with the
// terminal prompt.
func NewHelper(path string) *Helper {
	return &Helper{Path: path, Prompt: promptTerminal}
}

// Verify prompts for the password and runs the helper. A helper that
// exits non-zero yields an error wrapping [ErrDenied]; any other
// failure is reported as-is.
func (h *Helper) Verify(ctx context.Context, cred policy.Credential) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	prompt := h.Prompt
	if prompt == nil {
		prompt = promptTerminal
	}

	password, err := prompt(cred)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	defer password.Close()

	pipeRead, pipeWrite, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating helper pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.Path)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = &stderr
	// ExtraFiles[0] becomes the child's fd 3, the checkpassword
	// convention.
	cmd.ExtraFiles = []*os.File{pipeRead}

	if err := cmd.Start(); err != nil {
		pipeRead.Close()
		pipeWrite.Close()
		return fmt.Errorf("starting helper %s: %w", h.Path, err)
	}
	pipeRead.Close()

	writeErr := writeCredentials(pipeWrite, cred.User.Name, password)
	pipeWrite.Close()

	waitErr := cmd.Wait()
	if writeErr != nil {
		return fmt.Errorf("writing to helper: %w", writeErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			logger.Info("authentication helper rejected",
				"user", cred.User.Name,
				"exit_code", exitErr.ExitCode(),
			)
			return fmt.Errorf("%w: helper exited %d", ErrDenied, exitErr.ExitCode())
		}
		return fmt.Errorf("helper %s: %w (stderr: %s)",
			h.Path, waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// writeCredentials streams "user\0pass\0" to the helper, zeroing the
// intermediate buffer before returning.
func writeCredentials(w *os.File, user string, password *secret.Buffer) error {
	payload := make([]byte, 0, len(user)+password.Len()+2)
	payload = append(payload, user...)
	payload = append(payload, 0)
	payload = append(payload, password.Bytes()...)
	payload = append(payload, 0)
	defer secret.Zero(payload)

	_, err := w.Write(payload)
	return err
}

// promptTerminal asks for the password on the controlling terminal
// with echo disabled. Without a terminal there is nothing to ask, so
// the attempt fails rather than hanging a pipeline.
func promptTerminal(cred policy.Credential) (*secret.Buffer, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("no controlling terminal to prompt on: %w", err)
	}
	defer tty.Close()

	fmt.Fprintf(tty, "[provost] password for %s: ", cred.User.Name)
	line, err := term.ReadPassword(int(tty.Fd()))
	fmt.Fprintln(tty)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty password", ErrDenied)
	}
	return secret.NewFromBytes(line)
}

// Disabled is the authenticator used when no helper is configured:
// every verification fails with an explanation instead of silently
// granting.
type Disabled struct {
	Reason string
}

func (d Disabled) Verify(ctx context.Context, cred policy.Credential) error {
	reason := d.Reason
	if reason == "" {
		reason = "no authentication helper configured"
	}
	return fmt.Errorf("%w: %s", ErrDenied, reason)
}
