// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError carries a non-zero exit code for a command that already
// printed its own output. main checks for the ExitCode method on
// returned errors and exits silently with the code instead of
// printing an "error:" line. verify uses this: its findings are the
// output, the exit code is the verdict.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the wrapped code.
func (e *ExitError) ExitCode() int {
	return e.Code
}
