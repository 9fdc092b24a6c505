// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the provost
// front-ends. It centralizes the one legitimate raw-stderr pattern
// that exists outside the journal and structured logging: fatal error
// reporting from main() after run() has returned.
package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it
// in main() for errors from run(); callers that need a different exit
// code return an error implementing interface{ ExitCode() int } and
// main handles it before calling Fatal.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
