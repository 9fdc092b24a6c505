// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package transition applies a matched decision to the running
// process: the ordered sequence of identity and capability syscalls
// that moves the process from its starting privilege state to the
// target state, followed by the image replacement that starts the
// target command.
//
// The sequence is fixed and strictly ordered:
//
//  1. When root-equivalent execution is disallowed, set the one-way
//     no-new-privileges flag before any identity change.
//  2. Apply forced identity, uid before groups, each change bracketed
//     by raising and dropping the single capability that enables it.
//  3. Install the capability state (bounding, permitted, inheritable,
//     ambient), bracketed by the capability-manipulation capability.
//  4. Filter the environment, resolve the executable against the
//     configured search PATH, and replace the process image.
//
// Every raise is paired with the syscall it enables and an immediate
// drop, keeping the window of excess privilege to a single call. Any
// syscall failure aborts the process: a partially-applied privilege
// state must never continue running, and there is no rollback path
// short of process exit.
//
// The one deliberate exception to fail-hard is the environment
// checklist: a variable whose value fails the safety check is
// silently dropped from the child environment instead of aborting
// the execution.
package transition
