// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the provost authorization model: the
// role/task configuration tree, the hierarchical option resolver, and
// the credential/command matcher.
//
// A Tree holds an ordered list of Roles. Each Role names the users and
// group-sets that may assume it and holds an ordered list of Tasks;
// each Task carries command patterns, an optional capability set,
// optional forced identity, and an optional option block. Document
// order is load order and is semantically significant: matching is
// first-match-wins at both the role and task level, with no
// re-ranking by specificity.
//
// Options are resolved through a fixed five-level stack (None,
// Default, Global, Role, Task). An OptionStack is bound to one
// position in the tree; each field resolves independently to the most
// specific level at or above that position that sets it, and writes
// always target the bound position's own block.
//
// The tree is read-only on the decision path. Mutation methods exist
// for the administration front-end, which loads, edits, validates,
// and re-persists in a separate invocation.
package policy
