// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"strings"

	"github.com/provost-linux/provost/lib/capset"
)

// Decision is the outcome of a successful match: the role and task
// that authorized the request (arena indices into the tree), the
// capability set the process will receive, the forced identity if
// any, and the option stack bound at the matched task.
type Decision struct {
	RoleIndex int
	TaskIndex int
	Caps      capset.Set
	SetUser   string
	SetGroups []string
	Stack     *OptionStack

	tree *Tree
}

// Role returns the matched role.
func (d *Decision) Role() *Role { return d.tree.Roles[d.RoleIndex] }

// Task returns the matched task.
func (d *Decision) Task() *Task { return d.Role().Tasks[d.TaskIndex] }

// NoMatchError reports that no role/task authorizes the credential to
// run the command. Role is set when the search was scoped to one
// role.
type NoMatchError struct {
	User    string
	Role    string
	Command string
}

func (e *NoMatchError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("role %q does not authorize user %q to run %q", e.Role, e.User, e.Command)
	}
	return fmt.Sprintf("no role authorizes user %q to run %q", e.User, e.Command)
}

// Match returns the first decision in document order, scanning every
// role. Returns NoMatchError when nothing authorizes the request.
// Role order is decisive: the first role whose actors cover the
// credential and whose tasks match the command wins, with no
// re-ranking by specificity. Overlapping roles therefore shadow each
// other by position; MatchAll exposes the full list for inspection.
func (t *Tree) Match(cred Credential, cmd Command) (*Decision, error) {
	for i := range t.Roles {
		if decision := t.matchRole(i, cred, cmd); decision != nil {
			return decision, nil
		}
	}
	return nil, &NoMatchError{User: cred.User.Name, Command: cmd.Text()}
}

// MatchInRole searches a single role by index. Returns NoMatchError
// when the role's actors do not cover the credential or none of its
// tasks match the command.
func (t *Tree) MatchInRole(role int, cred Credential, cmd Command) (*Decision, error) {
	if decision := t.matchRole(role, cred, cmd); decision != nil {
		return decision, nil
	}
	return nil, &NoMatchError{User: cred.User.Name, Role: t.Roles[role].Name, Command: cmd.Text()}
}

// MatchAll returns every decision in document order. Useful for
// rights inspection and for auditing which grants shadow which.
func (t *Tree) MatchAll(cred Credential, cmd Command) []*Decision {
	var decisions []*Decision
	for i := range t.Roles {
		role := t.Roles[i]
		if !role.MatchesActor(cred) {
			continue
		}
		for j := range role.Tasks {
			if t.taskMatches(i, j, cmd) {
				decisions = append(decisions, t.decision(i, j))
			}
		}
	}
	return decisions
}

// matchRole returns the decision for the first matching task of one
// role, nil when the role does not apply.
func (t *Tree) matchRole(role int, cred Credential, cmd Command) *Decision {
	r := t.Roles[role]
	if !r.MatchesActor(cred) {
		return nil
	}
	for j := range r.Tasks {
		if t.taskMatches(role, j, cmd) {
			return t.decision(role, j)
		}
	}
	return nil
}

// taskMatches tests the command against each of the task's patterns
// in document order. The wildcard-exclusion set is resolved at the
// task's own option stack, so a role or task can tighten or relax it.
func (t *Tree) taskMatches(role, task int, cmd Command) bool {
	tk := t.Roles[role].Tasks[task]
	if len(tk.Commands) == 0 {
		return false
	}
	denied, _ := StackFromTask(t, role, task).ResolveWildcardDenied()
	text := cmd.Text()
	for _, pattern := range tk.Commands {
		if PatternMatches(pattern, text, denied) {
			return true
		}
	}
	return false
}

// decision assembles the Decision for a matched task.
func (t *Tree) decision(role, task int) *Decision {
	tk := t.Roles[role].Tasks[task]
	return &Decision{
		RoleIndex: role,
		TaskIndex: task,
		Caps:      tk.CapSet(),
		SetUser:   tk.SetUser,
		SetGroups: tk.SetGroups,
		Stack:     StackFromTask(t, role, task),
		tree:      t,
	}
}

// PatternMatches tests one command pattern against the requested
// command text. A pattern without wildcard characters matches only
// byte-identical text. A pattern containing '*' or '?' matches
// glob-style, except that wildcards refuse to consume any character
// in denied: with the default exclusion set ";&|", the pattern
// "/usr/bin/systemctl restart *" matches "... restart nginx" but not
// "... restart nginx;reboot".
func PatternMatches(pattern, text, denied string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return pattern == text
	}
	return wildcardMatch([]rune(pattern), []rune(text), deniedSet(denied))
}

func deniedSet(denied string) map[rune]bool {
	set := make(map[rune]bool, len(denied))
	for _, r := range denied {
		set[r] = true
	}
	return set
}

// wildcardMatch is a backtracking glob matcher over runes. '*'
// matches any run of non-denied runes (including the empty run), '?'
// matches exactly one non-denied rune, everything else matches
// itself. Character classes are not supported. Backtracking extends
// the most recent '*' one rune at a time; a denied rune stops the
// extension, which is what prevents a wildcard from walking across an
// injection character.
func wildcardMatch(pattern, text []rune, denied map[rune]bool) bool {
	p, t := 0, 0
	starP, starT := -1, -1
	for t < len(text) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			starP, starT = p, t
			p++
		case p < len(pattern) && pattern[p] == '?' && !denied[text[t]]:
			p++
			t++
		case p < len(pattern) && pattern[p] != '?' && pattern[p] == text[t]:
			p++
			t++
		case starP >= 0 && !denied[text[starT]]:
			starT++
			p = starP + 1
			t = starT
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
