// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/provost-linux/provost/lib/capset"
)

// Version is the configuration format version this build reads and
// writes.
const Version = "1"

// TaskID identifies a Task within its Role: either a stable name
// (assigned by the administrator) or a 1-based position in document
// order (assigned at load time for unnamed tasks). The two kinds are
// distinct identities and never compare equal to each other. The zero
// TaskID is invalid.
type TaskID struct {
	name  string
	index int
}

// NameID returns the name-kind TaskID for name.
func NameID(name string) TaskID { return TaskID{name: name} }

// IndexID returns the index-kind TaskID for the 1-based position n.
func IndexID(n int) TaskID { return TaskID{index: n} }

// ParseTaskID parses administrator input: all-digit text is an index
// (which must be >= 1), anything else is a name.
func ParseTaskID(text string) (TaskID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TaskID{}, errors.New("empty task id")
	}
	if n, err := strconv.Atoi(text); err == nil {
		if n < 1 {
			return TaskID{}, fmt.Errorf("task index %d out of range (first task is 1)", n)
		}
		return IndexID(n), nil
	}
	return NameID(text), nil
}

// IsZero reports whether the id is the invalid zero value.
func (id TaskID) IsZero() bool { return id.name == "" && id.index == 0 }

// IsIndex reports whether the id is the positional kind.
func (id TaskID) IsIndex() bool { return id.index > 0 }

// Name returns the name and true for name-kind ids.
func (id TaskID) Name() (string, bool) { return id.name, id.name != "" }

// Index returns the 1-based position and true for index-kind ids.
func (id TaskID) Index() (int, bool) { return id.index, id.index > 0 }

// Equal reports identity equality. Kinds never match across each
// other: NameID("2") is distinct from IndexID(2).
func (id TaskID) Equal(other TaskID) bool { return id == other }

// String renders the id for display: the name, or "Task #N" for the
// positional kind.
func (id TaskID) String() string {
	if id.index > 0 {
		return fmt.Sprintf("Task #%d", id.index)
	}
	return id.name
}

// GroupSet is a conjunctive set of group names: a credential matches
// the set only when it holds every named group. Administrator input
// writes it as names joined by '&'.
type GroupSet []string

// ParseGroupSet parses '&'-joined group names. Elements are trimmed;
// empty elements and empty input are errors. Duplicates collapse,
// first occurrence order preserved.
func ParseGroupSet(text string) (GroupSet, error) {
	parts := strings.Split(text, "&")
	set := make(GroupSet, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, fmt.Errorf("empty group name in group-set %q", text)
		}
		if !seen[name] {
			seen[name] = true
			set = append(set, name)
		}
	}
	return set, nil
}

// String renders the set in administrator form: names joined by '&'.
func (gs GroupSet) String() string { return strings.Join(gs, "&") }

// MatchedBy reports whether held covers every group in the set. The
// empty set matches nothing.
func (gs GroupSet) MatchedBy(held map[string]bool) bool {
	if len(gs) == 0 {
		return false
	}
	for _, name := range gs {
		if !held[name] {
			return false
		}
	}
	return true
}

// Task is one grant inside a Role: a list of command patterns, the
// capability set the matched process receives (nil means none
// configured, which grants the empty set), optional forced identity,
// and an optional option block overriding role/global options.
//
// RoleIndex and Index are the owning arena positions, maintained by
// the Tree (Reindex); they are navigational only.
type Task struct {
	ID        TaskID
	Commands  []string
	Caps      *capset.Set
	SetUser   string
	SetGroups []string
	Purpose   string
	Options   *Options

	RoleIndex int
	Index     int
}

// CapSet returns the task's capability set, empty when none is
// configured.
func (t *Task) CapSet() capset.Set {
	if t.Caps == nil {
		return 0
	}
	return *t.Caps
}

// Role is a named authorization unit: the actors allowed to assume it
// (user names, group-sets) and the ordered tasks it grants. Index is
// the role's position in the owning tree, maintained by Reindex.
type Role struct {
	Name    string
	Users   []string
	Groups  []GroupSet
	Tasks   []*Task
	Options *Options

	Index int
}

// Task returns the task with the given id, or nil.
func (r *Role) Task(id TaskID) *Task {
	for _, task := range r.Tasks {
		if task.ID.Equal(id) {
			return task
		}
	}
	return nil
}

// TaskAt returns the task at position i (0-based), or nil.
func (r *Role) TaskAt(i int) *Task {
	if i < 0 || i >= len(r.Tasks) {
		return nil
	}
	return r.Tasks[i]
}

// AddTask appends a task in document order. A zero ID is assigned the
// task's 1-based position. Returns an error when the id collides with
// an existing task in the role.
func (r *Role) AddTask(task *Task) error {
	if task.ID.IsZero() {
		task.ID = IndexID(len(r.Tasks) + 1)
	}
	if existing := r.Task(task.ID); existing != nil {
		return fmt.Errorf("role %q already has task %s", r.Name, task.ID)
	}
	task.RoleIndex = r.Index
	task.Index = len(r.Tasks)
	r.Tasks = append(r.Tasks, task)
	return nil
}

// DeleteTask removes the task with the given id and renumbers the
// positional ids of the tasks that follow it. Returns false when no
// task has that id.
func (r *Role) DeleteTask(id TaskID) bool {
	for i, task := range r.Tasks {
		if task.ID.Equal(id) {
			r.Tasks = append(r.Tasks[:i], r.Tasks[i+1:]...)
			r.renumber()
			return true
		}
	}
	return false
}

// renumber refreshes task positions and positional ids after a
// structural edit.
func (r *Role) renumber() {
	for i, task := range r.Tasks {
		task.RoleIndex = r.Index
		task.Index = i
		if task.ID.IsIndex() {
			task.ID = IndexID(i + 1)
		}
	}
}

// GrantUser adds a user name to the role's actor list. Reports
// whether the list changed.
func (r *Role) GrantUser(name string) bool {
	for _, u := range r.Users {
		if u == name {
			return false
		}
	}
	r.Users = append(r.Users, name)
	return true
}

// RevokeUser removes every occurrence of a user name from the actor
// list. Reports whether the list changed.
func (r *Role) RevokeUser(name string) bool {
	kept := r.Users[:0]
	for _, u := range r.Users {
		if u != name {
			kept = append(kept, u)
		}
	}
	changed := len(kept) != len(r.Users)
	r.Users = kept
	return changed
}

// GrantGroupSet adds a group-set to the role's actor list. Reports
// whether the list changed; an identical set (same names, same order
// after parse normalization) is not added twice.
func (r *Role) GrantGroupSet(set GroupSet) bool {
	for _, existing := range r.Groups {
		if existing.String() == set.String() {
			return false
		}
	}
	r.Groups = append(r.Groups, set)
	return true
}

// RevokeGroupSet removes the matching group-set. Reports whether the
// list changed.
func (r *Role) RevokeGroupSet(set GroupSet) bool {
	kept := r.Groups[:0]
	for _, existing := range r.Groups {
		if existing.String() != set.String() {
			kept = append(kept, existing)
		}
	}
	changed := len(kept) != len(r.Groups)
	r.Groups = kept
	return changed
}

// MatchesActor reports whether the credential may assume this role:
// its user name appears in the role's user list, or its group
// membership covers at least one of the role's group-sets.
func (r *Role) MatchesActor(cred Credential) bool {
	for _, name := range r.Users {
		if name == cred.User.Name {
			return true
		}
	}
	if len(r.Groups) == 0 {
		return false
	}
	held := cred.GroupNames()
	for _, set := range r.Groups {
		if set.MatchedBy(held) {
			return true
		}
	}
	return false
}

// Tree is the root of the configuration: format version, the optional
// global option block, and the ordered list of roles. Order is
// document order and is semantically significant for matching.
type Tree struct {
	Version string
	Global  *Options
	Roles   []*Role
}

// NewTree returns an empty tree at the current format version.
func NewTree() *Tree {
	return &Tree{Version: Version}
}

// Role returns the role with the given name, or nil.
func (t *Tree) Role(name string) *Role {
	for _, role := range t.Roles {
		if role.Name == name {
			return role
		}
	}
	return nil
}

// RoleAt returns the role at position i, or nil.
func (t *Tree) RoleAt(i int) *Role {
	if i < 0 || i >= len(t.Roles) {
		return nil
	}
	return t.Roles[i]
}

// AddRole appends a role in document order. Returns an error when the
// name is empty or already taken.
func (t *Tree) AddRole(role *Role) error {
	if role.Name == "" {
		return errors.New("role name is empty")
	}
	if t.Role(role.Name) != nil {
		return fmt.Errorf("role %q already exists", role.Name)
	}
	role.Index = len(t.Roles)
	role.renumber()
	t.Roles = append(t.Roles, role)
	return nil
}

// DeleteRole removes the named role. Reports whether a role was
// removed.
func (t *Tree) DeleteRole(name string) bool {
	for i, role := range t.Roles {
		if role.Name == name {
			t.Roles = append(t.Roles[:i], t.Roles[i+1:]...)
			t.Reindex()
			return true
		}
	}
	return false
}

// Reindex refreshes every arena position (role indices, task role
// back-references, positional task ids) after structural edits or an
// external load.
func (t *Tree) Reindex() {
	for i, role := range t.Roles {
		role.Index = i
		role.renumber()
	}
}

// Validate checks structural invariants: supported version, unique
// non-empty role names, task ids unique within each role, non-empty
// command patterns, group-sets and forced-group lists free of empty
// names. All problems are reported together.
func (t *Tree) Validate() error {
	var errs []error
	if t.Version != Version {
		errs = append(errs, fmt.Errorf("unsupported configuration version %q (want %q)", t.Version, Version))
	}
	roleNames := make(map[string]bool, len(t.Roles))
	for _, role := range t.Roles {
		if role.Name == "" {
			errs = append(errs, errors.New("role with empty name"))
			continue
		}
		if roleNames[role.Name] {
			errs = append(errs, fmt.Errorf("duplicate role name %q", role.Name))
		}
		roleNames[role.Name] = true
		for _, set := range role.Groups {
			if len(set) == 0 {
				errs = append(errs, fmt.Errorf("role %q: empty group-set", role.Name))
			}
			for _, name := range set {
				if name == "" {
					errs = append(errs, fmt.Errorf("role %q: empty group name in group-set", role.Name))
				}
			}
		}
		taskIDs := make(map[TaskID]bool, len(role.Tasks))
		for _, task := range role.Tasks {
			if task.ID.IsZero() {
				errs = append(errs, fmt.Errorf("role %q: task with zero id", role.Name))
				continue
			}
			if taskIDs[task.ID] {
				errs = append(errs, fmt.Errorf("role %q: duplicate task id %s", role.Name, task.ID))
			}
			taskIDs[task.ID] = true
			for _, pattern := range task.Commands {
				if strings.TrimSpace(pattern) == "" {
					errs = append(errs, fmt.Errorf("role %q task %s: empty command pattern", role.Name, task.ID))
				}
			}
			for _, group := range task.SetGroups {
				if group == "" {
					errs = append(errs, fmt.Errorf("role %q task %s: empty group in setgid list", role.Name, task.ID))
				}
			}
		}
	}
	return errors.Join(errs...)
}
