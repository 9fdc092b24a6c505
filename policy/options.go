// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is a position in the option override stack. Higher levels are
// more specific and win resolution.
type Level int

const (
	// LevelNone is the unset sentinel: no level resolved the field.
	LevelNone Level = iota
	// LevelDefault is the built-in policy default block.
	LevelDefault
	// LevelGlobal is the tree's global option block.
	LevelGlobal
	// LevelRole is a role's option block.
	LevelRole
	// LevelTask is a task's option block.
	LevelTask
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelDefault:
		return "default"
	case LevelGlobal:
		return "global"
	case LevelRole:
		return "role"
	case LevelTask:
		return "task"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Built-in defaults, supplied by the Default level of every stack.
const (
	// DefaultPath is the search PATH handed to the target command
	// when no level overrides it.
	DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin:/snap/bin"

	// DefaultWildcardDenied is the character set a command-pattern
	// wildcard refuses to match when no level overrides it.
	DefaultWildcardDenied = ";&|"
)

// DefaultEnvKeep returns the built-in environment whitelist: variables
// passed to the target command verbatim.
func DefaultEnvKeep() []string {
	return []string{
		"HOME", "USER", "LOGNAME", "COLORS", "DISPLAY", "HOSTNAME",
		"KRB5CCNAME", "LS_COLORS", "PS1", "PS2", "XAUTHORY",
		"XAUTHORIZATION", "XDG_CURRENT_DESKTOP",
	}
}

// DefaultEnvCheck returns the built-in environment checklist:
// variables passed to the target command only when their value passes
// the per-variable safety check. "LC_*" matches every LC_-prefixed
// name.
func DefaultEnvCheck() []string {
	return []string{
		"COLORTERM", "LANG", "LANGUAGE", "LC_*", "LINGUAS", "TERM", "TZ",
	}
}

// defaultBlock materializes the Default level. Each stack gets a
// fresh copy so later mutation of one stack cannot leak into another.
func defaultBlock() *Options {
	path := DefaultPath
	allowRoot := true
	allowBounding := true
	denied := DefaultWildcardDenied
	return &Options{
		Path:           &path,
		EnvKeep:        DefaultEnvKeep(),
		EnvCheck:       DefaultEnvCheck(),
		AllowRoot:      &allowRoot,
		AllowBounding:  &allowBounding,
		WildcardDenied: &denied,
	}
}

// Options is one override block. Every field is independently
// optional: nil (or a nil slice) means "not set at this level, ask
// the next level down". An empty non-nil slice is an explicit empty
// list.
type Options struct {
	// Path is the search PATH for the target command.
	Path *string
	// EnvKeep lists environment variables kept verbatim.
	EnvKeep []string
	// EnvCheck lists environment variables kept only when their
	// value passes the safety check.
	EnvCheck []string
	// AllowRoot, when false, marks the process as unable to gain new
	// privileges before the transition.
	AllowRoot *bool
	// AllowBounding, when false, restricts the bounding set to the
	// granted capabilities during the transition.
	AllowBounding *bool
	// WildcardDenied is the character set command-pattern wildcards
	// refuse to match.
	WildcardDenied *string
}

// IsEmpty reports whether no field is set at this block.
func (o *Options) IsEmpty() bool {
	return o == nil ||
		(o.Path == nil && o.EnvKeep == nil && o.EnvCheck == nil &&
			o.AllowRoot == nil && o.AllowBounding == nil && o.WildcardDenied == nil)
}

// Clone returns a deep copy, nil for nil.
func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}
	clone := &Options{}
	if o.Path != nil {
		v := *o.Path
		clone.Path = &v
	}
	if o.EnvKeep != nil {
		clone.EnvKeep = append([]string{}, o.EnvKeep...)
	}
	if o.EnvCheck != nil {
		clone.EnvCheck = append([]string{}, o.EnvCheck...)
	}
	if o.AllowRoot != nil {
		v := *o.AllowRoot
		clone.AllowRoot = &v
	}
	if o.AllowBounding != nil {
		v := *o.AllowBounding
		clone.AllowBounding = &v
	}
	if o.WildcardDenied != nil {
		v := *o.WildcardDenied
		clone.WildcardDenied = &v
	}
	return clone
}

// OptionKind names one option field for generic get/set surfaces
// (the administration front-end).
type OptionKind int

const (
	OptPath OptionKind = iota
	OptEnvKeep
	OptEnvCheck
	OptAllowRoot
	OptAllowBounding
	OptWildcardDenied
)

var optionKindNames = map[OptionKind]string{
	OptPath:           "path",
	OptEnvKeep:        "env-keep",
	OptEnvCheck:       "env-check",
	OptAllowRoot:      "allow-root",
	OptAllowBounding:  "allow-bounding",
	OptWildcardDenied: "wildcard-denied",
}

func (k OptionKind) String() string {
	if name, ok := optionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("option(%d)", int(k))
}

// ParseOptionKind parses an administrator-facing field name.
func ParseOptionKind(name string) (OptionKind, error) {
	for kind, known := range optionKindNames {
		if known == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown option field %q (known: path, env-keep, env-check, allow-root, allow-bounding, wildcard-denied)", name)
}

// OptionStack resolves option fields for one position in the tree.
// The stack is a fixed array of blocks indexed by Level; slots above
// the bound position stay nil and never participate. Resolution scans
// from the bound level down to Default and returns the first block
// that sets the field, so every getter is total: the Default level
// sets every field.
type OptionStack struct {
	levels [LevelTask + 1]*Options
	tree   *Tree
	role   int
	task   int
	bound  Level
}

// StackFromTree binds a stack at the Global position.
func StackFromTree(t *Tree) *OptionStack {
	s := &OptionStack{tree: t, role: -1, task: -1, bound: LevelGlobal}
	s.levels[LevelDefault] = defaultBlock()
	s.levels[LevelGlobal] = t.Global
	return s
}

// StackFromRole binds a stack at a role position. The index must
// reference an existing role.
func StackFromRole(t *Tree, role int) *OptionStack {
	s := &OptionStack{tree: t, role: role, task: -1, bound: LevelRole}
	s.levels[LevelDefault] = defaultBlock()
	s.levels[LevelGlobal] = t.Global
	s.levels[LevelRole] = t.Roles[role].Options
	return s
}

// StackFromTask binds a stack at a task position. The indices must
// reference an existing task.
func StackFromTask(t *Tree, role, task int) *OptionStack {
	s := &OptionStack{tree: t, role: role, task: task, bound: LevelTask}
	s.levels[LevelDefault] = defaultBlock()
	s.levels[LevelGlobal] = t.Global
	s.levels[LevelRole] = t.Roles[role].Options
	s.levels[LevelTask] = t.Roles[role].Tasks[task].Options
	return s
}

// Bound returns the level the stack is bound to.
func (s *OptionStack) Bound() Level { return s.bound }

// ResolvePath returns the effective search PATH and the level that
// supplied it.
func (s *OptionStack) ResolvePath() (string, Level) {
	for l := s.bound; l >= LevelDefault; l-- {
		if o := s.levels[l]; o != nil && o.Path != nil {
			return *o.Path, l
		}
	}
	return DefaultPath, LevelNone
}

// ResolveEnvKeep returns the effective environment whitelist and the
// level that supplied it.
func (s *OptionStack) ResolveEnvKeep() ([]string, Level) {
	for l := s.bound; l >= LevelDefault; l-- {
		if o := s.levels[l]; o != nil && o.EnvKeep != nil {
			return o.EnvKeep, l
		}
	}
	return DefaultEnvKeep(), LevelNone
}

// ResolveEnvCheck returns the effective environment checklist and the
// level that supplied it.
func (s *OptionStack) ResolveEnvCheck() ([]string, Level) {
	for l := s.bound; l >= LevelDefault; l-- {
		if o := s.levels[l]; o != nil && o.EnvCheck != nil {
			return o.EnvCheck, l
		}
	}
	return DefaultEnvCheck(), LevelNone
}

// ResolveAllowRoot returns whether the transitioned process may keep
// the ability to gain new privileges, and the level that decided it.
func (s *OptionStack) ResolveAllowRoot() (bool, Level) {
	for l := s.bound; l >= LevelDefault; l-- {
		if o := s.levels[l]; o != nil && o.AllowRoot != nil {
			return *o.AllowRoot, l
		}
	}
	return true, LevelNone
}

// ResolveAllowBounding returns whether the transitioned process keeps
// its full bounding set, and the level that decided it.
func (s *OptionStack) ResolveAllowBounding() (bool, Level) {
	for l := s.bound; l >= LevelDefault; l-- {
		if o := s.levels[l]; o != nil && o.AllowBounding != nil {
			return *o.AllowBounding, l
		}
	}
	return true, LevelNone
}

// ResolveWildcardDenied returns the wildcard-exclusion character set
// and the level that supplied it.
func (s *OptionStack) ResolveWildcardDenied() (string, Level) {
	for l := s.bound; l >= LevelDefault; l-- {
		if o := s.levels[l]; o != nil && o.WildcardDenied != nil {
			return *o.WildcardDenied, l
		}
	}
	return DefaultWildcardDenied, LevelNone
}

// edit returns the option block at the bound position, creating it in
// the owning tree when absent. Writes through the stack are visible
// to a subsequent save of the tree.
func (s *OptionStack) edit() *Options {
	switch s.bound {
	case LevelGlobal:
		if s.tree.Global == nil {
			s.tree.Global = &Options{}
		}
		s.levels[LevelGlobal] = s.tree.Global
		return s.tree.Global
	case LevelRole:
		role := s.tree.Roles[s.role]
		if role.Options == nil {
			role.Options = &Options{}
		}
		s.levels[LevelRole] = role.Options
		return role.Options
	case LevelTask:
		task := s.tree.Roles[s.role].Tasks[s.task]
		if task.Options == nil {
			task.Options = &Options{}
		}
		s.levels[LevelTask] = task.Options
		return task.Options
	}
	// Stacks are only constructed bound to Global, Role, or Task.
	panic("policy: option stack bound to " + s.bound.String())
}

// SetPath writes the PATH option at the bound position.
func (s *OptionStack) SetPath(v string) { s.edit().Path = &v }

// SetEnvKeep writes the environment whitelist at the bound position.
// A nil slice is stored as an explicit empty list.
func (s *OptionStack) SetEnvKeep(names []string) {
	if names == nil {
		names = []string{}
	}
	s.edit().EnvKeep = names
}

// SetEnvCheck writes the environment checklist at the bound position.
// A nil slice is stored as an explicit empty list.
func (s *OptionStack) SetEnvCheck(names []string) {
	if names == nil {
		names = []string{}
	}
	s.edit().EnvCheck = names
}

// SetAllowRoot writes the allow-root flag at the bound position.
func (s *OptionStack) SetAllowRoot(v bool) { s.edit().AllowRoot = &v }

// SetAllowBounding writes the allow-bounding flag at the bound
// position.
func (s *OptionStack) SetAllowBounding(v bool) { s.edit().AllowBounding = &v }

// SetWildcardDenied writes the wildcard-exclusion set at the bound
// position.
func (s *OptionStack) SetWildcardDenied(v string) { s.edit().WildcardDenied = &v }

// SetField parses raw per the field's type and writes it at the bound
// position: booleans for allow-root/allow-bounding, comma-separated
// names for the environment lists, verbatim text for the rest.
func (s *OptionStack) SetField(kind OptionKind, raw string) error {
	switch kind {
	case OptPath:
		s.SetPath(raw)
	case OptEnvKeep:
		s.SetEnvKeep(splitNameList(raw))
	case OptEnvCheck:
		s.SetEnvCheck(splitNameList(raw))
	case OptAllowRoot:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("allow-root: %w", err)
		}
		s.SetAllowRoot(v)
	case OptAllowBounding:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("allow-bounding: %w", err)
		}
		s.SetAllowBounding(v)
	case OptWildcardDenied:
		s.SetWildcardDenied(raw)
	default:
		return fmt.Errorf("unknown option field %v", kind)
	}
	return nil
}

// Unset clears the field at the bound position's block. Fields set at
// shallower levels are untouched: the next resolution falls through
// to them.
func (s *OptionStack) Unset(kind OptionKind) {
	block := s.levels[s.bound]
	if block == nil {
		return
	}
	switch kind {
	case OptPath:
		block.Path = nil
	case OptEnvKeep:
		block.EnvKeep = nil
	case OptEnvCheck:
		block.EnvCheck = nil
	case OptAllowRoot:
		block.AllowRoot = nil
	case OptAllowBounding:
		block.AllowBounding = nil
	case OptWildcardDenied:
		block.WildcardDenied = nil
	}
}

// splitNameList parses a comma-separated name list, trimming and
// dropping empty elements. "a,b , c" and "" parse to ["a","b","c"]
// and [] respectively.
func splitNameList(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
