// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"testing"

	"github.com/provost-linux/provost/lib/capset"
)

func opsCredential() Credential {
	return Credential{
		User:   User{Name: "bob", UID: 1001},
		Groups: []Group{{Name: "bob", GID: 1001}, {Name: "ops", GID: 200}},
		TTY:    34816,
		PPID:   4242,
	}
}

// deployTree is the restart-service scenario: role "deploy" grants
// group-set {ops} a wildcard systemctl restart with CAP_SYS_ADMIN.
func deployTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree()
	role := &Role{Name: "deploy", Groups: []GroupSet{{"ops"}}}
	if err := tree.AddRole(role); err != nil {
		t.Fatal(err)
	}
	caps := capset.Of(capset.SysAdmin)
	err := role.AddTask(&Task{
		ID:       NameID("t1"),
		Commands: []string{"/usr/bin/systemctl restart *"},
		Caps:     &caps,
	})
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestMatchWildcardGrant(t *testing.T) {
	tree := deployTree(t)
	decision, err := tree.Match(opsCredential(), Command{
		Path: "/usr/bin/systemctl",
		Args: []string{"restart", "nginx"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Role().Name != "deploy" || !decision.Task().ID.Equal(NameID("t1")) {
		t.Errorf("matched %s/%s", decision.Role().Name, decision.Task().ID)
	}
	if decision.Caps != capset.Of(capset.SysAdmin) {
		t.Errorf("capabilities = %v", decision.Caps)
	}
}

func TestMatchRejectsInjectionThroughWildcard(t *testing.T) {
	tree := deployTree(t)
	_, err := tree.Match(opsCredential(), Command{
		Path: "/usr/bin/systemctl",
		Args: []string{"restart", "nginx;reboot"},
	})
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("want NoMatchError, got %v", err)
	}
}

func TestMatchActorGate(t *testing.T) {
	tree := deployTree(t)
	outsider := Credential{
		User:   User{Name: "mallory", UID: 1002},
		Groups: []Group{{Name: "mallory", GID: 1002}},
	}
	if _, err := tree.Match(outsider, Command{Path: "/usr/bin/systemctl", Args: []string{"restart", "nginx"}}); err == nil {
		t.Fatal("unauthorized credential matched")
	}
}

func TestMatchInRole(t *testing.T) {
	tree := deployTree(t)
	cred := opsCredential()

	decision, err := tree.MatchInRole(0, cred, Command{Path: "/usr/bin/systemctl", Args: []string{"restart", "postgres"}})
	if err != nil {
		t.Fatal(err)
	}
	if decision.RoleIndex != 0 || decision.TaskIndex != 0 {
		t.Errorf("decision indices = %d/%d", decision.RoleIndex, decision.TaskIndex)
	}

	_, err = tree.MatchInRole(0, cred, Command{Path: "/usr/bin/systemctl", Args: []string{"stop", "nginx"}})
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("want NoMatchError, got %v", err)
	}
	if noMatch.Role != "deploy" {
		t.Errorf("NoMatchError.Role = %q", noMatch.Role)
	}
}

// TestFirstRoleWinsRegression pins the documented shadowing behavior:
// when two roles both authorize a command for the same credential,
// the first role in document order wins even when a later role is
// more specific. Reordering the roles file changes the outcome; this
// behavior is deliberate and load order must be preserved.
func TestFirstRoleWinsRegression(t *testing.T) {
	tree := NewTree()

	first := &Role{Name: "broad", Groups: []GroupSet{{"ops"}}}
	if err := tree.AddRole(first); err != nil {
		t.Fatal(err)
	}
	broadCaps := capset.Of(capset.NetAdmin)
	if err := first.AddTask(&Task{Commands: []string{"/usr/bin/systemctl *"}, Caps: &broadCaps}); err != nil {
		t.Fatal(err)
	}

	second := &Role{Name: "narrow", Groups: []GroupSet{{"ops"}}}
	if err := tree.AddRole(second); err != nil {
		t.Fatal(err)
	}
	narrowCaps := capset.Of(capset.SysAdmin)
	if err := second.AddTask(&Task{Commands: []string{"/usr/bin/systemctl restart nginx"}, Caps: &narrowCaps}); err != nil {
		t.Fatal(err)
	}

	decision, err := tree.Match(opsCredential(), Command{Path: "/usr/bin/systemctl", Args: []string{"restart", "nginx"}})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Role().Name != "broad" {
		t.Errorf("matched role %q, want the earlier role to shadow the exact one", decision.Role().Name)
	}

	all := tree.MatchAll(opsCredential(), Command{Path: "/usr/bin/systemctl", Args: []string{"restart", "nginx"}})
	if len(all) != 2 || all[0].Role().Name != "broad" || all[1].Role().Name != "narrow" {
		t.Errorf("MatchAll order wrong: %d decisions", len(all))
	}
}

func TestFirstTaskWinsWithinRole(t *testing.T) {
	tree := NewTree()
	role := &Role{Name: "deploy", Users: []string{"bob"}}
	if err := tree.AddRole(role); err != nil {
		t.Fatal(err)
	}
	wideCaps := capset.Of(capset.SysAdmin)
	if err := role.AddTask(&Task{Commands: []string{"/bin/systemctl *"}, Caps: &wideCaps}); err != nil {
		t.Fatal(err)
	}
	if err := role.AddTask(&Task{Commands: []string{"/bin/systemctl restart nginx"}}); err != nil {
		t.Fatal(err)
	}

	decision, err := tree.Match(opsCredential(), Command{Path: "/bin/systemctl", Args: []string{"restart", "nginx"}})
	if err != nil {
		t.Fatal(err)
	}
	if decision.TaskIndex != 0 {
		t.Errorf("matched task %d, want document-order first", decision.TaskIndex)
	}
}

func TestLiteralPatternExactness(t *testing.T) {
	tree := NewTree()
	role := &Role{Name: "backup", Users: []string{"bob"}}
	if err := tree.AddRole(role); err != nil {
		t.Fatal(err)
	}
	if err := role.AddTask(&Task{Commands: []string{"/usr/bin/rsync -a /srv /backup"}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cmd  Command
		ok   bool
	}{
		{"identical", Command{Path: "/usr/bin/rsync", Args: []string{"-a", "/srv", "/backup"}}, true},
		{"extra argument", Command{Path: "/usr/bin/rsync", Args: []string{"-a", "/srv", "/backup", "--delete"}}, false},
		{"missing argument", Command{Path: "/usr/bin/rsync", Args: []string{"-a", "/srv"}}, false},
		{"bare path", Command{Path: "/usr/bin/rsync"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tree.Match(opsCredential(), tt.cmd)
			if got := err == nil; got != tt.ok {
				t.Errorf("match = %v, want %v (err %v)", got, tt.ok, err)
			}
		})
	}
}

func TestWildcardDeniedResolvedFromStack(t *testing.T) {
	// A task-level override of the exclusion set loosens matching for
	// that task only.
	tree := deployTree(t)
	relaxed := ""
	tree.Roles[0].Tasks[0].Options = &Options{WildcardDenied: &relaxed}

	_, err := tree.Match(opsCredential(), Command{
		Path: "/usr/bin/systemctl",
		Args: []string{"restart", "nginx;reboot"},
	})
	if err != nil {
		t.Fatalf("relaxed exclusion set still rejected: %v", err)
	}
}

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		text    string
		denied  string
		want    bool
	}{
		{"literal exact", "/bin/ls", "/bin/ls", ";&|", true},
		{"literal mismatch", "/bin/ls", "/bin/ls -l", ";&|", false},
		{"star tail", "/bin/ls *", "/bin/ls -l /tmp", ";&|", true},
		{"star empty run", "/bin/ls *", "/bin/ls ", ";&|", true},
		{"star refuses semicolon", "/bin/ls *", "/bin/ls ;reboot", ";&|", false},
		{"star refuses pipe", "/bin/echo *", "/bin/echo hi|sh", ";&|", false},
		{"star refuses ampersand", "/bin/echo *", "/bin/echo hi&", ";&|", false},
		{"interior star", "/usr/bin/a*c", "/usr/bin/abc", ";&|", true},
		{"two stars", "/bin/cp * /srv/*", "/bin/cp a.txt /srv/b.txt", ";&|", true},
		{"question mark", "/dev/tty?", "/dev/tty1", ";&|", true},
		{"question mark denied", "/bin/x ?", "/bin/x ;", ";&|", false},
		{"literal semicolon in pattern", "/bin/x a;b", "/bin/x a;b", ";&|", true},
		{"wildcard with literal semicolon", "/bin/x a;*", "/bin/x a;b", ";&|", true},
		{"empty exclusion set", "/bin/ls *", "/bin/ls a;b", "", true},
		{"unicode text", "/bin/cat *", "/bin/cat résumé.txt", ";&|", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PatternMatches(tt.pattern, tt.text, tt.denied); got != tt.want {
				t.Errorf("PatternMatches(%q, %q, %q) = %v, want %v",
					tt.pattern, tt.text, tt.denied, got, tt.want)
			}
		})
	}
}
