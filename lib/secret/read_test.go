// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.key")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadFileTrimsWhitespace(t *testing.T) {
	path := writeKeyFile(t, "  s3cret-master-key\n")

	buffer, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "s3cret-master-key" {
		t.Errorf("content = %q, want trimmed key", got)
	}
}

func TestReadFileRejectsEmpty(t *testing.T) {
	for name, content := range map[string]string{
		"empty":      "",
		"whitespace": " \n\t\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadFile(writeKeyFile(t, content)); err == nil {
				t.Error("ReadFile succeeded on empty key file")
			}
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("ReadFile succeeded on a missing file")
	}
}
