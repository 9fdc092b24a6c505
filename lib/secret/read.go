// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
)

// ReadFile loads a secret from a file, or from stdin when path is
// "-". Surrounding whitespace is trimmed, every intermediate copy is
// zeroed, and the result lands in a protected buffer the caller must
// Close. An empty source is an error.
func ReadFile(path string) (*Buffer, error) {
	var data []byte
	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return nil, fmt.Errorf("stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret file %s is empty", path)
	}

	// NewFromBytes zeroes trimmed; the full slice still holds the
	// stripped whitespace and, for files, the trimmed prefix.
	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	return buffer, err
}
