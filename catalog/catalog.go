// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog maps system call numbers to their names.
package catalog // import "github.com/ktelemetry/kstat/catalog"

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Catalog is an immutable code to name mapping. It is safe for concurrent
// readers once Load returned.
type Catalog struct {
	names map[uint64]string
}

// Load parses a tab separated table of (code, name) lines. Lines whose first
// field is not a decimal number are skipped, which covers headers, comments
// and blank lines. Later lines override earlier lines with the same code.
func Load(r io.Reader) (*Catalog, error) {
	c := &Catalog{names: make(map[uint64]string)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		codeField, name, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		code, err := strconv.ParseUint(codeField, 10, 64)
		if err != nil {
			continue
		}
		// Trailing columns are ignored.
		name, _, _ = strings.Cut(name, "\t")
		c.names[code] = strings.TrimSpace(name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return c, nil
}

// Lookup returns the name for code.
func (c *Catalog) Lookup(code uint64) (string, bool) {
	name, ok := c.names[code]
	return name, ok
}

// Name returns the name for code, or a placeholder of the form "unknown(N)"
// for codes not in the catalog.
func (c *Catalog) Name(code uint64) string {
	if name, ok := c.names[code]; ok {
		return name
	}
	return "unknown(" + strconv.FormatUint(code, 10) + ")"
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.names)
}
