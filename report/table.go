// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders collector results for the terminal.
package report // import "github.com/ktelemetry/kstat/report"

import (
	"fmt"
	"io"

	"github.com/ktelemetry/kstat/aggregate"
)

// Namer maps a row code to its display name.
type Namer func(code uint64) string

// TableOptions configures WriteTable.
type TableOptions struct {
	// Top limits the number of rows, 0 means all rows.
	Top int
	// Header is the name of the first column, NAME when empty.
	Header string
}

const tableRowFormat = "%-24s %12d %16.4f\n"

// WriteTable writes ranked rows as a fixed-width table followed by a total
// line.
func WriteTable(w io.Writer, rows []aggregate.Row, total aggregate.Row, name Namer,
	opts TableOptions) error {
	header := opts.Header
	if header == "" {
		header = "NAME"
	}
	if opts.Top > 0 && len(rows) > opts.Top {
		rows = rows[:opts.Top]
	}

	if _, err := fmt.Fprintf(w, "%-24s %12s %16s\n", header, "COUNT", "ELAPSED(ms)"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, tableRowFormat, name(r.Code), r.Count, r.ElapsedMs()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, tableRowFormat, "TOTAL", total.Count, total.ElapsedMs())
	return err
}

// Progress writes one dot per call, used while the syscall table fills.
type Progress struct {
	w io.Writer
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

// Tick writes a dot.
func (p *Progress) Tick() {
	fmt.Fprint(p.w, ".")
}

// Done terminates the line of dots.
func (p *Progress) Done() {
	fmt.Fprintln(p.w)
}
