// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package aggregate folds a snapshot of the per thread syscall table into
// ranked per group totals.
package aggregate // import "github.com/ktelemetry/kstat/aggregate"

import (
	"cmp"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"

	"github.com/ktelemetry/kstat/metrics"
	"github.com/ktelemetry/kstat/record"
	"github.com/ktelemetry/kstat/table"
)

// GroupBy selects the key field rows are grouped by.
type GroupBy int

const (
	// BySyscall groups by system call number.
	BySyscall GroupBy = iota
	// ByThread groups by thread id.
	ByThread
)

func (g GroupBy) String() string {
	switch g {
	case BySyscall:
		return "syscall"
	case ByThread:
		return "thread"
	default:
		return fmt.Sprintf("GroupBy(%d)", int(g))
	}
}

// ParseGroupBy parses the String form of a GroupBy.
func ParseGroupBy(s string) (GroupBy, error) {
	switch s {
	case "syscall":
		return BySyscall, nil
	case "thread":
		return ByThread, nil
	}
	return 0, fmt.Errorf("unknown grouping %q", s)
}

// SortBy selects the column rows are ranked by.
type SortBy int

const (
	// ByCount ranks by number of calls.
	ByCount SortBy = iota
	// ByElapsed ranks by accumulated time.
	ByElapsed
)

func (s SortBy) String() string {
	switch s {
	case ByCount:
		return "count"
	case ByElapsed:
		return "elapsed"
	default:
		return fmt.Sprintf("SortBy(%d)", int(s))
	}
}

// ParseSortBy parses the String form of a SortBy.
func ParseSortBy(s string) (SortBy, error) {
	switch s {
	case "count":
		return ByCount, nil
	case "elapsed":
		return ByElapsed, nil
	}
	return 0, fmt.Errorf("unknown sort key %q", s)
}

// Row holds the totals of one group.
type Row struct {
	// Code is the syscall number or the thread id, depending on GroupBy.
	Code      uint64
	Count     uint64
	ElapsedNs uint64
}

// ElapsedMs returns the accumulated time in milliseconds.
func (r Row) ElapsedMs() float64 {
	return float64(r.ElapsedNs) / 1e6
}

func (r *Row) add(v record.SyscallValue) {
	r.Count += v.Count
	r.ElapsedNs += v.ElapsedNs
}

// Report is the result of one aggregation pass.
type Report struct {
	GroupBy GroupBy
	// Total sums all entries of the snapshot. Its Code is zero.
	Total Row
	// Entries is the number of table entries folded into the report.
	Entries int

	rows map[uint64]*Row
}

// Aggregate enumerates t once and sums the values of all entries per group.
// Keys that disappear between enumeration and lookup are skipped. A record
// that does not match the syscall layouts aborts the pass.
func Aggregate(t table.Table, by GroupBy) (*Report, error) {
	rep := &Report{GroupBy: by, rows: make(map[uint64]*Row)}
	var vanished int

	it := t.Keys()
	for it.Next() {
		rawKey := it.Key()
		key, err := record.Decode[record.SyscallKey](rawKey)
		if err != nil {
			metrics.Add(metrics.IDRecordDecodeErrors, 1)
			return nil, fmt.Errorf("failed to decode key: %w", err)
		}
		rawValue, ok, err := t.Lookup(rawKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			vanished++
			continue
		}
		value, err := record.Decode[record.SyscallValue](rawValue)
		if err != nil {
			metrics.Add(metrics.IDRecordDecodeErrors, 1)
			return nil, fmt.Errorf("failed to decode value of tid %d nr %d: %w",
				key.TID, key.SyscallNr, err)
		}

		code := key.SyscallNr
		if by == ByThread {
			code = uint64(key.TID)
		}
		row, ok := rep.rows[code]
		if !ok {
			row = &Row{Code: code}
			rep.rows[code] = row
		}
		row.add(value)
		rep.Total.add(value)
		rep.Entries++
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	if vanished > 0 {
		log.Debugf("Skipped %d keys removed during aggregation", vanished)
	}
	metrics.AddSlice([]metrics.Metric{
		{ID: metrics.IDAggregateEntries, Value: metrics.MetricValue(rep.Entries)},
		{ID: metrics.IDAggregateVanishedKeys, Value: metrics.MetricValue(vanished)},
	})
	return rep, nil
}

// Len returns the number of groups.
func (r *Report) Len() int {
	return len(r.rows)
}

// Sorted returns the rows ranked descending by the selected column. Ties are
// ranked by ascending code, so the order does not depend on the enumeration
// order of the table.
func (r *Report) Sorted(by SortBy) []Row {
	rows := make([]Row, 0, len(r.rows))
	for _, row := range r.rows {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b Row) int {
		var c int
		switch by {
		case ByElapsed:
			c = cmp.Compare(b.ElapsedNs, a.ElapsedNs)
		default:
			c = cmp.Compare(b.Count, a.Count)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return rows
}
