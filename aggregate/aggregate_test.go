// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package aggregate

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktelemetry/kstat/record"
	"github.com/ktelemetry/kstat/table"
)

type entry struct {
	key   record.SyscallKey
	value record.SyscallValue
}

func newTable(t *testing.T, entries []entry) *table.Memory {
	t.Helper()
	tbl := table.NewMemory(record.SizeSyscallKey, record.SizeSyscallValue)
	for _, e := range entries {
		k, err := e.key.MarshalBinary()
		require.NoError(t, err)
		v, err := e.value.MarshalBinary()
		require.NoError(t, err)
		require.NoError(t, tbl.Update(k, v))
	}
	return tbl
}

func TestAggregateEndToEnd(t *testing.T) {
	tbl := newTable(t, []entry{
		{record.SyscallKey{TID: 1, SyscallNr: 0}, record.SyscallValue{Count: 3, ElapsedNs: 900}},
		{record.SyscallKey{TID: 2, SyscallNr: 0}, record.SyscallValue{Count: 1, ElapsedNs: 300}},
	})

	rep, err := Aggregate(tbl, BySyscall)
	require.NoError(t, err)
	rows := rep.Sorted(ByCount)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{Code: 0, Count: 4, ElapsedNs: 1200}, rows[0])
	assert.InDelta(t, 0.0012, rows[0].ElapsedMs(), 1e-12)
	assert.Equal(t, Row{Count: 4, ElapsedNs: 1200}, rep.Total)
	assert.Equal(t, 2, rep.Entries)
}

func TestAggregateByThread(t *testing.T) {
	tbl := newTable(t, []entry{
		{record.SyscallKey{TID: 7, SyscallNr: 0}, record.SyscallValue{Count: 3, ElapsedNs: 900}},
		{record.SyscallKey{TID: 7, SyscallNr: 1}, record.SyscallValue{Count: 2, ElapsedNs: 100}},
		{record.SyscallKey{TID: 8, SyscallNr: 0}, record.SyscallValue{Count: 1, ElapsedNs: 300}},
	})

	rep, err := Aggregate(tbl, ByThread)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{Code: 7, Count: 5, ElapsedNs: 1000},
		{Code: 8, Count: 1, ElapsedNs: 300},
	}, rep.Sorted(ByCount))
}

func TestAggregatePermutationInvariance(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 11))
	var entries []entry
	for tid := range uint32(20) {
		for nr := range uint64(5) {
			entries = append(entries, entry{
				key: record.SyscallKey{TID: tid, SyscallNr: nr},
				value: record.SyscallValue{
					Count:     rnd.Uint64N(1000),
					ElapsedNs: rnd.Uint64N(1_000_000),
					EnterNs:   rnd.Uint64(),
				},
			})
		}
	}

	want, err := Aggregate(newTable(t, entries), BySyscall)
	require.NoError(t, err)

	for range 10 {
		rnd.Shuffle(len(entries), func(i, j int) {
			entries[i], entries[j] = entries[j], entries[i]
		})
		got, err := Aggregate(newTable(t, entries), BySyscall)
		require.NoError(t, err)
		assert.Equal(t, want.Total, got.Total)
		assert.ElementsMatch(t, want.Sorted(ByCount), got.Sorted(ByCount))
		assert.Equal(t, want.Sorted(ByElapsed), got.Sorted(ByElapsed))
	}
}

func TestSorted(t *testing.T) {
	const a, b, c = 10, 11, 12
	tbl := newTable(t, []entry{
		{record.SyscallKey{TID: 1, SyscallNr: a}, record.SyscallValue{Count: 5, ElapsedNs: 100}},
		{record.SyscallKey{TID: 1, SyscallNr: b}, record.SyscallValue{Count: 9, ElapsedNs: 50}},
		{record.SyscallKey{TID: 1, SyscallNr: c}, record.SyscallValue{Count: 2, ElapsedNs: 900}},
	})
	rep, err := Aggregate(tbl, BySyscall)
	require.NoError(t, err)

	codes := func(rows []Row) []uint64 {
		out := make([]uint64, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.Code)
		}
		return out
	}
	assert.Equal(t, []uint64{b, a, c}, codes(rep.Sorted(ByCount)))
	assert.Equal(t, []uint64{c, a, b}, codes(rep.Sorted(ByElapsed)))
}

func TestSortedTies(t *testing.T) {
	tbl := newTable(t, []entry{
		{record.SyscallKey{TID: 1, SyscallNr: 3}, record.SyscallValue{Count: 1}},
		{record.SyscallKey{TID: 1, SyscallNr: 1}, record.SyscallValue{Count: 1}},
		{record.SyscallKey{TID: 1, SyscallNr: 2}, record.SyscallValue{Count: 1}},
	})
	rep, err := Aggregate(tbl, BySyscall)
	require.NoError(t, err)
	rows := rep.Sorted(ByCount)
	require.Len(t, rows, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{rows[0].Code, rows[1].Code, rows[2].Code})
}

// vanishingTable drops every key right after it was enumerated.
type vanishingTable struct {
	*table.Memory
	drop map[string]bool
}

func (v *vanishingTable) Lookup(key []byte) ([]byte, bool, error) {
	if v.drop[string(key)] {
		v.Memory.Delete(key)
	}
	return v.Memory.Lookup(key)
}

func TestAggregateSkipsVanishedKeys(t *testing.T) {
	gone := record.SyscallKey{TID: 2, SyscallNr: 0}
	mem := newTable(t, []entry{
		{record.SyscallKey{TID: 1, SyscallNr: 0}, record.SyscallValue{Count: 3, ElapsedNs: 900}},
		{gone, record.SyscallValue{Count: 1, ElapsedNs: 300}},
	})
	goneKey, err := gone.MarshalBinary()
	require.NoError(t, err)

	rep, err := Aggregate(&vanishingTable{Memory: mem, drop: map[string]bool{string(goneKey): true}},
		BySyscall)
	require.NoError(t, err)
	assert.Equal(t, Row{Count: 3, ElapsedNs: 900}, rep.Total)
	assert.Equal(t, 1, rep.Entries)
}

func TestAggregateLayoutMismatch(t *testing.T) {
	tbl := table.NewMemory(record.SizeSyscallKey, 16)
	require.NoError(t, tbl.Update(make([]byte, record.SizeSyscallKey), make([]byte, 16)))

	_, err := Aggregate(tbl, BySyscall)
	require.ErrorIs(t, err, record.ErrSize)
}

func TestParse(t *testing.T) {
	g, err := ParseGroupBy("thread")
	require.NoError(t, err)
	assert.Equal(t, ByThread, g)
	_, err = ParseGroupBy("cpu")
	require.Error(t, err)

	s, err := ParseSortBy("elapsed")
	require.NoError(t, err)
	assert.Equal(t, ByElapsed, s)
	assert.Equal(t, "elapsed", s.String())
	_, err = ParseSortBy("name")
	require.Error(t, err)
}
