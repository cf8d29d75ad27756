// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package table // import "github.com/ktelemetry/kstat/table"

import (
	"maps"
	"slices"
)

// Memory is an in-process Table. Keys are enumerated in random order, like
// the kernel hash maps it stands in for.
type Memory struct {
	keySize   int
	valueSize int
	entries   map[string][]byte
}

var _ Table = (*Memory)(nil)

// NewMemory returns an empty table with the given record sizes.
func NewMemory(keySize, valueSize int) *Memory {
	return &Memory{
		keySize:   keySize,
		valueSize: valueSize,
		entries:   make(map[string][]byte),
	}
}

func (m *Memory) KeySize() int   { return m.keySize }
func (m *Memory) ValueSize() int { return m.valueSize }

// Len returns the number of entries.
func (m *Memory) Len() int { return len(m.entries) }

func (m *Memory) Keys() Iterator {
	// Map iteration order is randomized per range statement.
	keys := slices.Collect(maps.Keys(m.entries))
	return &memoryIterator{keys: keys, pos: -1}
}

func (m *Memory) Lookup(key []byte) ([]byte, bool, error) {
	if err := checkSize(m, key, nil); err != nil {
		return nil, false, err
	}
	value, ok := m.entries[string(key)]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

func (m *Memory) Update(key, value []byte) error {
	if err := checkSize(m, key, value); err != nil {
		return err
	}
	m.entries[string(key)] = slices.Clone(value)
	return nil
}

// Delete removes key from the table.
func (m *Memory) Delete(key []byte) {
	delete(m.entries, string(key))
}

type memoryIterator struct {
	keys []string
	pos  int
}

func (it *memoryIterator) Next() bool {
	if it.pos+1 >= len(it.keys) {
		it.pos = len(it.keys)
		return false
	}
	it.pos++
	return true
}

func (it *memoryIterator) Key() []byte {
	return []byte(it.keys[it.pos])
}

func (it *memoryIterator) Err() error {
	return nil
}
