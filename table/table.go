// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package table abstracts the key/value tables shared with kernel programs.
//
// Tables are read and written as raw fixed-size byte records, decoding is left
// to the record package. Enumeration order is unspecified and a table may be
// modified by the kernel while it is enumerated.
package table // import "github.com/ktelemetry/kstat/table"

import (
	"errors"
	"fmt"
)

// ErrSize is returned when a key or value does not match the table layout.
var ErrSize = errors.New("table record size mismatch")

// Table is a kernel key/value table.
type Table interface {
	// KeySize returns the size of a key in bytes.
	KeySize() int
	// ValueSize returns the size of a value in bytes.
	ValueSize() int
	// Keys returns a fresh iterator over the current keys.
	Keys() Iterator
	// Lookup returns the value stored for key. A missing key is reported
	// with ok set to false and a nil error.
	Lookup(key []byte) (value []byte, ok bool, err error)
	// Update overwrites the whole value stored for key, creating the entry
	// if needed.
	Update(key, value []byte) error
}

// Iterator walks the keys of a Table.
//
//	it := t.Keys()
//	for it.Next() {
//		key := it.Key()
//	}
//	if err := it.Err(); err != nil {
//	}
type Iterator interface {
	// Next advances to the next key and reports whether there is one.
	Next() bool
	// Key returns the current key. The returned slice is owned by the
	// caller.
	Key() []byte
	// Err returns the error that stopped the iteration, if any.
	Err() error
}

func checkSize(t Table, key, value []byte) error {
	if len(key) != t.KeySize() {
		return fmt.Errorf("%w: key has %d bytes, expected %d", ErrSize, len(key), t.KeySize())
	}
	if value != nil && len(value) != t.ValueSize() {
		return fmt.Errorf("%w: value has %d bytes, expected %d",
			ErrSize, len(value), t.ValueSize())
	}
	return nil
}

// ReadAndReset returns the value stored for key and overwrites it with zero.
// A missing entry reads as all zero bytes. Activity between the lookup and
// the update is lost.
func ReadAndReset(t Table, key, zero []byte) ([]byte, error) {
	value, ok, err := t.Lookup(key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up slot: %w", err)
	}
	if !ok {
		value = make([]byte, t.ValueSize())
	}
	if err := t.Update(key, zero); err != nil {
		return nil, fmt.Errorf("failed to reset slot: %w", err)
	}
	return value, nil
}
