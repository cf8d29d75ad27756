// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package table // import "github.com/ktelemetry/kstat/table"

import (
	"fmt"

	"github.com/cilium/ebpf"
)

// BPF is a Table backed by an eBPF map.
type BPF struct {
	m *ebpf.Map
}

var _ Table = (*BPF)(nil)

// NewBPF wraps m. The map stays owned by the caller.
func NewBPF(m *ebpf.Map) *BPF {
	return &BPF{m: m}
}

func (b *BPF) KeySize() int   { return int(b.m.KeySize()) }
func (b *BPF) ValueSize() int { return int(b.m.ValueSize()) }

func (b *BPF) Keys() Iterator {
	return &bpfIterator{m: b.m}
}

func (b *BPF) Lookup(key []byte) ([]byte, bool, error) {
	if err := checkSize(b, key, nil); err != nil {
		return nil, false, err
	}
	value, err := b.m.LookupBytes(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up %s: %w", b.m, err)
	}
	return value, value != nil, nil
}

func (b *BPF) Update(key, value []byte) error {
	if err := checkSize(b, key, value); err != nil {
		return err
	}
	if err := b.m.Update(key, value, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("failed to update %s: %w", b.m, err)
	}
	return nil
}

// bpfIterator walks keys with BPF_MAP_GET_NEXT_KEY. A key deleted while
// iterating makes the kernel restart from the first key, so keys may be
// visited more than once for hash maps that are modified concurrently.
type bpfIterator struct {
	m    *ebpf.Map
	key  []byte
	done bool
	err  error
}

func (it *bpfIterator) Next() bool {
	if it.done {
		return false
	}
	next, err := it.m.NextKeyBytes(it.key)
	if err != nil {
		it.err = fmt.Errorf("failed to iterate %s: %w", it.m, err)
		it.done = true
		return false
	}
	if next == nil {
		it.done = true
		return false
	}
	it.key = next
	return true
}

func (it *bpfIterator) Key() []byte {
	return append([]byte(nil), it.key...)
}

func (it *bpfIterator) Err() error {
	return it.err
}
