// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package record decodes the fixed-layout records that the kernel programs
// store in their maps and emit through their event buffers.
//
// Every record mirrors the C struct it is read from, padding included, and is
// encoded in host byte order. Buffers handed to UnmarshalBinary come from an
// untrusted source: their length is checked against the declared layout before
// any field is read, and a mismatch leaves the record untouched.
package record // import "github.com/ktelemetry/kstat/record"

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrSize is returned when a buffer does not match the size of the record it
// is decoded into. It indicates a layout mismatch between the kernel program
// and this binary.
var ErrSize = errors.New("record size mismatch")

// Record sizes, as laid out by the C compiler for the kernel side structs.
const (
	SizeSlotKey      = 4
	SizeSyscallKey   = 16
	SizeSyscallValue = 24
	SizeIOValue      = 16
	SizeUnshareEvent = 40
)

// commLen is TASK_COMM_LEN.
const commLen = 16

var byteOrder = binary.NativeEndian

// Unmarshaler is implemented by pointers to every record type.
type Unmarshaler[T any] interface {
	*T
	encoding.BinaryUnmarshaler
}

// Decode decodes b into a new record of type T. On error the zero value is
// returned, never a partially populated record.
func Decode[T any, PT Unmarshaler[T]](b []byte) (T, error) {
	var v T
	if err := PT(&v).UnmarshalBinary(b); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func checkSize(name string, b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrSize, name, want, len(b))
	}
	return nil
}

// SlotKey is the key of single slot tables, `u32` on the kernel side.
type SlotKey struct {
	Value uint32
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (k SlotKey) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeSlotKey)
	byteOrder.PutUint32(b, k.Value)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (k *SlotKey) UnmarshalBinary(b []byte) error {
	if err := checkSize("slot key", b, SizeSlotKey); err != nil {
		return err
	}
	k.Value = byteOrder.Uint32(b)
	return nil
}

// SyscallKey identifies the counters of one syscall issued by one thread.
type SyscallKey struct {
	TID       uint32
	pad       [4]byte
	SyscallNr uint64
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (k SyscallKey) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeSyscallKey)
	byteOrder.PutUint32(b[0:], k.TID)
	copy(b[4:8], k.pad[:])
	byteOrder.PutUint64(b[8:], k.SyscallNr)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (k *SyscallKey) UnmarshalBinary(b []byte) error {
	if err := checkSize("syscall key", b, SizeSyscallKey); err != nil {
		return err
	}
	k.TID = byteOrder.Uint32(b[0:])
	copy(k.pad[:], b[4:8])
	k.SyscallNr = byteOrder.Uint64(b[8:])
	return nil
}

// SyscallValue holds the counters of a SyscallKey. EnterNs is scratch space of
// the kernel program and carries no meaning for readers.
type SyscallValue struct {
	Count     uint64
	ElapsedNs uint64
	EnterNs   uint64
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v SyscallValue) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeSyscallValue)
	byteOrder.PutUint64(b[0:], v.Count)
	byteOrder.PutUint64(b[8:], v.ElapsedNs)
	byteOrder.PutUint64(b[16:], v.EnterNs)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *SyscallValue) UnmarshalBinary(b []byte) error {
	if err := checkSize("syscall value", b, SizeSyscallValue); err != nil {
		return err
	}
	v.Count = byteOrder.Uint64(b[0:])
	v.ElapsedNs = byteOrder.Uint64(b[8:])
	v.EnterNs = byteOrder.Uint64(b[16:])
	return nil
}

// IOValue counts block I/O requests and the bytes they carried.
type IOValue struct {
	Count          uint64
	ProcessedBytes uint64
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v IOValue) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeIOValue)
	byteOrder.PutUint64(b[0:], v.Count)
	byteOrder.PutUint64(b[8:], v.ProcessedBytes)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *IOValue) UnmarshalBinary(b []byte) error {
	if err := checkSize("I/O value", b, SizeIOValue); err != nil {
		return err
	}
	v.Count = byteOrder.Uint64(b[0:])
	v.ProcessedBytes = byteOrder.Uint64(b[8:])
	return nil
}
