// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package record // import "github.com/ktelemetry/kstat/record"

import (
	"bytes"
	"strings"
)

// UnshareEvent is emitted on return from unshare(2).
type UnshareEvent struct {
	PID   uint32
	pad0  [4]byte
	Flags uint64
	Ret   int32
	Comm  [commLen]byte
	pad1  [4]byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (e UnshareEvent) MarshalBinary() ([]byte, error) {
	b := make([]byte, SizeUnshareEvent)
	byteOrder.PutUint32(b[0:], e.PID)
	copy(b[4:8], e.pad0[:])
	byteOrder.PutUint64(b[8:], e.Flags)
	byteOrder.PutUint32(b[16:], uint32(e.Ret))
	copy(b[20:36], e.Comm[:])
	copy(b[36:40], e.pad1[:])
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *UnshareEvent) UnmarshalBinary(b []byte) error {
	if err := checkSize("unshare event", b, SizeUnshareEvent); err != nil {
		return err
	}
	e.PID = byteOrder.Uint32(b[0:])
	copy(e.pad0[:], b[4:8])
	e.Flags = byteOrder.Uint64(b[8:])
	e.Ret = int32(byteOrder.Uint32(b[16:]))
	copy(e.Comm[:], b[20:36])
	copy(e.pad1[:], b[36:40])
	return nil
}

// CloneFlags returns the known namespace bits of Flags.
func (e *UnshareEvent) CloneFlags() CloneFlags {
	return CloneFlagsFromBits(e.Flags)
}

// CommString returns the task name up to the first NUL byte. Bytes that are
// not valid UTF-8 are replaced.
func (e *UnshareEvent) CommString() string {
	comm := e.Comm[:]
	if i := bytes.IndexByte(comm, 0); i >= 0 {
		comm = comm[:i]
	}
	return strings.ToValidUTF8(string(comm), "\uFFFD")
}
