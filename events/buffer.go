// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package events // import "github.com/ktelemetry/kstat/events"

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/perf"
	"github.com/cilium/ebpf/ringbuf"
)

// maxEvents is the maximum number of records handled by one Poll call. It
// bounds the time between two cancellation checks when the kernel produces
// records faster than they are consumed.
const maxEvents = 4096

// ErrUnsupportedMap is returned by NewBuffer for maps that are neither a
// perf event array nor a ring buffer.
var ErrUnsupportedMap = errors.New("unsupported event map type")

// maxPerfPadding is the largest number of bytes the kernel appends to a perf
// raw sample to keep the records of the per CPU buffer 8 byte aligned.
const maxPerfPadding = 7

// NoCPU is passed to Handler callbacks when the buffer does not track the
// producing CPU.
const NoCPU = -1

// Handler receives the records drained by Buffer.Poll. Both callbacks run
// synchronously inside Poll and must not call back into it. The data slice
// is only valid for the duration of the call.
type Handler struct {
	// Sample is called for every record. A returned error aborts Poll.
	// Perf event arrays may append alignment padding to data, see
	// TrimPadding.
	Sample func(cpu int, data []byte) error
	// Lost is called when the kernel dropped count records on cpu.
	Lost func(cpu int, count uint64)
}

// Buffer is a kernel event buffer shared by all CPUs.
type Buffer interface {
	// Poll waits up to timeout for records and then drains what is
	// available without blocking. A timeout without records is not an
	// error.
	Poll(timeout time.Duration, h Handler) error
	// Close releases the buffer.
	Close() error
}

// TrimPadding strips the alignment padding of a raw sample that carries a
// record of size bytes. Data shorter than size, or longer than the padding
// explains, is returned unchanged for the decoder to reject.
func TrimPadding(data []byte, size int) []byte {
	if extra := len(data) - size; extra > 0 && extra <= maxPerfPadding {
		return data[:size]
	}
	return data
}

// perfReader is the part of perf.Reader used by perfBuffer.
type perfReader interface {
	ReadInto(rec *perf.Record) error
	SetDeadline(t time.Time)
	Close() error
}

// ringReader is the part of ringbuf.Reader used by ringBuffer.
type ringReader interface {
	ReadInto(rec *ringbuf.Record) error
	SetDeadline(t time.Time)
	Close() error
}

// NewBuffer opens a reader for m. perCPUBuffer is the size in bytes of each
// per CPU buffer and is only used for perf event arrays.
func NewBuffer(m *ebpf.Map, perCPUBuffer int) (Buffer, error) {
	switch typ := m.Type(); typ {
	case ebpf.PerfEventArray:
		rd, err := perf.NewReader(m, perCPUBuffer)
		if err != nil {
			return nil, fmt.Errorf("failed to setup perf reader for %s: %w", m, err)
		}
		return &perfBuffer{rd: rd}, nil
	case ebpf.RingBuf:
		rd, err := ringbuf.NewReader(m)
		if err != nil {
			return nil, fmt.Errorf("failed to setup ring buffer reader for %s: %w", m, err)
		}
		return &ringBuffer{rd: rd}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMap, typ)
	}
}

// drainDeadline is a deadline in the past. A deadline of zero is treated as
// "no deadline", so one second after the unix epoch is used to make reads
// return immediately once the buffer is empty.
var drainDeadline = time.Unix(1, 0)

type perfBuffer struct {
	rd     perfReader
	record perf.Record
}

func (b *perfBuffer) Poll(timeout time.Duration, h Handler) error {
	b.rd.SetDeadline(time.Now().Add(timeout))
	for n := 0; n < maxEvents; n++ {
		if err := b.rd.ReadInto(&b.record); err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return err
		}
		if n == 0 {
			b.rd.SetDeadline(drainDeadline)
		}

		if b.record.LostSamples != 0 {
			if h.Lost != nil {
				h.Lost(b.record.CPU, b.record.LostSamples)
			}
			continue
		}
		if err := h.Sample(b.record.CPU, b.record.RawSample); err != nil {
			return err
		}
	}
	return nil
}

func (b *perfBuffer) Close() error {
	return b.rd.Close()
}

// ringBuffer reads a BPF_MAP_TYPE_RINGBUF. The kernel reports no lost
// records for ring buffers: a full buffer makes bpf_ringbuf_output fail in
// the producer.
type ringBuffer struct {
	rd     ringReader
	record ringbuf.Record
}

func (b *ringBuffer) Poll(timeout time.Duration, h Handler) error {
	b.rd.SetDeadline(time.Now().Add(timeout))
	for n := 0; n < maxEvents; n++ {
		if err := b.rd.ReadInto(&b.record); err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return err
		}
		if n == 0 {
			b.rd.SetDeadline(drainDeadline)
		}
		if err := h.Sample(NoCPU, b.record.RawSample); err != nil {
			return err
		}
	}
	return nil
}

func (b *ringBuffer) Close() error {
	return b.rd.Close()
}
