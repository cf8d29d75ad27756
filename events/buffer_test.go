// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cilium/ebpf/perf"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader replays scripted records. Once they are used up it returns err,
// or a deadline error when err is nil. With endless set it never runs dry.
type fakeReader[R any] struct {
	records   []R
	endless   bool
	err       error
	deadlines []time.Time
	reads     int
	closed    bool
}

func (r *fakeReader[R]) ReadInto(rec *R) error {
	r.reads++
	switch {
	case r.endless:
		*rec = r.records[0]
		return nil
	case len(r.records) > 0:
		*rec = r.records[0]
		r.records = r.records[1:]
		return nil
	case r.err != nil:
		return r.err
	default:
		return fmt.Errorf("epoll wait: %w", os.ErrDeadlineExceeded)
	}
}

func (r *fakeReader[R]) SetDeadline(t time.Time) {
	r.deadlines = append(r.deadlines, t)
}

func (r *fakeReader[R]) Close() error {
	r.closed = true
	return nil
}

type sample struct {
	cpu  int
	data []byte
}

// collect returns a handler recording every callback.
func collect(samples *[]sample, lost *uint64) Handler {
	return Handler{
		Sample: func(cpu int, data []byte) error {
			*samples = append(*samples, sample{cpu, append([]byte(nil), data...)})
			return nil
		},
		Lost: func(_ int, count uint64) {
			*lost += count
		},
	}
}

func TestPerfBufferPoll(t *testing.T) {
	rd := &fakeReader[perf.Record]{records: []perf.Record{
		{CPU: 1, RawSample: []byte{1, 2}},
		{CPU: 2, LostSamples: 7},
		{CPU: 3, RawSample: []byte{3}},
	}}
	b := &perfBuffer{rd: rd}

	var samples []sample
	var lost uint64
	start := time.Now()
	require.NoError(t, b.Poll(time.Second, collect(&samples, &lost)))

	assert.Equal(t, []sample{{1, []byte{1, 2}}, {3, []byte{3}}}, samples)
	assert.Equal(t, uint64(7), lost)
	assert.Equal(t, 4, rd.reads, "the final read hits the drain deadline")

	require.Len(t, rd.deadlines, 2)
	assert.WithinDuration(t, start.Add(time.Second), rd.deadlines[0], 500*time.Millisecond)
	assert.Equal(t, drainDeadline, rd.deadlines[1])

	require.NoError(t, b.Close())
	assert.True(t, rd.closed)
}

func TestPerfBufferPollTimeout(t *testing.T) {
	rd := &fakeReader[perf.Record]{}
	b := &perfBuffer{rd: rd}

	called := false
	require.NoError(t, b.Poll(time.Millisecond, Handler{
		Sample: func(int, []byte) error {
			called = true
			return nil
		},
	}))
	assert.False(t, called)
	assert.Len(t, rd.deadlines, 1, "no drain deadline without a record")
}

func TestPerfBufferPollErrors(t *testing.T) {
	errRead := errors.New("reader closed")
	errHandler := errors.New("handler failed")

	tests := map[string]struct {
		rd      *fakeReader[perf.Record]
		handler func(int, []byte) error
		wantErr error
	}{
		"read error": {
			rd:      &fakeReader[perf.Record]{err: errRead},
			handler: func(int, []byte) error { return nil },
			wantErr: errRead,
		},
		"handler error": {
			rd: &fakeReader[perf.Record]{records: []perf.Record{
				{RawSample: []byte{1}}, {RawSample: []byte{2}},
			}},
			handler: func(int, []byte) error { return errHandler },
			wantErr: errHandler,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			b := &perfBuffer{rd: tc.rd}
			err := b.Poll(time.Millisecond, Handler{Sample: tc.handler})
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPerfBufferPollLostWithoutHandler(t *testing.T) {
	rd := &fakeReader[perf.Record]{records: []perf.Record{{LostSamples: 3}}}
	b := &perfBuffer{rd: rd}
	require.NoError(t, b.Poll(time.Millisecond, Handler{
		Sample: func(int, []byte) error { return nil },
	}))
}

func TestPerfBufferPollBounded(t *testing.T) {
	rd := &fakeReader[perf.Record]{
		records: []perf.Record{{RawSample: []byte{0}}},
		endless: true,
	}
	b := &perfBuffer{rd: rd}

	n := 0
	require.NoError(t, b.Poll(time.Millisecond, Handler{
		Sample: func(int, []byte) error {
			n++
			return nil
		},
	}))
	assert.Equal(t, maxEvents, n)
	assert.Equal(t, maxEvents, rd.reads)
}

func TestPerfBufferPollPadded(t *testing.T) {
	const size = 40
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i)
	}
	// The kernel sizes raw samples as round_up(size+4, 8)-4.
	padded := append(append([]byte(nil), payload...), 0, 0, 0, 0)

	rd := &fakeReader[perf.Record]{records: []perf.Record{{RawSample: padded}}}
	b := &perfBuffer{rd: rd}

	var got []byte
	require.NoError(t, b.Poll(time.Millisecond, Handler{
		Sample: func(_ int, data []byte) error {
			got = append([]byte(nil), TrimPadding(data, size)...)
			return nil
		},
	}))
	assert.Equal(t, payload, got)
}

func TestTrimPadding(t *testing.T) {
	data := make([]byte, 64)
	tests := map[string]struct {
		len     int
		wantLen int
	}{
		"exact":     {len: 40, wantLen: 40},
		"padded":    {len: 44, wantLen: 40},
		"max pad":   {len: 47, wantLen: 40},
		"too long":  {len: 48, wantLen: 48},
		"too short": {len: 39, wantLen: 39},
		"empty":     {len: 0, wantLen: 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Len(t, TrimPadding(data[:tc.len], 40), tc.wantLen)
		})
	}
}

func TestRingBufferPoll(t *testing.T) {
	rd := &fakeReader[ringbuf.Record]{records: []ringbuf.Record{
		{RawSample: []byte{1}},
		{RawSample: []byte{2, 3}},
	}}
	b := &ringBuffer{rd: rd}

	var samples []sample
	var lost uint64
	start := time.Now()
	require.NoError(t, b.Poll(time.Second, collect(&samples, &lost)))

	assert.Equal(t, []sample{{NoCPU, []byte{1}}, {NoCPU, []byte{2, 3}}}, samples)
	assert.Zero(t, lost)
	require.Len(t, rd.deadlines, 2)
	assert.WithinDuration(t, start.Add(time.Second), rd.deadlines[0], 500*time.Millisecond)
	assert.Equal(t, drainDeadline, rd.deadlines[1])

	require.NoError(t, b.Close())
	assert.True(t, rd.closed)
}

func TestRingBufferPollErrors(t *testing.T) {
	errRead := errors.New("reader closed")
	b := &ringBuffer{rd: &fakeReader[ringbuf.Record]{err: errRead}}
	err := b.Poll(time.Millisecond, Handler{Sample: func(int, []byte) error { return nil }})
	require.ErrorIs(t, err, errRead)

	b = &ringBuffer{rd: &fakeReader[ringbuf.Record]{
		records: []ringbuf.Record{{RawSample: []byte{0}}},
		endless: true,
	}}
	n := 0
	require.NoError(t, b.Poll(time.Millisecond, Handler{
		Sample: func(int, []byte) error {
			n++
			return nil
		},
	}))
	assert.Equal(t, maxEvents, n)
}
