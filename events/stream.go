// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package events drains kernel event buffers.
package events // import "github.com/ktelemetry/kstat/events"

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/ktelemetry/kstat/metrics"
)

// metricsInterval is how often the stream publishes its counters.
const metricsInterval = time.Second

// Stream polls a Buffer until its context is canceled.
type Stream struct {
	buf     Buffer
	handler Handler

	records     atomic.Uint64
	lost        atomic.Uint64
	noData      atomic.Uint64
	interrupted atomic.Uint64

	// reported holds the counter values last handed to metrics.
	reported [4]uint64
}

// NewStream returns a Stream that dispatches the records of buf to sample.
// Lost records are counted and logged. Empty records are counted and not
// dispatched.
func NewStream(buf Buffer, sample func(cpu int, data []byte) error) *Stream {
	s := &Stream{buf: buf}
	s.handler = Handler{
		Sample: func(cpu int, data []byte) error {
			if len(data) == 0 {
				s.noData.Add(1)
				return nil
			}
			s.records.Add(1)
			return sample(cpu, data)
		},
		Lost: func(cpu int, count uint64) {
			s.lost.Add(count)
			log.Warnf("Lost %d events on CPU %d", count, cpu)
		},
	}
	return s
}

// Run polls the buffer with the given timeout until ctx is canceled. The
// context is checked once per poll, so cancellation takes effect within one
// timeout. A poll interrupted by a signal is retried. Any other poll error
// and any error returned by the sample callback ends the run.
func (s *Stream) Run(ctx context.Context, timeout time.Duration) error {
	defer s.publish()

	lastPublish := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.buf.Poll(timeout, s.handler); err != nil {
			if !errors.Is(err, unix.EINTR) {
				return fmt.Errorf("failed to poll events: %w", err)
			}
			s.interrupted.Add(1)
			log.Debugf("Event poll interrupted, retrying")
		}

		if time.Since(lastPublish) >= metricsInterval {
			s.publish()
			lastPublish = time.Now()
		}
	}
}

// Records returns the number of records dispatched to the sample callback.
func (s *Stream) Records() uint64 { return s.records.Load() }

// Lost returns the number of records the kernel reported as lost.
func (s *Stream) Lost() uint64 { return s.lost.Load() }

// Interrupted returns the number of polls interrupted by a signal.
func (s *Stream) Interrupted() uint64 { return s.interrupted.Load() }

// publish hands the counter deltas since the previous call to metrics.
func (s *Stream) publish() {
	current := [4]uint64{s.records.Load(), s.lost.Load(), s.noData.Load(), s.interrupted.Load()}
	ids := [4]metrics.MetricID{
		metrics.IDEventRecords,
		metrics.IDEventLost,
		metrics.IDEventNoData,
		metrics.IDEventPollInterrupted,
	}
	batch := make([]metrics.Metric, 0, len(ids))
	for i, id := range ids {
		batch = append(batch, metrics.Metric{
			ID:    id,
			Value: metrics.MetricValue(current[i] - s.reported[i]),
		})
	}
	s.reported = current
	metrics.AddSlice(batch)
}
