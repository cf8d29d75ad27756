// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sampler turns a single read-and-reset I/O counter slot into a time
// series.
//
// Every tick reads the slot and zeroes it, so each sample holds the activity
// since the previous tick. Activity that happens while the slot is read and
// reset is lost, as is everything in a tick that is skipped because the
// reader fell behind.
package sampler // import "github.com/ktelemetry/kstat/sampler"

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ktelemetry/kstat/metrics"
	"github.com/ktelemetry/kstat/record"
	"github.com/ktelemetry/kstat/table"
)

// DefaultSlot is the slot the kernel program accumulates into.
const DefaultSlot = 1

// Mode selects the value derived from a slot reading.
type Mode int

const (
	// Bytes is the number of bytes transferred.
	Bytes Mode = iota
	// Count is the number of I/O requests.
	Count
	// Average is bytes per request, 0 when there was no request.
	Average
)

func (m Mode) String() string {
	switch m {
	case Bytes:
		return "bytes"
	case Count:
		return "count"
	case Average:
		return "average"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Unit returns the unit of the derived value.
func (m Mode) Unit() string {
	switch m {
	case Count:
		return "ops"
	case Average:
		return "bytes/op"
	default:
		return "bytes"
	}
}

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "bytes":
		return Bytes, nil
	case "count":
		return Count, nil
	case "average":
		return Average, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Derive computes the value of v for mode m.
func (m Mode) Derive(v record.IOValue) float64 {
	switch m {
	case Count:
		return float64(v.Count)
	case Average:
		if v.Count == 0 {
			return 0
		}
		return float64(v.ProcessedBytes) / float64(v.Count)
	default:
		return float64(v.ProcessedBytes)
	}
}

// Sample is one point of the series.
type Sample struct {
	// Seconds since the start of sampling, derived from the tick index.
	Seconds float64
	Value   float64
}

// Config configures a Sampler.
type Config struct {
	// Period is the time between two ticks.
	Period time.Duration
	Mode   Mode
	// Slot is the key of the table entry to sample.
	Slot uint32
}

// Sampler samples one slot of an I/O counter table. It is not safe for
// concurrent use.
type Sampler struct {
	table   table.Table
	cfg     Config
	key     []byte
	zero    []byte
	samples []Sample
}

// New returns a Sampler for t. The table must hold IOValue records keyed by
// SlotKey.
func New(t table.Table, cfg Config) (*Sampler, error) {
	if cfg.Period <= 0 {
		return nil, errors.New("sampling period must be positive")
	}
	key, err := record.SlotKey{Value: cfg.Slot}.MarshalBinary()
	if err != nil {
		return nil, err
	}
	zero, err := record.IOValue{}.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if t.KeySize() != len(key) || t.ValueSize() != len(zero) {
		return nil, fmt.Errorf("%w: table has %d/%d byte records, expected %d/%d",
			record.ErrSize, t.KeySize(), t.ValueSize(), len(key), len(zero))
	}
	return &Sampler{table: t, cfg: cfg, key: key, zero: zero}, nil
}

// Tick reads and resets the slot and appends the derived sample.
func (s *Sampler) Tick() (Sample, error) {
	raw, err := table.ReadAndReset(s.table, s.key, s.zero)
	if err != nil {
		return Sample{}, err
	}
	v, err := record.Decode[record.IOValue](raw)
	if err != nil {
		metrics.Add(metrics.IDRecordDecodeErrors, 1)
		return Sample{}, fmt.Errorf("failed to decode slot %d: %w", s.cfg.Slot, err)
	}

	periodMs := s.cfg.Period.Milliseconds()
	sample := Sample{
		Seconds: float64(int64(len(s.samples))*periodMs) / 1000,
		Value:   s.cfg.Mode.Derive(v),
	}
	s.samples = append(s.samples, sample)
	return sample, nil
}

// Run ticks once per period until ctx is canceled. onSample, if not nil, is
// called after every tick. The collected samples are returned on
// cancellation as well as on error.
func (s *Sampler) Run(ctx context.Context, onSample func(Sample)) ([]Sample, error) {
	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	var ticks int
	defer func() { metrics.Add(metrics.IDSamplerTicks, metrics.MetricValue(ticks)) }()

	for {
		select {
		case <-ctx.Done():
			return s.Samples(), nil
		case <-ticker.C:
		}

		sample, err := s.Tick()
		if err != nil {
			return s.Samples(), err
		}
		ticks++
		if onSample != nil {
			onSample(sample)
		}
	}
}

// Samples returns the samples collected so far.
func (s *Sampler) Samples() []Sample {
	return s.samples
}

// Period returns the configured sampling period.
func (s *Sampler) Period() time.Duration {
	return s.cfg.Period
}

// Accumulate returns the running sum of samples, for cumulative charts.
func Accumulate(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	var sum float64
	for i, s := range samples {
		sum += s.Value
		out[i] = Sample{Seconds: s.Seconds, Value: sum}
	}
	return out
}
