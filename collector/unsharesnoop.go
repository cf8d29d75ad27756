// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector // import "github.com/ktelemetry/kstat/collector"

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ktelemetry/kstat/events"
	"github.com/ktelemetry/kstat/metrics"
	"github.com/ktelemetry/kstat/periodiccaller"
	"github.com/ktelemetry/kstat/record"
	"github.com/ktelemetry/kstat/report"
	"github.com/ktelemetry/kstat/support"
)

// UnshareConfig configures UnshareSnoop.
type UnshareConfig struct {
	Common
	// Failed also reports calls that returned an error.
	Failed bool
	// PollTimeout bounds every wait for events and thereby the reaction
	// time to cancellation.
	PollTimeout time.Duration
	// PerCPUBufferPages is the size of each per CPU buffer in pages.
	PerCPUBufferPages int
	// RingBuffer selects the kernel object that submits events through a
	// shared ring buffer instead of per CPU perf buffers.
	RingBuffer bool
}

// Validate checks the configuration for values that cannot work.
func (cfg *UnshareConfig) Validate() error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.PollTimeout <= 0 {
		return fmt.Errorf("the poll timeout has to be positive, got %v", cfg.PollTimeout)
	}
	if p := cfg.PerCPUBufferPages; p <= 0 || p&(p-1) != 0 {
		return fmt.Errorf("the buffer size has to be a power of two pages, got %d", p)
	}
	return nil
}

// now stamps events. Tests replace it.
var now = time.Now

// UnshareSnoop prints one line per unshare(2) call until ctx is canceled.
func UnshareSnoop(ctx context.Context, cfg *UnshareConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	prog := support.UnshareSnoop
	if cfg.RingBuffer {
		prog = support.UnshareSnoopRingBuf
	}
	trc, err := cfg.load(prog, map[string]any{
		support.VarTargetFailed: cfg.Failed,
	})
	if err != nil {
		return err
	}
	defer closeTracer(trc)
	defer periodiccaller.Start(ctx, metricsFlushInterval, metrics.Flush)()

	m, err := trc.Map(support.MapEvents)
	if err != nil {
		return err
	}
	buf, err := events.NewBuffer(m, cfg.PerCPUBufferPages*os.Getpagesize())
	if err != nil {
		return err
	}
	defer buf.Close()

	return runUnshareSnoop(ctx, cfg, buf)
}

// runUnshareSnoop streams the records of buf to the output until ctx is
// canceled.
func runUnshareSnoop(ctx context.Context, cfg *UnshareConfig, buf events.Buffer) error {
	out := cfg.out()
	if err := report.WriteEventHeader(out); err != nil {
		return err
	}

	stream := events.NewStream(buf, func(_ int, data []byte) error {
		return printUnshareEvent(out, data)
	})
	err := stream.Run(ctx, cfg.PollTimeout)
	log.Debugf("Received %d events, lost %d, %d polls interrupted",
		stream.Records(), stream.Lost(), stream.Interrupted())
	return err
}

func printUnshareEvent(w io.Writer, data []byte) error {
	data = events.TrimPadding(data, record.SizeUnshareEvent)
	ev, err := record.Decode[record.UnshareEvent](data)
	if err != nil {
		metrics.Add(metrics.IDRecordDecodeErrors, 1)
		return fmt.Errorf("failed to decode unshare event: %w", err)
	}
	_, err = fmt.Fprintln(w, report.FormatEvent(now(), &ev))
	return err
}
