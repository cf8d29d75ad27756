// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector // import "github.com/ktelemetry/kstat/collector"

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ktelemetry/kstat/metrics"
	"github.com/ktelemetry/kstat/periodiccaller"
	"github.com/ktelemetry/kstat/report"
	"github.com/ktelemetry/kstat/sampler"
	"github.com/ktelemetry/kstat/support"
	"github.com/ktelemetry/kstat/table"
)

// BIOGraphConfig configures IOGraph.
type BIOGraphConfig struct {
	Common
	// CgroupPath restricts tracing to one cgroup v2 directory, all tasks
	// are traced when empty.
	CgroupPath string
	Mode       sampler.Mode
	Period     time.Duration
	// Cumulative charts the running sum instead of per period values.
	Cumulative bool
	// Height and Width of the chart, 0 picks a size from the data.
	Height int
	Width  int
	// Duration stops sampling on its own when positive.
	Duration time.Duration
}

// Validate checks the configuration for values that cannot work.
func (cfg *BIOGraphConfig) Validate() error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.Period < time.Millisecond {
		return fmt.Errorf("the sampling period has to be at least 1ms, got %v", cfg.Period)
	}
	if cfg.Height < 0 || cfg.Width < 0 {
		return fmt.Errorf("invalid chart size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Duration < 0 {
		return fmt.Errorf("invalid duration %v", cfg.Duration)
	}
	if cfg.Cumulative && cfg.Mode == sampler.Average {
		return errors.New("a running sum of per period averages has no meaning, " +
			"chart bytes or count instead")
	}
	return nil
}

// IOGraph samples the block I/O issued by the traced tasks once per period
// until ctx is canceled or the configured duration has passed, then charts
// the series.
func IOGraph(ctx context.Context, cfg *BIOGraphConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cgid, err := cgroupID(cfg.CgroupPath)
	if err != nil {
		return err
	}

	trc, err := cfg.load(support.BIOGraph, map[string]any{
		support.VarTargetCgroupID: cgid,
	})
	if err != nil {
		return err
	}
	defer closeTracer(trc)
	defer periodiccaller.Start(ctx, metricsFlushInterval, metrics.Flush)()

	dist, err := trc.Map(support.MapDist)
	if err != nil {
		return err
	}
	return runBIOGraph(ctx, cfg, table.NewBPF(dist))
}

// runBIOGraph samples t and charts the result.
func runBIOGraph(ctx context.Context, cfg *BIOGraphConfig, t table.Table) error {
	s, err := sampler.New(t, sampler.Config{
		Period: cfg.Period,
		Mode:   cfg.Mode,
		Slot:   sampler.DefaultSlot,
	})
	if err != nil {
		return err
	}

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	log.Infof("Sampling block I/O %s every %v, hit Ctrl-C to end", cfg.Mode, cfg.Period)
	samples, err := s.Run(ctx, func(smp sampler.Sample) {
		log.Debugf("%.3fs: %.2f %s", smp.Seconds, smp.Value, cfg.Mode.Unit())
	})
	if err != nil {
		return fmt.Errorf("failed to sample block I/O: %w", err)
	}
	if len(samples) == 0 {
		log.Warn("Stopped before the first sample, nothing to chart")
		return nil
	}
	if cfg.Cumulative {
		samples = sampler.Accumulate(samples)
	}

	return report.WriteChart(cfg.out(), samples, s.Period(), report.ChartOptions{
		Height:     cfg.Height,
		Width:      cfg.Width,
		Mode:       cfg.Mode,
		Cumulative: cfg.Cumulative,
	})
}
