// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package collector // import "github.com/ktelemetry/kstat/collector"

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ktelemetry/kstat/aggregate"
	"github.com/ktelemetry/kstat/catalog"
	"github.com/ktelemetry/kstat/metrics"
	"github.com/ktelemetry/kstat/periodiccaller"
	"github.com/ktelemetry/kstat/procname"
	"github.com/ktelemetry/kstat/report"
	"github.com/ktelemetry/kstat/support"
	"github.com/ktelemetry/kstat/table"
)

// DefaultProcRoot is the mount point of procfs.
const DefaultProcRoot = "/proc"

// SyscallsConfig configures SyscallStats.
type SyscallsConfig struct {
	Common
	// CgroupPath restricts tracing to one cgroup v2 directory, all tasks
	// are traced when empty.
	CgroupPath string
	GroupBy    aggregate.GroupBy
	SortBy     aggregate.SortBy
	// Top limits the number of reported rows, 0 reports all of them.
	Top int
	// Interval is the time between two progress dots.
	Interval time.Duration
	// Duration stops tracing on its own when positive.
	Duration time.Duration
	// ProcRoot is where thread names are read from, DefaultProcRoot when
	// empty.
	ProcRoot string
}

// Validate checks the configuration for values that cannot work.
func (cfg *SyscallsConfig) Validate() error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.Top < 0 {
		return fmt.Errorf("invalid row limit %d", cfg.Top)
	}
	if cfg.Interval <= 0 {
		return errors.New("the progress interval has to be positive")
	}
	if cfg.Duration < 0 {
		return fmt.Errorf("invalid duration %v", cfg.Duration)
	}
	return nil
}

// SyscallStats counts the system calls of the traced tasks until ctx is
// canceled or the configured duration has passed, then writes the ranked
// table.
func SyscallStats(ctx context.Context, cfg *SyscallsConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cgid, err := cgroupID(cfg.CgroupPath)
	if err != nil {
		return err
	}

	trc, err := cfg.load(support.SyscallStat, map[string]any{
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
	return runSyscalls(ctx, cfg, table.NewBPF(dist))
}

// runSyscalls waits for the end of the run and reports the content of t.
func runSyscalls(ctx context.Context, cfg *SyscallsConfig, t table.Table) error {
	name, header, done, err := syscallNamer(cfg)
	if err != nil {
		return err
	}
	defer done()

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	log.Info("Tracing system calls, hit Ctrl-C to end")
	out := cfg.out()
	progress := report.NewProgress(out)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-ticker.C:
			progress.Tick()
		}
	}
	progress.Done()

	rep, err := aggregate.Aggregate(t, cfg.GroupBy)
	if err != nil {
		return fmt.Errorf("failed to aggregate system calls: %w", err)
	}
	log.Debugf("Aggregated %d entries into %d rows", rep.Entries, rep.Len())

	return report.WriteTable(out, rep.Sorted(cfg.SortBy), rep.Total, name,
		report.TableOptions{Top: cfg.Top, Header: header})
}

// syscallNamer returns the row namer and column header for the grouping of
// cfg. done releases the resources of the namer.
func syscallNamer(cfg *SyscallsConfig) (report.Namer, string, func(), error) {
	switch cfg.GroupBy {
	case aggregate.ByThread:
		root := cfg.ProcRoot
		if root == "" {
			root = DefaultProcRoot
		}
		r, err := procname.New(root, procname.DefaultCacheSize)
		if err != nil {
			return nil, "", nil, err
		}
		return r.Name, "THREAD", r.Flush, nil
	default:
		cat, err := catalog.Syscalls()
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to load system call table: %w", err)
		}
		return cat.Name, "", func() {}, nil
	}
}
