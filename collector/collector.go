// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector runs the kernel telemetry collectors: it loads a kernel
// program, feeds its maps into the user space pipeline and writes the
// report.
package collector // import "github.com/ktelemetry/kstat/collector"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ktelemetry/kstat/cgroup"
	"github.com/ktelemetry/kstat/metrics"
	"github.com/ktelemetry/kstat/support"
	"github.com/ktelemetry/kstat/tracer"
)

// MaxBPFVerifierLogLevel is the highest verifier log level the kernel knows.
const MaxBPFVerifierLogLevel = 2

// metricsFlushInterval is how often internal metrics are reported while a
// collector runs.
const metricsFlushInterval = 5 * time.Second

// Common holds the settings shared by all collectors.
type Common struct {
	// BPFDir holds the compiled kernel objects.
	BPFDir              string
	BPFVerifierLogLevel uint32
	// Out receives the report, os.Stdout when nil.
	Out io.Writer
}

func (c *Common) validate() error {
	if c.BPFDir == "" {
		return errors.New("no kernel object directory set")
	}
	if c.BPFVerifierLogLevel > MaxBPFVerifierLogLevel {
		return fmt.Errorf("invalid eBPF verifier log level %d, expected 0..%d",
			c.BPFVerifierLogLevel, MaxBPFVerifierLogLevel)
	}
	return nil
}

func (c *Common) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// load loads and attaches program p with the read-only variables vars.
func (c *Common) load(p support.Program, vars map[string]any) (*tracer.Tracer, error) {
	trc, err := tracer.Load(tracer.Config{
		Dir:                 c.BPFDir,
		Program:             p,
		Variables:           vars,
		BPFVerifierLogLevel: c.BPFVerifierLogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load eBPF tracer: %w", err)
	}
	log.Debugf("eBPF tracer %s loaded", p)
	return trc, nil
}

// closeTracer detaches trc and flushes the internal metrics of the run.
func closeTracer(trc *tracer.Tracer) {
	if err := trc.Close(); err != nil {
		log.Errorf("Failed to close eBPF tracer: %v", err)
	}
	metrics.Flush()
}

// cgroupID resolves path to the id the kernel programs filter on. An empty
// path yields 0, which disables filtering.
func cgroupID(path string) (uint64, error) {
	if path == "" {
		return 0, nil
	}
	unified, err := cgroup.IsUnified(path)
	if err != nil {
		return 0, err
	}
	if !unified {
		log.Warnf("%s is not on a cgroup v2 hierarchy, nothing may match", path)
	}
	id, err := cgroup.ID(path)
	if err != nil {
		return 0, err
	}
	log.Debugf("Filtering on cgroup %s (id %d)", path, id)
	return id, nil
}
