// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package report // import "github.com/ktelemetry/kstat/report"

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"github.com/ktelemetry/kstat/sampler"
)

// ChartOptions configures WriteChart.
type ChartOptions struct {
	Height int
	Width  int
	Mode   sampler.Mode
	// Cumulative marks samples that hold running sums.
	Cumulative bool
}

// Resample spreads samples over width columns covering the time range
// [0, (last+1)*period]. Every column takes the value of the last sample that
// started at or before it, so the result is a step function of the input.
func Resample(samples []sampler.Sample, period time.Duration, width int) []float64 {
	if len(samples) == 0 || width <= 0 {
		return nil
	}
	span := float64(len(samples)) * period.Seconds()
	out := make([]float64, width)
	idx := 0
	for col := range out {
		x := span * float64(col) / float64(width)
		for idx+1 < len(samples) && samples[idx+1].Seconds <= x {
			idx++
		}
		out[col] = samples[idx].Value
	}
	return out
}

// WriteChart plots samples as a line chart with a caption that summarizes
// the series.
func WriteChart(w io.Writer, samples []sampler.Sample, period time.Duration,
	opts ChartOptions) error {
	if len(samples) == 0 {
		return errors.New("no samples collected")
	}
	width := opts.Width
	if width <= 0 {
		width = len(samples)
	}
	series := Resample(samples, period, width)

	plotOpts := []asciigraph.Option{
		asciigraph.Width(width),
		asciigraph.Caption(caption(samples, period, opts)),
		asciigraph.LowerBound(0),
	}
	if opts.Height > 0 {
		plotOpts = append(plotOpts, asciigraph.Height(opts.Height))
	}
	if opts.Mode == sampler.Count {
		plotOpts = append(plotOpts, asciigraph.Precision(0))
	}

	_, err := fmt.Fprintln(w, asciigraph.Plot(series, plotOpts...))
	return err
}

func caption(samples []sampler.Sample, period time.Duration, opts ChartOptions) string {
	var total, peak float64
	for _, s := range samples {
		total += s.Value
		peak = math.Max(peak, s.Value)
	}
	if opts.Cumulative {
		total = samples[len(samples)-1].Value
	}
	span := time.Duration(len(samples)) * period

	kind := "per " + period.String()
	if opts.Cumulative {
		kind = "cumulative"
	}
	label := fmt.Sprintf("%s, %s over %s", opts.Mode.Unit(), kind, span)

	switch opts.Mode {
	case sampler.Bytes:
		return fmt.Sprintf("%s (total %s, peak %s)", label,
			humanize.IBytes(uint64(total)), humanize.IBytes(uint64(peak)))
	case sampler.Count:
		return fmt.Sprintf("%s (total %s, peak %s)", label,
			humanize.Comma(int64(total)), humanize.Comma(int64(peak)))
	default:
		return fmt.Sprintf("%s (peak %s)", label, humanize.IBytes(uint64(peak)))
	}
}
