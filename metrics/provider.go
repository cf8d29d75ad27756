// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "github.com/ktelemetry/kstat/metrics"

import (
	"context"
	"fmt"
	"slices"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/ktelemetry/kstat/vc"
)

// Provider is an OTel SDK MeterProvider that keeps the reported metrics in
// memory until they are collected.
type Provider struct {
	mp     *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// NewProvider installs an SDK MeterProvider as the global one and as the
// destination of all metrics reported from now on.
func NewProvider() *Provider {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "kstat"),
			attribute.String("service.version", vc.Version()),
		)),
	)
	otel.SetMeterProvider(mp)

	c, g := newInstruments(mp.Meter(meterName,
		metric.WithInstrumentationVersion(vc.Version())))

	mutex.Lock()
	counters, gauges = c, g
	mutex.Unlock()

	return &Provider{mp: mp, reader: reader}
}

// Collect returns the current value of every instrument that received data,
// keyed by instrument name. Counters hold their total since NewProvider,
// gauges their last value.
func (p *Provider) Collect(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}

	values := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] = dp.Value
				}
			default:
				log.Debugf("Skipping metric %s of type %T", m.Name, m.Data)
			}
		}
	}
	return values, nil
}

// Log writes the collected values, ordered by name.
func (p *Provider) Log(ctx context.Context) error {
	values, err := p.Collect(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		log.Infof("Metric %s: %d", name, values[name])
	}
	return nil
}

// Shutdown flushes and stops the provider. Metrics reported afterwards are
// dropped.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}
