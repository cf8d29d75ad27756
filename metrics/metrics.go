// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics buffers the internal counters of the collectors and
// reports them through the OTel metric API once per second.
//
// Until NewProvider installs an OTel SDK MeterProvider the instruments are
// no-ops, so calling Add and AddSlice is always safe.
package metrics // import "github.com/ktelemetry/kstat/metrics"

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ktelemetry/kstat/vc"
)

// meterName is the instrumentation scope of all instruments.
const meterName = "github.com/ktelemetry/kstat"

var (
	// prevTimestamp holds the second the buffered metrics belong to
	prevTimestamp int64

	// metricsBuffer buffers the metrics for prevTimestamp
	metricsBuffer = make([]Metric, IDMax)

	// metricIDSet is a bitvector used for fast membership operations, to avoid reporting
	// the same metric ID multiple times in the same batch
	metricIDSet = make([]uint64, 1+(IDMax/64))

	// metricIndex maps the IDs set in metricIDSet to their metricsBuffer entry
	metricIndex [IDMax]int

	// nMetrics is the number of the current entries in metricsBuffer
	nMetrics int

	// mutex serializes the concurrent calls to AddSlice()
	mutex sync.Mutex

	//go:embed metrics.json
	metricsJSON []byte

	// Used in fallback checks, e.g. to avoid sending "counters" with 0 values
	metricTypes map[MetricID]MetricType

	// counters and gauges are replaced by NewProvider, under mutex.
	counters map[MetricID]metric.Int64Counter
	gauges   map[MetricID]metric.Int64Gauge

	// now is overridden in tests.
	now = func() int64 { return time.Now().Unix() }
)

func init() {
	defs := GetDefinitions()
	metricTypes = make(map[MetricID]MetricType, len(defs))
	for _, md := range defs {
		if md.Obsolete || md.ID == IDInvalid {
			continue
		}
		metricTypes[md.ID] = md.Type
	}
	counters, gauges = newInstruments(otel.Meter(meterName,
		metric.WithInstrumentationVersion(vc.Version())))
}

// newInstruments creates one instrument per metric definition from meter.
// Instruments are named by the field of their definition.
func newInstruments(meter metric.Meter) (map[MetricID]metric.Int64Counter,
	map[MetricID]metric.Int64Gauge) {
	counters := map[MetricID]metric.Int64Counter{}
	gauges := map[MetricID]metric.Int64Gauge{}
	for _, md := range GetDefinitions() {
		if md.Obsolete || md.ID == IDInvalid {
			continue
		}
		switch typ := md.Type; typ {
		case MetricTypeCounter:
			counter, err := meter.Int64Counter(md.Field,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Counter: %v", err)
				continue
			}
			counters[md.ID] = counter
		case MetricTypeGauge:
			gauge, err := meter.Int64Gauge(md.Field,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Gauge: %v", err)
				continue
			}
			gauges[md.ID] = gauge
		default:
			panic(fmt.Sprintf("Unknown metric type: %v", typ))
		}
	}
	return counters, gauges
}

// report hands the buffered metrics to the OTel instruments.
// Allow for report to be overridden in the test.
var report = func(buffered []Metric) {
	ctx := context.Background()
	for _, m := range buffered {
		switch typ := metricTypes[m.ID]; typ {
		case MetricTypeCounter:
			if counter, ok := counters[m.ID]; ok {
				counter.Add(ctx, int64(m.Value))
			}
		case MetricTypeGauge:
			if gauge, ok := gauges[m.ID]; ok {
				gauge.Record(ctx, int64(m.Value))
			}
		}
	}
}

// flushLocked reports and clears the buffer. The caller holds mutex.
func flushLocked() {
	if nMetrics == 0 {
		return
	}
	report(metricsBuffer[:nMetrics])
	nMetrics = 0
	for idx := range metricIDSet {
		metricIDSet[idx] = 0
	}
}

// AddSlice takes a slice of metrics from a metric provider.
// The function buffers the metrics and returns immediately.
//
// Metrics are collected until the second changes, then the buffered metrics
// of the previous second are reported. Within one second counter values of
// the same ID are summed and only the first value of a gauge is kept.
func AddSlice(newMetrics []Metric) {
	ts := now()

	mutex.Lock()
	defer mutex.Unlock()

	if prevTimestamp != ts {
		flushLocked()
	}
	prevTimestamp = ts

	for _, m := range newMetrics {
		if m.ID <= IDInvalid || m.ID >= IDMax {
			log.Errorf("Metric value %d out of range [%d,%d]- needs investigation",
				m.ID, IDInvalid+1, IDMax-1)
			continue
		}

		typ, ok := metricTypes[m.ID]
		if !ok {
			log.Warnf("Invalid metric id %d, skipping", m.ID)
			continue
		}

		if m.Value == 0 && typ == MetricTypeCounter {
			continue
		}

		idx := m.ID / 64
		mask := uint64(1) << (m.ID % 64)
		if metricIDSet[idx]&mask > 0 {
			if typ == MetricTypeCounter {
				metricsBuffer[metricIndex[m.ID]].Value += m.Value
				continue
			}
			log.Debugf("Metric ID %d:%v reported multiple times", m.ID, m.Value)
			continue
		}

		metricIDSet[idx] |= mask
		metricIndex[m.ID] = nMetrics
		metricsBuffer[nMetrics] = m
		nMetrics++
	}
}

// Add takes a single metric (id and value) from a metric provider.
// The function buffers the metric and returns immediately.
func Add(id MetricID, value MetricValue) {
	AddSlice([]Metric{{id, value}})
}

// Flush reports the buffered metrics without waiting for the next second.
// Collectors call it before they return.
func Flush() {
	mutex.Lock()
	defer mutex.Unlock()
	flushLocked()
}

// GetDefinitions returns the metric definitions from the embedded metrics.json file.
func GetDefinitions() []MetricDefinition {
	var defs []MetricDefinition

	dec := json.NewDecoder(bytes.NewReader(metricsJSON))
	dec.DisallowUnknownFields()

	err := dec.Decode(&defs)
	if err != nil {
		panic(fmt.Sprintf("extracting definitions from metrics.json: %v", err))
	}
	return defs
}
