// Package stats provides a minimal scoped receiver backed by go-metrics.
// Counters and histograms can be passed down a call tree and scoped to each
// level; the registry renders to JSON for an end-of-run report.
package stats

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
)

// Scope path elements are joined with '/'. Elements containing the separator
// are sanitized rather than rejected, since counter names can be built from
// dynamic values.
const scopeSep = "/"

type StatsReceiver interface {
	// Scope returns a receiver recording under the given sub-scope.
	Scope(scope ...string) StatsReceiver

	Counter(name ...string) metrics.Counter
	Gauge(name ...string) metrics.Gauge

	// Latency returns a histogram of durations in milliseconds.
	Latency(name ...string) metrics.Histogram

	// Render dumps every registered instrument as JSON.
	Render() []byte
}

// DefaultStatsReceiver records to a private go-metrics registry.
func DefaultStatsReceiver() StatsReceiver {
	return &statsReceiver{registry: metrics.NewRegistry()}
}

// NilStatsReceiver discards everything; useful as a default collaborator.
func NilStatsReceiver() StatsReceiver {
	return &statsReceiver{}
}

type statsReceiver struct {
	registry metrics.Registry
	scope    []string
}

func (s *statsReceiver) Scope(scope ...string) StatsReceiver {
	return &statsReceiver{
		registry: s.registry,
		scope:    append(append([]string{}, s.scope...), scope...),
	}
}

func (s *statsReceiver) Counter(name ...string) metrics.Counter {
	if s.registry == nil {
		return metrics.NilCounter{}
	}
	return s.registry.GetOrRegister(s.scoped(name), metrics.NewCounter).(metrics.Counter)
}

func (s *statsReceiver) Gauge(name ...string) metrics.Gauge {
	if s.registry == nil {
		return metrics.NilGauge{}
	}
	return s.registry.GetOrRegister(s.scoped(name), metrics.NewGauge).(metrics.Gauge)
}

func (s *statsReceiver) Latency(name ...string) metrics.Histogram {
	if s.registry == nil {
		return metrics.NilHistogram{}
	}
	newHist := func() metrics.Histogram {
		return metrics.NewHistogram(metrics.NewExpDecaySample(1028, 0.015))
	}
	return s.registry.GetOrRegister(s.scoped(name), newHist).(metrics.Histogram)
}

func (s *statsReceiver) Render() []byte {
	out := map[string]interface{}{}
	if s.registry == nil {
		return []byte("{}")
	}
	s.registry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Counter:
			out[name] = m.Count()
		case metrics.Gauge:
			out[name] = m.Value()
		case metrics.Histogram:
			h := m.Snapshot()
			out[name] = map[string]interface{}{
				"count": h.Count(),
				"mean":  h.Mean(),
				"max":   h.Max(),
			}
		}
	})
	b, err := json.Marshal(out)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func (s *statsReceiver) scoped(name []string) string {
	elems := append(append([]string{}, s.scope...), name...)
	for i, e := range elems {
		elems[i] = strings.Replace(e, scopeSep, "_", -1)
	}
	return strings.Join(elems, scopeSep)
}

// Millis converts a duration to the milliseconds value Latency histograms
// record.
func Millis(d time.Duration) int64 {
	return int64(d / time.Millisecond)
}
