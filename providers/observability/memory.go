package observability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// InMemoryMetrics is a mutex-guarded Metrics implementation. The gateway
// serves its /stats endpoint from a Snapshot of it, and tests assert on it
// directly.
type InMemoryMetrics struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]*histogramState
}

type histogramState struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// HistogramSummary is the immutable per-series view exposed by Snapshot.
type HistogramSummary struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// MetricsSnapshot is a point-in-time copy of every recorded series, keyed by
// "name{k=v,...}".
type MetricsSnapshot struct {
	Counters   map[string]int64            `json:"counters"`
	Histograms map[string]HistogramSummary `json:"histograms"`
}

// NewInMemory returns an empty InMemoryMetrics.
func NewInMemory() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:   make(map[string]int64),
		histograms: make(map[string]*histogramState),
	}
}

// Counter implements Metrics.
func (m *InMemoryMetrics) Counter(name string) Counter {
	return inMemoryCounter{metrics: m, name: name}
}

// Histogram implements Metrics.
func (m *InMemoryMetrics) Histogram(name string) Histogram {
	return inMemoryHistogram{metrics: m, name: name}
}

// Snapshot returns a deep copy safe to serialize while recording continues.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := MetricsSnapshot{
		Counters:   make(map[string]int64, len(m.counters)),
		Histograms: make(map[string]HistogramSummary, len(m.histograms)),
	}
	for key, value := range m.counters {
		snapshot.Counters[key] = value
	}
	for key, state := range m.histograms {
		summary := HistogramSummary{Count: state.Count, Sum: state.Sum, Min: state.Min, Max: state.Max}
		if state.Count > 0 {
			summary.Mean = state.Sum / float64(state.Count)
		}
		snapshot.Histograms[key] = summary
	}
	return snapshot
}

type inMemoryCounter struct {
	metrics *InMemoryMetrics
	name    string
}

func (c inMemoryCounter) Add(_ context.Context, value int64, attrs ...Attribute) {
	key := seriesKey(c.name, attrs)
	c.metrics.mu.Lock()
	c.metrics.counters[key] += value
	c.metrics.mu.Unlock()
}

type inMemoryHistogram struct {
	metrics *InMemoryMetrics
	name    string
}

func (h inMemoryHistogram) Record(_ context.Context, value float64, attrs ...Attribute) {
	key := seriesKey(h.name, attrs)
	h.metrics.mu.Lock()
	defer h.metrics.mu.Unlock()

	state, ok := h.metrics.histograms[key]
	if !ok {
		state = &histogramState{Min: value, Max: value}
		h.metrics.histograms[key] = state
	}
	state.Count++
	state.Sum += value
	if value < state.Min {
		state.Min = value
	}
	if value > state.Max {
		state.Max = value
	}
}

// seriesKey renders a stable series identity: attributes are sorted by key so
// call-site argument order never splits a series.
func seriesKey(name string, attrs []Attribute) string {
	if len(attrs) == 0 {
		return name
	}

	labels := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		labels = append(labels, fmt.Sprintf("%s=%v", attr.Key, attr.Value))
	}
	sort.Strings(labels)

	return name + "{" + strings.Join(labels, ",") + "}"
}
