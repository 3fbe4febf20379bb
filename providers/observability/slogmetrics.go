package observability

import (
	"context"
	"log/slog"
)

// SlogMetrics forwards every recording to a slog.Logger at debug level, in
// addition to an optional inner Metrics. It is the cheap way to see metric
// traffic in development without running a collector.
type SlogMetrics struct {
	logger *slog.Logger
	inner  Metrics
}

// NewSlog wraps logger (nil means slog.Default). inner may be nil, in which
// case recordings are log-only.
func NewSlog(logger *slog.Logger, inner Metrics) *SlogMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	if inner == nil {
		inner = NewNoop()
	}
	return &SlogMetrics{logger: logger, inner: inner}
}

// Counter implements Metrics.
func (s *SlogMetrics) Counter(name string) Counter {
	return slogCounter{logger: s.logger, name: name, inner: s.inner.Counter(name)}
}

// Histogram implements Metrics.
func (s *SlogMetrics) Histogram(name string) Histogram {
	return slogHistogram{logger: s.logger, name: name, inner: s.inner.Histogram(name)}
}

// Snapshot delegates to the inner sink when it can report one, so wrapping a
// sink does not hide its snapshot from the stats endpoint.
func (s *SlogMetrics) Snapshot() MetricsSnapshot {
	if sink, ok := s.inner.(interface{ Snapshot() MetricsSnapshot }); ok {
		return sink.Snapshot()
	}
	return MetricsSnapshot{}
}

type slogCounter struct {
	logger *slog.Logger
	name   string
	inner  Counter
}

func (c slogCounter) Add(ctx context.Context, value int64, attrs ...Attribute) {
	c.logger.LogAttrs(ctx, slog.LevelDebug, "metric",
		append(slogAttrs(attrs), slog.String("name", c.name), slog.Int64("add", value))...)
	c.inner.Add(ctx, value, attrs...)
}

type slogHistogram struct {
	logger *slog.Logger
	name   string
	inner  Histogram
}

func (h slogHistogram) Record(ctx context.Context, value float64, attrs ...Attribute) {
	h.logger.LogAttrs(ctx, slog.LevelDebug, "metric",
		append(slogAttrs(attrs), slog.String("name", h.name), slog.Float64("record", value))...)
	h.inner.Record(ctx, value, attrs...)
}

func slogAttrs(attrs []Attribute) []slog.Attr {
	converted := make([]slog.Attr, 0, len(attrs)+2)
	for _, attr := range attrs {
		converted = append(converted, slog.Any(attr.Key, attr.Value))
	}
	return converted
}
