package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nlstn/go-sqlmodel/internal/query"
)

// Metric names
const (
	MetricStatementCount    = "sqlmodel.statement.count"
	MetricStatementDuration = "sqlmodel.statement.duration"
	MetricStatementErrors   = "sqlmodel.statement.errors"
)

// Metrics holds the statement instruments.
type Metrics struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	count, err := meter.Int64Counter(MetricStatementCount,
		metric.WithDescription("Number of executed statements"),
		metric.WithUnit("{statement}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(MetricStatementDuration,
		metric.WithDescription("Statement execution time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(MetricStatementErrors,
		metric.WithDescription("Number of failed statements"),
		metric.WithUnit("{statement}"))
	if err != nil {
		return nil, err
	}
	return &Metrics{count: count, duration: duration, errors: errs}, nil
}

// RecordStatement records one execution of q.
func (m *Metrics) RecordStatement(ctx context.Context, q query.DbQuery, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String(AttrDBOperation, string(q.Type)),
		attribute.String(AttrDBTable, q.Table),
	)
	m.count.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
