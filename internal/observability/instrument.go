package observability

import (
	"context"
	"time"

	"github.com/nlstn/go-sqlmodel/internal/gateway"
	"github.com/nlstn/go-sqlmodel/internal/query"
)

type instrumented struct {
	next query.Executor
	cfg  *Config
}

// Instrument wraps next so that every statement gets a span, metric samples
// and, when enabled, a Server-Timing entry. An uninitialized cfg is
// initialized here; a nil cfg returns next unchanged.
func Instrument(next query.Executor, cfg *Config) (query.Executor, error) {
	if cfg == nil {
		return next, nil
	}
	if cfg.tracer == nil || cfg.metrics == nil {
		if err := cfg.Initialize(); err != nil {
			return nil, err
		}
	}
	return &instrumented{next: next, cfg: cfg}, nil
}

func (i *instrumented) Query(ctx context.Context, q query.DbQuery) (*query.Result, error) {
	queryID := gateway.QueryID(ctx)
	ctx = gateway.WithQueryID(ctx, queryID)

	ctx, span := i.cfg.Tracer().StartStatement(ctx, q, queryID)

	if i.cfg.ServerTimingEnabled() {
		timing := StartServerTimingWithDesc(ctx, "db", string(q.Type)+" "+q.Table)
		defer timing.Stop()
	}

	start := time.Now()
	res, err := i.next.Query(ctx, q)
	elapsed := time.Since(start)

	i.cfg.Metrics().RecordStatement(ctx, q, elapsed, err)
	EndStatement(span, res, err)

	if err != nil {
		i.cfg.Logger().Warn("Statement failed",
			"query_id", queryID,
			"type", q.Type,
			"table", q.Table,
			"duration", elapsed,
			"error", err,
		)
	}
	return res, err
}
