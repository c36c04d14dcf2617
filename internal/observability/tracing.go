package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nlstn/go-sqlmodel/internal/query"
)

// Attribute keys
const (
	AttrDBSystem       = "db.system"
	AttrDBOperation    = "db.operation"
	AttrDBTable        = "db.sql.table"
	AttrDBStatement    = "db.statement"
	AttrDBParamCount   = "db.param_count"
	AttrRowsAffected   = "db.rows_affected"
	AttrRowsReturned   = "db.rows_returned"
	AttrQueryID        = "sqlmodel.query_id"
	AttrServiceName    = "service.name"
	AttrStatementError = "error.type"
)

// Tracer creates spans for statement execution.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

func newTracer(tracer trace.Tracer, serviceName string) *Tracer {
	return &Tracer{tracer: tracer, serviceName: serviceName}
}

// StartStatement starts a client span named after the statement kind and table.
func (t *Tracer) StartStatement(ctx context.Context, q query.DbQuery, queryID string) (context.Context, trace.Span) {
	name := "sqlmodel." + strings.ToLower(string(q.Type))
	if q.Table != "" {
		name += " " + q.Table
	}
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrServiceName, t.serviceName),
			attribute.String(AttrDBOperation, string(q.Type)),
			attribute.String(AttrDBTable, q.Table),
			attribute.String(AttrDBStatement, q.Query),
			attribute.Int(AttrDBParamCount, len(q.Params)),
			attribute.String(AttrQueryID, queryID),
		),
	)
}

// EndStatement records the outcome on span and ends it.
func EndStatement(span trace.Span, res *query.Result, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if res != nil {
		span.SetAttributes(
			attribute.Int64(AttrRowsAffected, res.RowsAffected),
			attribute.Int(AttrRowsReturned, len(res.Rows)),
		)
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
