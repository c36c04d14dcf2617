package sqlmodel

import (
	"github.com/nlstn/go-sqlmodel/internal/metadata"
	"github.com/nlstn/go-sqlmodel/internal/query"
)

// Predicate is anything accepted by Where: Clause, Clauses, *ClauseGroup,
// Map or Raw.
type Predicate = query.Predicate

// Clause compares one column against a value or a list of values.
type Clause = query.Clause

// Clauses is an ordered list of clauses, each joined by its own connector.
type Clauses = query.Clauses

// ClauseGroup renders as a parenthesized expression when nested.
type ClauseGroup = query.ClauseGroup

// Map adds one equality per key, joined by AND in sorted key order.
type Map = query.Map

// Raw is a SQL fragment with "?" placeholders and matching arguments.
type Raw = query.Raw

type (
	Operator      = query.Operator
	Connector     = query.Connector
	StatementType = query.StatementType
)

const (
	OpEq        = query.OpEq
	OpNe        = query.OpNe
	OpGt        = query.OpGt
	OpGte       = query.OpGte
	OpLt        = query.OpLt
	OpLte       = query.OpLte
	OpLike      = query.OpLike
	OpNotLike   = query.OpNotLike
	OpIn        = query.OpIn
	OpNotIn     = query.OpNotIn
	OpIsNull    = query.OpIsNull
	OpIsNotNull = query.OpIsNotNull

	ConnAnd = query.ConnAnd
	ConnOr  = query.ConnOr

	TypeSelect = query.TypeSelect
	TypeInsert = query.TypeInsert
	TypeUpdate = query.TypeUpdate
	TypeDelete = query.TypeDelete
)

// DbQuery is SQL text with its ordered parameters.
type DbQuery = query.DbQuery

type (
	Result       = query.Result
	Executor     = query.Executor
	ExecutorFunc = query.ExecutorFunc
	Outcome      = query.Outcome
	ExecError    = query.ExecError
)

type (
	UpdateBuilder = query.UpdateBuilder
	InsertBuilder = query.InsertBuilder
	SelectBuilder = query.SelectBuilder
	DeleteBuilder = query.DeleteBuilder
	Option        = query.Option
)

type (
	EntityMetadata = metadata.EntityMetadata
	ColumnMetadata = metadata.ColumnMetadata
	RowIdentifier  = metadata.RowIdentifier
	Projector      = metadata.Projector
)

// Column declares one column of T for Declare.
type Column[T any] = metadata.Column[T]

// Eq returns the clause key = value. A slice or array value becomes IN.
// Every clause helper joins by AND; use Clause.Or to join by OR instead.
func Eq(key string, value any) Clause {
	return query.Eq(key, value)
}

// Ne returns the clause key <> value. A slice or array value becomes NOT IN.
func Ne(key string, value any) Clause {
	return query.Ne(key, value)
}

// Gt returns the clause key > value.
func Gt(key string, value any) Clause {
	return query.Gt(key, value)
}

// Gte returns the clause key >= value.
func Gte(key string, value any) Clause {
	return query.Gte(key, value)
}

// Lt returns the clause key < value.
func Lt(key string, value any) Clause {
	return query.Lt(key, value)
}

// Lte returns the clause key <= value.
func Lte(key string, value any) Clause {
	return query.Lte(key, value)
}

// Like returns the clause key LIKE pattern.
func Like(key string, pattern any) Clause {
	return query.Like(key, pattern)
}

// In returns a membership clause. With no values it matches nothing.
func In(key string, values ...any) Clause {
	return query.In(key, values...)
}

// NotIn returns a negated membership clause. With no values it matches
// everything.
func NotIn(key string, values ...any) Clause {
	return query.NotIn(key, values...)
}

// IsNull returns the clause key IS NULL.
func IsNull(key string) Clause {
	return query.IsNull(key)
}

// IsNotNull returns the clause key IS NOT NULL.
func IsNotNull(key string) Clause {
	return query.IsNotNull(key)
}

// And groups preds joined by AND.
func And(preds ...Predicate) *ClauseGroup { return query.And(preds...) }

// Or groups preds joined by OR.
func Or(preds ...Predicate) *ClauseGroup { return query.Or(preds...) }

// NewClauseGroup returns an empty group.
func NewClauseGroup() *ClauseGroup { return query.NewClauseGroup() }

// RawCondition returns a raw fragment. The number of "?" in condition must
// equal len(args). A "?" inside a quoted literal still counts, so bind such
// values as arguments.
func RawCondition(condition string, args ...any) Raw {
	return query.RawCondition(condition, args...)
}

// Partial restricts the SET list of an update to projected or non-zero columns.
func Partial() Option { return query.Partial() }

// Project sets the partial update projection and implies Partial.
func Project(columns ...string) Option { return query.Project(columns...) }

// AllowUnconditional permits UPDATE and DELETE without a WHERE clause.
func AllowUnconditional() Option { return query.AllowUnconditional() }

// Go runs q on exec in a new goroutine. The channel yields exactly one
// Outcome and is then closed.
var Go = query.Go

// Col declares column name, backed by Go field, read through get.
func Col[T any](name, field string, get func(*T) any) Column[T] {
	return metadata.Col[T](name, field, get)
}

// Declare builds metadata for T without reflection on access.
func Declare[T any](table string, cols ...Column[T]) (*EntityMetadata, error) {
	return metadata.Declare[T](table, cols...)
}
