package query

import (
	"context"
	"fmt"

	"github.com/nlstn/go-sqlmodel/internal/metadata"
)

// RowIDColumn is the column name used for the implicit row identity.
const RowIDColumn = "rowid"

// MetadataProvider resolves the table metadata for a model instance.
type MetadataProvider interface {
	Lookup(model any) (*metadata.EntityMetadata, error)
}

// Option configures a statement builder. Options that do not apply to a
// statement kind are ignored by it.
type Option func(*settings)

type settings struct {
	partial            bool
	projection         []string
	allowUnconditional bool
	maxIn              int
	dialect            string
	exec               Executor
}

// Partial enables partial mode for updates: when the model carries a
// projection, only projected or truthy columns are written.
func Partial() Option {
	return func(s *settings) { s.partial = true }
}

// Project sets the partial-update projection explicitly, taking precedence
// over a Projector implemented by the model. It implies Partial.
func Project(columns ...string) Option {
	return func(s *settings) {
		s.partial = true
		s.projection = append([]string(nil), columns...)
	}
}

// AllowUnconditional permits UPDATE and DELETE statements without any WHERE.
func AllowUnconditional() Option {
	return func(s *settings) { s.allowUnconditional = true }
}

// MaxInClauseSize limits the number of values a single IN clause may carry.
func MaxInClauseSize(n int) Option {
	return func(s *settings) { s.maxIn = n }
}

// Dialect names the target database. It only affects dialect-specific syntax
// such as MySQL's LIMIT requirement; placeholders are rebound by the gateway.
func Dialect(name string) Option {
	return func(s *settings) { s.dialect = name }
}

// WithExecutor sets the executor used by Exec.
func WithExecutor(exec Executor) Option {
	return func(s *settings) { s.exec = exec }
}

// builder holds the state shared by every statement kind. A builder is owned
// by one goroutine; it is not safe for concurrent mutation.
type builder struct {
	settings
	meta  *metadata.EntityMetadata
	model any
	where *ClauseGroup
	err   error
}

func newBuilder(provider MetadataProvider, model any, opts []Option) builder {
	b := builder{model: model}
	for _, opt := range opts {
		if opt != nil {
			opt(&b.settings)
		}
	}
	if provider == nil {
		b.err = ErrModelNotRegistered.becausef("no metadata provider")
		return b
	}
	meta, err := provider.Lookup(model)
	if err != nil {
		b.err = ErrModelNotRegistered.because(err)
		return b
	}
	b.meta = meta
	return b
}

// addWhere lazily creates the caller's group and records the first error.
func (b *builder) addWhere(preds []Predicate) {
	if b.err != nil {
		return
	}
	if b.where == nil {
		b.where = &ClauseGroup{maxIn: b.maxIn}
	}
	if err := b.where.Add(preds...); err != nil {
		b.err = err
	}
}

// identity returns the predicate that pins the statement to the model's row:
// rowid alone when the model carries one, otherwise one equality per primary
// key column in declared order.
func (b *builder) identity() Clauses {
	if b.meta.RowID != nil {
		if id, ok := b.meta.RowID(b.model); ok {
			return Clauses{Eq(RowIDColumn, id)}
		}
	}
	out := make(Clauses, 0, len(b.meta.KeyColumns))
	for _, col := range b.meta.KeyColumns {
		out = append(out, Eq(col.Name, col.Get(b.model)))
	}
	return out
}

// whereFragment renders " WHERE ..." from the identity and the caller's
// group, or nothing when both are empty. The caller's group is parenthesized
// when it follows an identity so its ORs stay inside.
func (b *builder) whereFragment(identity Clauses) (DbQuery, error) {
	var g ClauseGroup
	if err := g.Add(identity); err != nil {
		return DbQuery{}, err
	}
	if !b.where.IsEmpty() {
		if g.Len() == 0 {
			g.items = b.where.clone().items
		} else if err := g.Add(b.where); err != nil {
			return DbQuery{}, err
		}
	}

	var q DbQuery
	if g.IsEmpty() {
		return q, nil
	}
	q.str(" WHERE ")
	q.Append(g.Fragment())
	return q, nil
}

// conditional renders the WHERE of an UPDATE or DELETE and refuses to go on
// without one unless explicitly allowed.
func (b *builder) conditional(kind StatementType) (DbQuery, error) {
	where, err := b.whereFragment(b.identity())
	if err != nil {
		return DbQuery{}, err
	}
	if where.Query == "" && !b.allowUnconditional {
		return DbQuery{}, ErrUnconditional.
			while(fmt.Sprintf("building %s for %s", kind, b.meta.EntityName)).
			becausef("%s has no primary key, no row identity and no where clause", b.meta.TableName)
	}
	return where, nil
}

// run hands a built query to the configured executor.
func (b *builder) run(ctx context.Context, q DbQuery, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	if b.exec == nil {
		return nil, ErrNoExecutor
	}
	return b.exec.Query(ctx, q)
}

// finish validates the placeholder invariant before a query leaves a builder.
func finish(q DbQuery) (DbQuery, error) {
	if err := q.Validate(); err != nil {
		return DbQuery{}, err
	}
	return q, nil
}
