package query

import (
	"context"
	"fmt"

	"github.com/nlstn/go-sqlmodel/internal/metadata"
)

// UpdateBuilder builds an UPDATE statement for one model instance.
type UpdateBuilder struct {
	builder
}

// NewUpdate returns an UPDATE builder for model. Metadata lookup failures are
// recorded and reported by Build.
func NewUpdate(provider MetadataProvider, model any, opts ...Option) *UpdateBuilder {
	return &UpdateBuilder{builder: newBuilder(provider, model, opts)}
}

// Where appends caller predicates, joined to the identity predicate with AND.
func (u *UpdateBuilder) Where(preds ...Predicate) *UpdateBuilder {
	u.addWhere(preds)
	return u
}

// Build renders
//
//	UPDATE <table> SET c1 = (?), c2 = (?) [WHERE <identity> AND (<where>)]
//
// with SET values first, then identity values, then caller values.
func (u *UpdateBuilder) Build() (DbQuery, error) {
	if u.err != nil {
		return DbQuery{}, u.err
	}

	columns, err := u.setColumns()
	if err != nil {
		return DbQuery{}, err
	}
	if len(columns) == 0 {
		return DbQuery{}, ErrEmptyUpdate.becausef("nothing to write on %s", u.meta.TableName)
	}

	q := DbQuery{Table: u.meta.TableName, Type: TypeUpdate}
	q.str("UPDATE " + u.meta.TableName + " SET ")
	for i, col := range columns {
		if i > 0 {
			q.str(", ")
		}
		q.str(col.Name + " = ")
		q.arg(col.Get(u.model))
	}

	where, err := u.conditional(TypeUpdate)
	if err != nil {
		return DbQuery{}, err
	}
	q.Append(where)
	return finish(q)
}

// Exec builds and executes the statement. It does not retry.
func (u *UpdateBuilder) Exec(ctx context.Context) (*Result, error) {
	q, err := u.Build()
	return u.run(ctx, q, err)
}

// setColumns returns the columns to write in declared order. Key columns form
// the identity and are never written.
func (u *UpdateBuilder) setColumns() ([]metadata.ColumnMetadata, error) {
	projected, err := u.projection()
	if err != nil {
		return nil, err
	}

	out := make([]metadata.ColumnMetadata, 0, len(u.meta.Columns))
	for _, col := range u.meta.Columns {
		if col.PrimaryKey {
			continue
		}
		if projected != nil {
			if _, ok := projected[col.Name]; !ok && !truthy(col.Get(u.model)) {
				continue
			}
		}
		out = append(out, col)
	}
	return out, nil
}

// projection returns the partial-update projection as a set, or nil when the
// update writes every column.
func (u *UpdateBuilder) projection() (map[string]struct{}, error) {
	if !u.partial {
		return nil, nil
	}
	cols := u.settings.projection
	if cols == nil {
		if p, ok := u.model.(metadata.Projector); ok {
			cols = p.Projection()
		}
	}
	if len(cols) == 0 {
		return nil, nil
	}

	set := make(map[string]struct{}, len(cols))
	for _, name := range cols {
		if _, ok := u.meta.Column(name); !ok {
			return nil, ErrUnknownColumn.
				while(fmt.Sprintf("projecting update of %s", u.meta.EntityName)).
				becausef("%q", name)
		}
		set[name] = struct{}{}
	}
	return set, nil
}
