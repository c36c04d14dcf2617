package query

import "context"

// DeleteBuilder builds a DELETE statement for one model instance.
type DeleteBuilder struct {
	builder
}

// NewDelete returns a DELETE builder. Identity resolution follows UPDATE.
func NewDelete(provider MetadataProvider, model any, opts ...Option) *DeleteBuilder {
	return &DeleteBuilder{builder: newBuilder(provider, model, opts)}
}

func (d *DeleteBuilder) Where(preds ...Predicate) *DeleteBuilder {
	d.addWhere(preds)
	return d
}

func (d *DeleteBuilder) Build() (DbQuery, error) {
	if d.err != nil {
		return DbQuery{}, d.err
	}
	where, err := d.conditional(TypeDelete)
	if err != nil {
		return DbQuery{}, err
	}
	q := DbQuery{Table: d.meta.TableName, Type: TypeDelete}
	q.str("DELETE FROM " + d.meta.TableName)
	q.Append(where)
	return finish(q)
}

func (d *DeleteBuilder) Exec(ctx context.Context) (*Result, error) {
	q, err := d.Build()
	return d.run(ctx, q, err)
}
