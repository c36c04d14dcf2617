package query

import (
	"context"
	"strings"
)

// InsertBuilder builds an INSERT statement for one model instance.
type InsertBuilder struct {
	builder
}

func NewInsert(provider MetadataProvider, model any, opts ...Option) *InsertBuilder {
	return &InsertBuilder{builder: newBuilder(provider, model, opts)}
}

// Build renders INSERT INTO <table> (c1, c2) VALUES ((?), (?)). Auto-increment
// keys are left to the database while their value is zero.
func (i *InsertBuilder) Build() (DbQuery, error) {
	if i.err != nil {
		return DbQuery{}, i.err
	}

	q := DbQuery{Table: i.meta.TableName, Type: TypeInsert}
	names := make([]string, 0, len(i.meta.Columns))
	var values DbQuery
	for _, col := range i.meta.Columns {
		v := col.Get(i.model)
		if col.AutoIncrement && !truthy(v) {
			continue
		}
		if len(names) > 0 {
			values.str(", ")
		}
		names = append(names, col.Name)
		values.arg(v)
	}

	q.str("INSERT INTO " + i.meta.TableName)
	if len(names) == 0 {
		q.str(" DEFAULT VALUES")
		return finish(q)
	}
	q.str(" (" + strings.Join(names, ", ") + ") VALUES (")
	q.Append(values)
	q.str(")")
	return finish(q)
}

func (i *InsertBuilder) Exec(ctx context.Context) (*Result, error) {
	q, err := i.Build()
	return i.run(ctx, q, err)
}
