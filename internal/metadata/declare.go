package metadata

import (
	"fmt"
	"reflect"
)

// Column is a typed column declaration for Declare.
type Column[T any] struct {
	name          string
	field         string
	key           bool
	autoIncrement bool
	rowID         bool
	get           func(*T) any
}

// Col declares a column read by get. field is informational and may be empty.
func Col[T any](name, field string, get func(*T) any) Column[T] {
	return Column[T]{name: name, field: field, get: get}
}

// Key marks the column as part of the primary key.
func (c Column[T]) Key() Column[T] {
	c.key = true
	return c
}

// AutoIncrement marks the column as generated by the database on insert.
func (c Column[T]) AutoIncrement() Column[T] {
	c.autoIncrement = true
	return c
}

// RowID marks the column as the implicit row identity. It is not written as a
// regular column; a nil or zero value means the instance has no identity.
func (c Column[T]) RowID() Column[T] {
	c.rowID = true
	return c
}

// Declare builds metadata for T from explicit column declarations. Accessors
// are plain function calls; no reflection happens when reading values.
func Declare[T any](table string, cols ...Column[T]) (*EntityMetadata, error) {
	entityType := reflect.TypeOf((*T)(nil)).Elem()
	if table == "" {
		return nil, fmt.Errorf("entity %s: table name is required", entityType.Name())
	}

	meta := &EntityMetadata{
		EntityType: entityType,
		EntityName: entityType.Name(),
		TableName:  table,
		Columns:    make([]ColumnMetadata, 0, len(cols)),
	}
	for _, c := range cols {
		if c.name == "" || c.get == nil {
			return nil, fmt.Errorf("entity %s: column needs a name and an accessor", meta.EntityName)
		}
		if c.rowID {
			if meta.RowID != nil {
				return nil, fmt.Errorf("entity %s declares more than one rowid column", meta.EntityName)
			}
			meta.RowID = rowIDFromField(typedGetter(c.get))
			continue
		}
		if _, dup := meta.findColumn(c.name); dup {
			return nil, fmt.Errorf("entity %s maps column %q more than once", meta.EntityName, c.name)
		}
		meta.Columns = append(meta.Columns, ColumnMetadata{
			Name:          c.name,
			Field:         c.field,
			PrimaryKey:    c.key,
			AutoIncrement: c.autoIncrement,
			Get:           typedGetter(c.get),
		})
	}
	meta.indexKeys()

	if meta.RowID == nil {
		if _, ok := any((*T)(nil)).(RowIdentifier); ok {
			meta.RowID = rowIDFromInterface
		}
	}
	return meta, nil
}

func typedGetter[T any](get func(*T) any) func(any) any {
	return func(model any) any {
		switch m := model.(type) {
		case *T:
			if m == nil {
				return nil
			}
			return get(m)
		case T:
			return get(&m)
		}
		return nil
	}
}
