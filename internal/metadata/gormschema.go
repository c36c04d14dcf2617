package metadata

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm/schema"
)

// AnalyzeGormSchema derives metadata from gorm's own schema parser, so models
// already mapped for gorm keep their table names, column names and keys.
// A nil namer uses gorm's default naming strategy.
func AnalyzeGormSchema(model interface{}, namer schema.Namer) (*EntityMetadata, error) {
	if namer == nil {
		namer = schema.NamingStrategy{}
	}
	s, err := schema.Parse(model, &sync.Map{}, namer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gorm schema: %w", err)
	}

	meta := &EntityMetadata{
		EntityType: s.ModelType,
		EntityName: s.Name,
		TableName:  s.Table,
		Columns:    make([]ColumnMetadata, 0, len(s.Fields)),
	}
	for _, f := range s.Fields {
		// Relationships and ignored fields carry no column.
		if f.DBName == "" {
			continue
		}
		field := f
		meta.Columns = append(meta.Columns, ColumnMetadata{
			Name:          field.DBName,
			Field:         field.Name,
			Type:          field.FieldType,
			PrimaryKey:    field.PrimaryKey,
			AutoIncrement: field.AutoIncrement,
			Get: func(model any) any {
				v := reflect.ValueOf(model)
				if v.Kind() == reflect.Ptr && v.IsNil() {
					return nil
				}
				value, _ := field.ValueOf(context.Background(), reflect.Indirect(v))
				return value
			},
		})
	}
	meta.indexKeys()

	if reflect.PointerTo(s.ModelType).Implements(rowIDType) || s.ModelType.Implements(rowIDType) {
		meta.RowID = rowIDFromInterface
	}
	return meta, nil
}
