package metadata

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/mitranim/refut"
)

// EntityMetadata describes how a model type maps to a table.
type EntityMetadata struct {
	EntityType reflect.Type
	EntityName string
	TableName  string // Database table name (computed once, respects custom TableName() methods)
	Columns    []ColumnMetadata
	KeyColumns []ColumnMetadata
	// RowID reads the implicit row identity of an instance. Nil when the model
	// carries none; a false second result means no identity is set.
	RowID func(model any) (any, bool)
}

// ColumnMetadata describes a single mapped column.
type ColumnMetadata struct {
	Name          string // Database column name (respects sqlmodel:"column:..." and gorm column: tags)
	Field         string // Go struct field name
	Type          reflect.Type
	PrimaryKey    bool
	AutoIncrement bool
	// Get returns the column's current value on an instance of the entity.
	Get func(model any) any
}

// RowIdentifier is implemented by models that carry an implicit row identity
// distinct from their declared primary key.
type RowIdentifier interface {
	RowID() (any, bool)
}

// Projector is implemented by models that carry a partial-update projection:
// column names that must be written even when their value is zero.
type Projector interface {
	Projection() []string
}

var (
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
	rowIDType   = reflect.TypeOf((*RowIdentifier)(nil)).Elem()
)

// AnalyzeEntity extracts metadata from a Go struct. Field access is resolved
// once here into per-column accessors.
func AnalyzeEntity(entity interface{}) (*EntityMetadata, error) {
	if entity == nil {
		return nil, fmt.Errorf("entity must be a struct, got nil")
	}
	entityType := dereferenceType(reflect.TypeOf(entity))
	if entityType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity must be a struct, got %s", entityType.Kind())
	}

	metadata := &EntityMetadata{
		EntityType: entityType,
		EntityName: entityType.Name(),
		TableName:  getTableNameFromReflectType(entityType),
		Columns:    make([]ColumnMetadata, 0, entityType.NumField()),
	}

	var rowIDPath []int
	err := refut.TraverseStructRtype(entityType, func(field reflect.StructField, path []int) error {
		if !field.IsExported() {
			return nil
		}
		tags := parseTags(field)
		if tags.skip || isNavigationField(field.Type) {
			return nil
		}
		if tags.rowID {
			if rowIDPath != nil {
				return fmt.Errorf("entity %s declares more than one rowid field", metadata.EntityName)
			}
			rowIDPath = append([]int(nil), path...)
			return nil
		}

		column := ColumnMetadata{
			Name:          tags.column,
			Field:         field.Name,
			Type:          field.Type,
			PrimaryKey:    tags.key,
			AutoIncrement: tags.autoIncrement,
			Get:           fieldGetter(path),
		}
		if column.Name == "" {
			column.Name = toSnakeCase(field.Name)
		}
		if _, dup := metadata.findColumn(column.Name); dup {
			return fmt.Errorf("entity %s maps column %q more than once", metadata.EntityName, column.Name)
		}
		metadata.Columns = append(metadata.Columns, column)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error analyzing entity %s: %w", metadata.EntityName, err)
	}

	// Auto-detect key if no explicit key is set and a field is named "ID"
	if !metadata.hasExplicitKey() {
		for i := range metadata.Columns {
			if metadata.Columns[i].Field == "ID" {
				metadata.Columns[i].PrimaryKey = true
				break
			}
		}
	}
	metadata.indexKeys()

	// A single unsigned integer key is generated by the database.
	if len(metadata.KeyColumns) == 1 && isUnsigned(metadata.KeyColumns[0].Type) {
		for i := range metadata.Columns {
			if metadata.Columns[i].PrimaryKey {
				metadata.Columns[i].AutoIncrement = true
			}
		}
		metadata.indexKeys()
	}

	switch {
	case reflect.PointerTo(entityType).Implements(rowIDType) || entityType.Implements(rowIDType):
		metadata.RowID = rowIDFromInterface
	case rowIDPath != nil:
		metadata.RowID = rowIDFromField(fieldGetter(rowIDPath))
	}

	return metadata, nil
}

// Column returns the column with the given database name.
func (metadata *EntityMetadata) Column(name string) (ColumnMetadata, bool) {
	return metadata.findColumn(name)
}

func (metadata *EntityMetadata) findColumn(name string) (ColumnMetadata, bool) {
	for _, c := range metadata.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMetadata{}, false
}

func (metadata *EntityMetadata) hasExplicitKey() bool {
	for _, c := range metadata.Columns {
		if c.PrimaryKey {
			return true
		}
	}
	return false
}

// indexKeys rebuilds KeyColumns from Columns in declared order.
func (metadata *EntityMetadata) indexKeys() {
	metadata.KeyColumns = metadata.KeyColumns[:0]
	for _, c := range metadata.Columns {
		if c.PrimaryKey {
			metadata.KeyColumns = append(metadata.KeyColumns, c)
		}
	}
}

type fieldTags struct {
	column        string
	key           bool
	autoIncrement bool
	rowID         bool
	skip          bool
}

// parseTags reads sqlmodel:"..." (comma separated) first and falls back to
// gorm:"..." (semicolon separated) for anything the sqlmodel tag leaves unset.
func parseTags(field reflect.StructField) fieldTags {
	var tags fieldTags

	if tag, ok := field.Tag.Lookup("sqlmodel"); ok {
		if tag == "-" {
			tags.skip = true
			return tags
		}
		for _, part := range strings.Split(tag, ",") {
			applyTagPart(&tags, strings.TrimSpace(part))
		}
	}

	if gormTag := field.Tag.Get("gorm"); gormTag != "" {
		if gormTag == "-" {
			tags.skip = true
			return tags
		}
		var gormTags fieldTags
		for _, part := range strings.Split(gormTag, ";") {
			applyTagPart(&gormTags, strings.TrimSpace(part))
		}
		if tags.column == "" {
			tags.column = gormTags.column
		}
		tags.key = tags.key || gormTags.key
		tags.autoIncrement = tags.autoIncrement || gormTags.autoIncrement
	}

	return tags
}

func applyTagPart(tags *fieldTags, part string) {
	lower := strings.ToLower(part)
	switch {
	case strings.HasPrefix(lower, "column:"):
		tags.column = strings.TrimSpace(part[len("column:"):])
	case lower == "key" || lower == "primarykey" || lower == "primary_key":
		tags.key = true
	case lower == "autoincrement" || lower == "autoincrement:true":
		tags.autoIncrement = true
	case lower == "rowid":
		tags.rowID = true
	}
}

// isNavigationField reports whether a field holds related entities rather
// than a column value.
func isNavigationField(t reflect.Type) bool {
	base := dereferenceType(t)
	if base.Kind() == reflect.Slice && base.Elem().Kind() != reflect.Uint8 {
		return isRelatedStruct(dereferenceType(base.Elem()))
	}
	switch base.Kind() {
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Interface:
		return true
	}
	return isRelatedStruct(base)
}

func isRelatedStruct(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t == timeType {
		return false
	}
	if t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType) {
		return false
	}
	return true
}

func isUnsigned(t reflect.Type) bool {
	switch dereferenceType(t).Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func fieldGetter(path []int) func(any) any {
	path = append([]int(nil), path...)
	return func(model any) any {
		v := reflect.ValueOf(model)
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return nil
		}
		f, err := v.FieldByIndexErr(path)
		if err != nil {
			return nil
		}
		return f.Interface()
	}
}

// rowIDFromInterface also accepts a model passed by value whose RowID method
// has a pointer receiver.
func rowIDFromInterface(model any) (any, bool) {
	if r, ok := model.(RowIdentifier); ok {
		return r.RowID()
	}
	v := reflect.ValueOf(model)
	if !v.IsValid() || v.Kind() == reflect.Pointer {
		return nil, false
	}
	ptr := reflect.New(v.Type())
	ptr.Elem().Set(v)
	if r, ok := ptr.Interface().(RowIdentifier); ok {
		return r.RowID()
	}
	return nil, false
}

// rowIDFromField treats a nil pointer or a zero value as "no identity".
func rowIDFromField(get func(any) any) func(any) (any, bool) {
	return func(model any) (any, bool) {
		v := get(model)
		if v == nil {
			return nil, false
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return nil, false
			}
			v = rv.Elem().Interface()
			rv = rv.Elem()
		}
		if rv.IsZero() {
			return nil, false
		}
		return v, true
	}
}

// dereferenceType unwraps pointer types to obtain the underlying type.
func dereferenceType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// getTableNameFromReflectType returns the table name for a given entity type
// This respects custom TableName() methods on the entity by using reflection
// to create a zero-value instance and checking if it implements the TableName() interface
func getTableNameFromReflectType(entityType reflect.Type) string {
	entityType = dereferenceType(entityType)

	instance := reflect.New(entityType).Interface()
	if tabler, ok := instance.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}

	return toSnakeCase(inflect.Pluralize(entityType.Name()))
}

// toSnakeCase converts a camelCase or PascalCase string to snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			// For "ProductID", we want "product_id" not "product_i_d"
			prevRune := rune(s[i-1])
			if prevRune >= 'a' && prevRune <= 'z' {
				result.WriteRune('_')
			} else if i < len(s)-1 {
				// Check if next character is lowercase (e.g., "XMLParser" -> "xml_parser")
				nextRune := rune(s[i+1])
				if nextRune >= 'a' && nextRune <= 'z' {
					result.WriteRune('_')
				}
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
