package query

import (
	"database/sql/driver"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// truthy reports whether v counts as "set" for partial updates. Nil, zero
// scalars, empty strings, empty collections and invalid Valuers are not set.
// A non-nil pointer is always set, even when it points at a zero value.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case decimal.Decimal:
		return !x.IsZero()
	case decimal.NullDecimal:
		return x.Valid && !x.Decimal.IsZero()
	case time.Time:
		return !x.IsZero()
	case []byte:
		return len(x) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	}

	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil || dv == nil {
			return false
		}
		if _, nested := dv.(driver.Valuer); nested {
			return true
		}
		return truthy(dv)
	}

	return !rv.IsZero()
}
