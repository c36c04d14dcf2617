package query

import (
	"database/sql/driver"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Operator is a SQL comparator used by a Clause.
type Operator string

const (
	OpEq        Operator = "="
	OpNe        Operator = "<>"
	OpGt        Operator = ">"
	OpGte       Operator = ">="
	OpLt        Operator = "<"
	OpLte       Operator = "<="
	OpLike      Operator = "LIKE"
	OpNotLike   Operator = "NOT LIKE"
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT IN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// membership reports whether the operator binds a list of values.
func (op Operator) membership() bool {
	return op == OpIn || op == OpNotIn
}

// unary reports whether the operator binds no value at all.
func (op Operator) unary() bool {
	return op == OpIsNull || op == OpIsNotNull
}

func (op Operator) valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpLike, OpNotLike,
		OpIn, OpNotIn, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Connector joins an entry to the one before it.
type Connector string

const (
	ConnAnd Connector = "AND"
	ConnOr  Connector = "OR"
)

// Placeholder is the positional parameter marker emitted for every bound value.
const Placeholder = "(?)"

// validIdentifierRe matches column keys: letters, digits, underscores and dots
// for table-qualified names.
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Predicate is anything accepted by ClauseGroup.Add: a Clause, Clauses, a
// *ClauseGroup, a Map or a Raw fragment. The set is closed.
type Predicate interface {
	entries() ([]entry, error)
}

// Clause is a single column-comparator-value predicate.
type Clause struct {
	Key       string
	Op        Operator
	Value     any
	List      []any
	Connector Connector
}

// Eq returns the clause key = value.
func Eq(key string, value any) Clause { return Clause{Key: key, Op: OpEq, Value: value} }

// Ne returns the clause key <> value.
func Ne(key string, value any) Clause { return Clause{Key: key, Op: OpNe, Value: value} }

// Gt returns the clause key > value.
func Gt(key string, value any) Clause { return Clause{Key: key, Op: OpGt, Value: value} }

// Gte returns the clause key >= value.
func Gte(key string, value any) Clause { return Clause{Key: key, Op: OpGte, Value: value} }

// Lt returns the clause key < value.
func Lt(key string, value any) Clause { return Clause{Key: key, Op: OpLt, Value: value} }

// Lte returns the clause key <= value.
func Lte(key string, value any) Clause { return Clause{Key: key, Op: OpLte, Value: value} }

// Like returns the clause key LIKE pattern.
func Like(key string, pattern any) Clause { return Clause{Key: key, Op: OpLike, Value: pattern} }

// In returns a membership clause with one placeholder per value.
func In(key string, values ...any) Clause {
	return Clause{Key: key, Op: OpIn, List: append([]any(nil), values...)}
}

// NotIn returns a negated membership clause.
func NotIn(key string, values ...any) Clause {
	return Clause{Key: key, Op: OpNotIn, List: append([]any(nil), values...)}
}

// IsNull returns the clause key IS NULL.
func IsNull(key string) Clause { return Clause{Key: key, Op: OpIsNull} }

// IsNotNull returns the clause key IS NOT NULL.
func IsNotNull(key string) Clause { return Clause{Key: key, Op: OpIsNotNull} }

// Or returns a copy of the clause joined to its predecessor with OR.
func (c Clause) Or() Clause {
	c.Connector = ConnOr
	return c
}

// And returns a copy of the clause joined to its predecessor with AND.
func (c Clause) And() Clause {
	c.Connector = ConnAnd
	return c
}

func (c Clause) normalize() (Clause, error) {
	if !isValidIdentifier(c.Key) {
		return Clause{}, ErrMalformedPredicate.becausef("invalid column key %q", c.Key)
	}
	if c.Op == "" {
		c.Op = OpEq
		if len(c.List) > 0 {
			c.Op = OpIn
		}
	}
	if (c.Op == OpEq || c.Op == OpNe) && len(c.List) == 0 {
		if list, ok := spreadList(c.Value); ok {
			c.Value, c.List = nil, list
			if c.Op == OpNe {
				c.Op = OpNotIn
			} else {
				c.Op = OpIn
			}
		}
	}
	if !c.Op.valid() {
		return Clause{}, ErrMalformedPredicate.becausef("unknown operator %q for column %q", c.Op, c.Key)
	}
	if c.Connector == "" {
		c.Connector = ConnAnd
	}
	if c.Connector != ConnAnd && c.Connector != ConnOr {
		return Clause{}, ErrMalformedPredicate.becausef("unknown connector %q for column %q", c.Connector, c.Key)
	}
	if c.Op.membership() {
		if c.Value != nil {
			return Clause{}, ErrMalformedPredicate.becausef("membership clause on %q takes List, not Value", c.Key)
		}
		c.List = append([]any(nil), c.List...)
	} else if len(c.List) > 0 {
		return Clause{}, ErrMalformedPredicate.becausef("list value on %q requires IN or NOT IN", c.Key)
	}
	return c, nil
}

// spreadList returns the elements of a slice or array value. Byte slices and
// driver.Valuer implementations bind as a single parameter.
func spreadList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.(driver.Valuer); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
	default:
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func (c Clause) entries() ([]entry, error) {
	c, err := c.normalize()
	if err != nil {
		return nil, err
	}
	return []entry{{conn: c.Connector, clause: &c}}, nil
}

func (c Clause) render(b *DbQuery) {
	switch {
	case c.Op.unary():
		b.str(c.Key + " " + string(c.Op))
	case c.Op.membership():
		if len(c.List) == 0 {
			// An empty list matches nothing (IN) or everything (NOT IN).
			if c.Op == OpIn {
				b.str("1 = 0")
			} else {
				b.str("1 = 1")
			}
			return
		}
		b.str(c.Key + " " + string(c.Op) + " (")
		for i, v := range c.List {
			if i > 0 {
				b.str(", ")
			}
			b.bareArg(v)
		}
		b.str(")")
	default:
		b.str(c.Key + " " + string(c.Op) + " ")
		b.arg(c.Value)
	}
}

// Clauses is an ordered slice of clauses added as individual entries.
type Clauses []Clause

func (cs Clauses) entries() ([]entry, error) {
	out := make([]entry, 0, len(cs))
	for _, c := range cs {
		e, err := c.entries()
		if err != nil {
			return nil, err
		}
		out = append(out, e...)
	}
	return out, nil
}

// Map is a key to value mapping read as equality clauses joined by AND.
// A slice or array value becomes an IN test over its elements. Keys are
// visited in sorted order so rendering is deterministic.
type Map map[string]any

func (m Map) entries() ([]entry, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]entry, 0, len(keys))
	for _, k := range keys {
		e, err := Eq(k, m[k]).entries()
		if err != nil {
			return nil, err
		}
		out = append(out, e...)
	}
	return out, nil
}

// Raw is a literal SQL condition using "?" placeholders, one per argument.
// Every "?" in Condition counts as a placeholder, including one inside a
// quoted literal, and is rewritten to $N on postgres. Bind such values as
// arguments instead of quoting them in Condition.
type Raw struct {
	Condition string
	Args      []any
	Connector Connector
}

// RawCondition returns a Raw fragment joined with AND. See Raw for how
// placeholders are counted.
func RawCondition(condition string, args ...any) Raw {
	return Raw{Condition: condition, Args: append([]any(nil), args...)}
}

func (r Raw) entries() ([]entry, error) {
	cond := strings.TrimSpace(r.Condition)
	if cond == "" {
		return nil, ErrMalformedPredicate.becausef("empty raw condition")
	}
	if n := countPlaceholders(cond); n != len(r.Args) {
		return nil, ErrMalformedPredicate.becausef("raw condition %q has %d placeholders but %d args", cond, n, len(r.Args))
	}
	conn := r.Connector
	if conn == "" {
		conn = ConnAnd
	}
	if conn != ConnAnd && conn != ConnOr {
		return nil, ErrMalformedPredicate.becausef("unknown connector %q for raw condition", conn)
	}
	return []entry{{conn: conn, raw: &Raw{Condition: cond, Args: append([]any(nil), r.Args...), Connector: conn}}}, nil
}
