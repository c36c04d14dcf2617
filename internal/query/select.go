package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// SelectBuilder accumulates the parts of a SELECT over a model's table.
type SelectBuilder struct {
	builder
	columns    []string
	orderBys   []string
	limit      *int
	offset     int
	byIdentity bool
}

// NewSelect returns a SELECT builder. model may be a zero value; it is only
// read when ByIdentity is used.
func NewSelect(provider MetadataProvider, model any, opts ...Option) *SelectBuilder {
	return &SelectBuilder{builder: newBuilder(provider, model, opts)}
}

// Where adds caller predicates.
func (s *SelectBuilder) Where(preds ...Predicate) *SelectBuilder {
	s.addWhere(preds)
	return s
}

// Columns narrows the SELECT list. Every name must be a mapped column.
func (s *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	if s.err != nil {
		return s
	}
	for _, c := range cols {
		if _, ok := s.meta.Column(c); !ok {
			s.err = ErrUnknownColumn.while("selecting from "+s.meta.TableName).becausef("%q", c)
			return s
		}
	}
	s.columns = append(s.columns, cols...)
	return s
}

// OrderBy adds an ascending ORDER BY term.
func (s *SelectBuilder) OrderBy(col string) *SelectBuilder {
	return s.order(col, "")
}

// OrderByDesc adds a descending ORDER BY term.
func (s *SelectBuilder) OrderByDesc(col string) *SelectBuilder {
	return s.order(col, " DESC")
}

func (s *SelectBuilder) order(col, dir string) *SelectBuilder {
	if s.err != nil {
		return s
	}
	if !isValidIdentifier(col) {
		s.err = ErrMalformedPredicate.while("ordering "+s.meta.TableName).becausef("invalid column key %q", col)
		return s
	}
	s.orderBys = append(s.orderBys, col+dir)
	return s
}

// Limit sets the LIMIT for the query
func (s *SelectBuilder) Limit(n int) *SelectBuilder {
	s.limit = &n
	return s
}

// Offset sets the OFFSET for the query
func (s *SelectBuilder) Offset(n int) *SelectBuilder {
	s.offset = n
	return s
}

// ByIdentity restricts the query to the model's own row.
func (s *SelectBuilder) ByIdentity() *SelectBuilder {
	s.byIdentity = true
	return s
}

func (s *SelectBuilder) filter() (DbQuery, error) {
	var identity Clauses
	if s.byIdentity {
		identity = s.identity()
		if len(identity) == 0 {
			return DbQuery{}, ErrUnconditional.
				while(fmt.Sprintf("selecting %s by identity", s.meta.EntityName)).
				becausef("%s has no primary key and no row identity", s.meta.TableName)
		}
	}
	return s.whereFragment(identity)
}

// Build renders the final SELECT statement.
func (s *SelectBuilder) Build() (DbQuery, error) {
	if s.err != nil {
		return DbQuery{}, s.err
	}

	q := DbQuery{Table: s.meta.TableName, Type: TypeSelect}
	q.str("SELECT ")
	cols := s.columns
	if len(cols) == 0 {
		cols = make([]string, 0, len(s.meta.Columns))
		for _, c := range s.meta.Columns {
			cols = append(cols, c.Name)
		}
	}
	if len(cols) > 0 {
		q.str(strings.Join(cols, ", "))
	} else {
		q.str("*")
	}
	q.str(" FROM " + s.meta.TableName)

	where, err := s.filter()
	if err != nil {
		return DbQuery{}, err
	}
	q.Append(where)

	if len(s.orderBys) > 0 {
		q.str(" ORDER BY " + strings.Join(s.orderBys, ", "))
	}

	if s.limit != nil {
		q.str(" LIMIT " + strconv.Itoa(*s.limit))
	} else if s.offset > 0 && s.dialect == "mysql" {
		// MySQL requires LIMIT when OFFSET is used
		q.str(" LIMIT 2147483647")
	}
	if s.offset > 0 {
		q.str(" OFFSET " + strconv.Itoa(s.offset))
	}

	return finish(q)
}

// Count renders SELECT COUNT(*) with the same WHERE as Build. ORDER BY, LIMIT
// and OFFSET are ignored.
func (s *SelectBuilder) Count() (DbQuery, error) {
	if s.err != nil {
		return DbQuery{}, s.err
	}
	q := DbQuery{Table: s.meta.TableName, Type: TypeSelect}
	q.str("SELECT COUNT(*) FROM " + s.meta.TableName)
	where, err := s.filter()
	if err != nil {
		return DbQuery{}, err
	}
	q.Append(where)
	return finish(q)
}

// Exec builds and executes the SELECT.
func (s *SelectBuilder) Exec(ctx context.Context) (*Result, error) {
	q, err := s.Build()
	return s.run(ctx, q, err)
}

// CountContext executes the count query and returns the count
func (s *SelectBuilder) CountContext(ctx context.Context) (int64, error) {
	q, err := s.Count()
	res, err := s.run(ctx, q, err)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 || len(res.Columns) == 0 {
		return 0, fmt.Errorf("count on %s returned no rows", q.Table)
	}
	return toInt64(res.Rows[0][res.Columns[0]])
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("unexpected count type %T", v)
}
