package query

import "fmt"

// entry is the single internal representation every Predicate normalizes to:
// exactly one of clause, group or raw is set.
type entry struct {
	conn   Connector
	clause *Clause
	group  *ClauseGroup
	raw    *Raw
}

func (e entry) clone() entry {
	switch {
	case e.clause != nil:
		c := *e.clause
		c.List = append([]any(nil), c.List...)
		e.clause = &c
	case e.group != nil:
		e.group = e.group.clone()
	case e.raw != nil:
		r := *e.raw
		r.Args = append([]any(nil), r.Args...)
		e.raw = &r
	}
	return e
}

// ClauseGroup is an ordered, nestable boolean composition of predicates.
//
// A ClauseGroup is not safe for concurrent mutation. Groups added to another
// group are copied, so later changes to the original do not leak into the
// parent.
type ClauseGroup struct {
	// Connector joins this group to the entry before it when nested.
	Connector Connector

	items []entry
	maxIn int
	err   error
}

// NewClauseGroup returns an empty group. The zero value is also ready to use.
func NewClauseGroup() *ClauseGroup {
	return &ClauseGroup{}
}

// And returns a group holding preds joined by AND. Input errors are kept on
// the group and reported when it is added to another group or built.
func And(preds ...Predicate) *ClauseGroup {
	g := &ClauseGroup{}
	if err := g.Add(preds...); err != nil {
		g.err = err
	}
	return g
}

// Or returns a group whose top-level entries are joined by OR.
func Or(preds ...Predicate) *ClauseGroup {
	g := And(preds...)
	for i := range g.items {
		g.items[i].conn = ConnOr
	}
	return g
}

// WithConnector returns a copy of the group joined to its predecessor by conn.
func (g *ClauseGroup) WithConnector(conn Connector) *ClauseGroup {
	out := g.clone()
	out.Connector = conn
	return out
}

// SetMaxInClauseSize limits the number of values any IN / NOT IN clause added
// from now on may carry. Zero or negative disables the limit.
func (g *ClauseGroup) SetMaxInClauseSize(n int) {
	g.maxIn = n
}

// Len returns the number of top-level entries.
func (g *ClauseGroup) Len() int {
	if g == nil {
		return 0
	}
	return len(g.items)
}

// IsEmpty reports whether the group renders to nothing.
func (g *ClauseGroup) IsEmpty() bool {
	if g == nil {
		return true
	}
	for _, e := range g.items {
		if e.group == nil || !e.group.IsEmpty() {
			return false
		}
	}
	return true
}

// Err returns the first input error recorded by And or Or.
func (g *ClauseGroup) Err() error {
	if g == nil {
		return nil
	}
	return g.err
}

// Add appends predicates in order. It never mutates its inputs. On error no
// entry from this call is kept.
func (g *ClauseGroup) Add(preds ...Predicate) error {
	var added []entry
	for i, p := range preds {
		if p == nil {
			return ErrMalformedPredicate.becausef("nil predicate at position %d", i)
		}
		es, err := p.entries()
		if err != nil {
			return err
		}
		if err := g.checkInSize(es); err != nil {
			return err
		}
		added = append(added, es...)
	}
	g.items = append(g.items, added...)
	return nil
}

func (g *ClauseGroup) checkInSize(es []entry) error {
	if g.maxIn <= 0 {
		return nil
	}
	for _, e := range es {
		switch {
		case e.clause != nil && e.clause.Op.membership() && len(e.clause.List) > g.maxIn:
			return ErrMalformedPredicate.becausef("IN clause on %q has %d values, limit is %d", e.clause.Key, len(e.clause.List), g.maxIn)
		case e.group != nil:
			if err := g.checkInSize(e.group.items); err != nil {
				return err
			}
		}
	}
	return nil
}

// entries lets a group be nested inside another group. The nested group is
// snapshotted.
func (g *ClauseGroup) entries() ([]entry, error) {
	if g == nil {
		return nil, ErrMalformedPredicate.because(fmt.Errorf("nil clause group"))
	}
	if g.err != nil {
		return nil, g.err
	}
	conn := g.Connector
	if conn == "" {
		conn = ConnAnd
	}
	if conn != ConnAnd && conn != ConnOr {
		return nil, ErrMalformedPredicate.becausef("unknown group connector %q", conn)
	}
	return []entry{{conn: conn, group: g.clone()}}, nil
}

func (g *ClauseGroup) clone() *ClauseGroup {
	out := &ClauseGroup{Connector: g.Connector, maxIn: g.maxIn, err: g.err}
	if len(g.items) > 0 {
		out.items = make([]entry, len(g.items))
		for i, e := range g.items {
			out.items[i] = e.clone()
		}
	}
	return out
}

// Build renders the group. Params list the bound value of every placeholder in
// the order the placeholders appear in text.
func (g *ClauseGroup) Build() (string, []any) {
	var q DbQuery
	g.render(&q)
	return q.Query, q.Params
}

// Fragment renders the group as a DbQuery fragment ready for DbQuery.Append.
func (g *ClauseGroup) Fragment() DbQuery {
	var q DbQuery
	g.render(&q)
	return q
}

func (g *ClauseGroup) render(q *DbQuery) {
	if g == nil {
		return
	}
	first := true
	for _, e := range g.items {
		if e.group != nil && e.group.IsEmpty() {
			continue
		}
		if !first {
			q.str(" " + string(e.conn) + " ")
		}
		first = false

		switch {
		case e.clause != nil:
			e.clause.render(q)
		case e.group != nil:
			q.str("(")
			e.group.render(q)
			q.str(")")
		case e.raw != nil:
			q.str("(" + e.raw.Condition + ")")
			q.Params = append(q.Params, e.raw.Args...)
		}
	}
}
