package query

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// StatementType is the kind of SQL statement a DbQuery carries.
type StatementType string

const (
	TypeSelect StatementType = "SELECT"
	TypeInsert StatementType = "INSERT"
	TypeUpdate StatementType = "UPDATE"
	TypeDelete StatementType = "DELETE"
)

// DbQuery is a built statement: SQL text with "?" placeholders and the
// parameters bound to them, in placeholder order.
//
// The number of placeholders in Query always equals len(Params). Append is
// the only way fragments are merged, so the correspondence holds at every
// step of building.
type DbQuery struct {
	Table  string        `json:"table"`
	Type   StatementType `json:"type"`
	Query  string        `json:"query"`
	Params []any         `json:"params"`
}

// Append concatenates other's text and params onto q, preserving order.
func (q *DbQuery) Append(other DbQuery) {
	q.Query += other.Query
	q.Params = append(q.Params, other.Params...)
}

// AppendText appends SQL text that binds no parameters. It is meant for
// keywords and identifiers; text containing "?" breaks the invariant and is
// reported by Validate.
func (q *DbQuery) AppendText(text string) {
	q.Query += text
}

func (q *DbQuery) str(text string) {
	q.Query += text
}

// arg appends a parenthesized placeholder and its parameter together.
func (q *DbQuery) arg(v any) {
	q.Query += Placeholder
	q.Params = append(q.Params, v)
}

// bareArg appends a bare placeholder, used inside IN lists.
func (q *DbQuery) bareArg(v any) {
	q.Query += "?"
	q.Params = append(q.Params, v)
}

// Placeholders returns the number of "?" markers in the query text.
func (q DbQuery) Placeholders() int {
	return countPlaceholders(q.Query)
}

// Validate reports ErrParamMismatch when the placeholder count and the number
// of params disagree.
func (q DbQuery) Validate() error {
	if n := q.Placeholders(); n != len(q.Params) {
		return ErrParamMismatch.becausef("%d placeholders, %d params in %q", n, len(q.Params), q.Query)
	}
	return nil
}

// Fingerprint hashes the query text. Queries that differ only in their params
// share a fingerprint, which makes it usable as a prepared statement key.
func (q DbQuery) Fingerprint() uint64 {
	return xxhash.Sum64String(q.Query)
}

// Rebind returns the query text with placeholders converted for dialect.
// Postgres uses $1, $2, ...; every other dialect keeps "?".
func (q DbQuery) Rebind(dialect string) string {
	if dialect == "postgres" || dialect == "postgresql" || dialect == "pgx" {
		return convertToPostgresPlaceholders(q.Query)
	}
	return q.Query
}

// Clone returns a copy that shares nothing mutable with q.
func (q DbQuery) Clone() DbQuery {
	q.Params = append([]any(nil), q.Params...)
	return q
}

func (q DbQuery) String() string {
	return q.Query
}

func countPlaceholders(s string) int {
	return strings.Count(s, "?")
}

// convertToPostgresPlaceholders converts ? placeholders to $1, $2, ... for PostgreSQL
func convertToPostgresPlaceholders(query string) string {
	var result strings.Builder
	result.Grow(len(query) + 8)
	placeholderNum := 1

	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result.WriteByte('$')
			result.WriteString(strconv.Itoa(placeholderNum))
			placeholderNum++
		} else {
			result.WriteByte(query[i])
		}
	}

	return result.String()
}
