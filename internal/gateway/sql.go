package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/nlstn/go-sqlmodel/internal/query"
)

// ExecQuerier is the subset of *sql.DB (and *sql.Conn) the gateway needs.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// SQLOption configures an SQLGateway.
type SQLOption func(*SQLGateway)

// WithDialect sets the dialect used to rebind placeholders.
func WithDialect(dialect string) SQLOption {
	return func(g *SQLGateway) { g.dialect = dialect }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) SQLOption {
	return func(g *SQLGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithStatementCache keeps up to size prepared statements, each for at most
// ttl. A size of zero disables the cache.
func WithStatementCache(size int, ttl time.Duration) SQLOption {
	return func(g *SQLGateway) {
		g.cacheSize = size
		g.cacheTTL = ttl
	}
}

// SQLGateway executes DbQuery values through database/sql.
type SQLGateway struct {
	db        ExecQuerier
	dialect   string
	logger    *slog.Logger
	cacheSize int
	cacheTTL  time.Duration

	stmts    *expirable.LRU[uint64, *cachedStmt]
	prepares singleflight.Group
}

// NewSQLGateway wraps db. The gateway does not own db; Close only releases
// cached statements.
func NewSQLGateway(db ExecQuerier, opts ...SQLOption) *SQLGateway {
	g := &SQLGateway{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	if g.cacheSize > 0 {
		g.stmts = expirable.NewLRU[uint64, *cachedStmt](g.cacheSize, func(_ uint64, s *cachedStmt) {
			s.evict()
		}, g.cacheTTL)
	}
	return g
}

// SetLogger replaces the logger. Nil resets it to slog.Default().
func (g *SQLGateway) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	g.logger = logger
}

// Dialect returns the configured dialect.
func (g *SQLGateway) Dialect() string {
	return g.dialect
}

// Query executes q. SELECT statements return their rows; every other kind
// returns the affected row count and, where the driver supports it, the last
// insert id. Driver errors are wrapped in *query.ExecError.
func (g *SQLGateway) Query(ctx context.Context, q query.DbQuery) (*query.Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	text := q.Rebind(g.dialect)
	queryID := QueryID(ctx)
	tx, inTx := TransactionFromContext(ctx)

	if g.logger != nil {
		g.logger.Debug("Executing query", "sql", text, "args", q.Params, "query_id", queryID, "in_tx", inTx)
	}

	var (
		res *query.Result
		err error
	)
	if inTx {
		res, err = run(ctx, q, text, tx)
	} else {
		res, err = g.runCached(ctx, q, text)
	}
	if err != nil {
		if g.logger != nil {
			g.logger.Debug("Query failed", "query_id", queryID, "error", err)
		}
		return nil, &query.ExecError{Query: q, Err: err}
	}
	return res, nil
}

// Close releases every cached prepared statement.
func (g *SQLGateway) Close() error {
	if g.stmts != nil {
		g.stmts.Purge()
	}
	return nil
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func run(ctx context.Context, q query.DbQuery, text string, r runner) (*query.Result, error) {
	if q.Type == query.TypeSelect {
		rows, err := r.QueryContext(ctx, text, q.Params...)
		if err != nil {
			return nil, err
		}
		return scanRows(rows, q.Type)
	}
	sqlRes, err := r.ExecContext(ctx, text, q.Params...)
	if err != nil {
		return nil, err
	}
	return execResult(sqlRes, q.Type), nil
}

func (g *SQLGateway) runCached(ctx context.Context, q query.DbQuery, text string) (*query.Result, error) {
	if g.stmts == nil {
		return run(ctx, q, text, g.db)
	}
	stmt, err := g.prepare(ctx, q.Fingerprint(), text)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return run(ctx, q, text, g.db)
	}
	defer stmt.release()

	if q.Type == query.TypeSelect {
		rows, err := stmt.stmt.QueryContext(ctx, q.Params...)
		if err != nil {
			return nil, err
		}
		return scanRows(rows, q.Type)
	}
	sqlRes, err := stmt.stmt.ExecContext(ctx, q.Params...)
	if err != nil {
		return nil, err
	}
	return execResult(sqlRes, q.Type), nil
}

// prepare returns an acquired cached statement for text. A nil statement with
// a nil error means the cache could not serve text and the caller should run
// it directly.
func (g *SQLGateway) prepare(ctx context.Context, key uint64, text string) (*cachedStmt, error) {
	if s, ok := g.stmts.Get(key); ok {
		if s.query == text && s.acquire() {
			return s, nil
		}
		if s.query != text {
			return nil, nil
		}
	}

	v, err, _ := g.prepares.Do(strconv.FormatUint(key, 16), func() (any, error) {
		if s, ok := g.stmts.Get(key); ok && s.query == text {
			return s, nil
		}
		stmt, err := g.db.PrepareContext(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare statement: %w", err)
		}
		s := &cachedStmt{stmt: stmt, query: text}
		g.stmts.Add(key, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s := v.(*cachedStmt)
	if s.query != text || !s.acquire() {
		return nil, nil
	}
	return s, nil
}

// cachedStmt is a prepared statement that is closed once it has been evicted
// and every in-flight use has released it.
type cachedStmt struct {
	stmt  *sql.Stmt
	query string

	mu      sync.Mutex
	refs    int
	evicted bool
}

func (s *cachedStmt) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return false
	}
	s.refs++
	return true
}

func (s *cachedStmt) release() {
	s.mu.Lock()
	s.refs--
	closeNow := s.evicted && s.refs == 0
	s.mu.Unlock()
	if closeNow {
		_ = s.stmt.Close()
	}
}

func (s *cachedStmt) evict() {
	s.mu.Lock()
	s.evicted = true
	closeNow := s.refs == 0
	s.mu.Unlock()
	if closeNow {
		_ = s.stmt.Close()
	}
}

func execResult(res sql.Result, kind query.StatementType) *query.Result {
	out := &query.Result{Type: kind}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if kind == query.TypeInsert {
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID = id
		}
	}
	return out
}

// scanRows reads every row into a column-name keyed map and closes rows.
func scanRows(rows *sql.Rows, kind query.StatementType) (*query.Result, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	out := &query.Result{Type: kind, Columns: cols, Rows: []map[string]any{}}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			// Drivers may reuse byte buffers between rows.
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[col] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
