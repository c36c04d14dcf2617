package gateway

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/nlstn/go-sqlmodel/internal/query"
)

// GormGateway executes DbQuery values through an existing *gorm.DB. gorm binds
// the "?" placeholders itself, so no rebind happens here.
type GormGateway struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGormGateway wraps db. A nil logger uses slog.Default().
func NewGormGateway(db *gorm.DB, logger *slog.Logger) *GormGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormGateway{db: db, logger: logger}
}

// SetLogger replaces the logger. Nil resets it to slog.Default().
func (g *GormGateway) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	g.logger = logger
}

// DB returns the wrapped handle.
func (g *GormGateway) DB() *gorm.DB {
	return g.db
}

// Query executes q on the gorm handle, or on the transaction attached with
// WithGormTx.
func (g *GormGateway) Query(ctx context.Context, q query.DbQuery) (*query.Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	db, inTx := GormTransactionFromContext(ctx)
	if !inTx {
		db = g.db
	}
	db = db.WithContext(ctx)

	g.logger.Debug("Executing query", "sql", q.Query, "args", q.Params, "query_id", QueryID(ctx), "in_tx", inTx)

	if q.Type == query.TypeSelect {
		rows, err := db.Raw(q.Query, q.Params...).Rows()
		if err != nil {
			return nil, &query.ExecError{Query: q, Err: err}
		}
		res, err := scanRows(rows, q.Type)
		if err != nil {
			return nil, &query.ExecError{Query: q, Err: err}
		}
		return res, nil
	}

	tx := db.Exec(q.Query, q.Params...)
	if tx.Error != nil {
		return nil, &query.ExecError{Query: q, Err: tx.Error}
	}
	return &query.Result{Type: q.Type, RowsAffected: tx.RowsAffected}, nil
}

// Close closes the connection pool underneath the gorm handle.
func (g *GormGateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
