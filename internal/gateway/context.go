package gateway

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Context keys for statement-scoped values
type contextKey string

const (
	transactionDBKey   contextKey = "sqlmodel_transaction_db"
	transactionGormKey contextKey = "sqlmodel_transaction_gorm"
	queryIDKey         contextKey = "sqlmodel_query_id"
)

// WithTx attaches a caller-managed transaction to the context. Statements
// executed by SQLGateway with this context run on tx; committing and rolling
// back stay with the caller.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, transactionDBKey, tx)
}

// TransactionFromContext retrieves the transaction stored by WithTx.
func TransactionFromContext(ctx context.Context) (*sql.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(transactionDBKey).(*sql.Tx)
	if !ok || tx == nil {
		return nil, false
	}
	return tx, true
}

// WithGormTx attaches a gorm transaction handle for GormGateway.
func WithGormTx(ctx context.Context, tx *gorm.DB) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, transactionGormKey, tx)
}

// GormTransactionFromContext retrieves the handle stored by WithGormTx.
func GormTransactionFromContext(ctx context.Context) (*gorm.DB, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(transactionGormKey).(*gorm.DB)
	if !ok || tx == nil {
		return nil, false
	}
	return tx, true
}

// WithQueryID stores the id used to correlate a statement's log lines and spans.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey, id)
}

// QueryID returns the id stored by WithQueryID, or a fresh one.
func QueryID(ctx context.Context) string {
	if ctx != nil {
		if id, ok := ctx.Value(queryIDKey).(string); ok && id != "" {
			return id
		}
	}
	return uuid.NewString()
}
