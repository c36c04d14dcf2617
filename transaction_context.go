package sqlmodel

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/nlstn/go-sqlmodel/internal/gateway"
)

// WithTx returns a context whose statements run on tx when executed by a
// store backed by database/sql. Beginning, committing and rolling back tx
// stay with the caller:
//
//	tx, _ := db.BeginTx(ctx, nil)
//	defer tx.Rollback()
//	if _, err := store.Update(&todo).Exec(sqlmodel.WithTx(ctx, tx)); err != nil {
//	    return err
//	}
//	return tx.Commit()
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return gateway.WithTx(ctx, tx)
}

// TransactionFromContext returns the *sql.Tx stored by WithTx.
func TransactionFromContext(ctx context.Context) (*sql.Tx, bool) {
	return gateway.TransactionFromContext(ctx)
}

// WithGormTx is WithTx for stores backed by gorm. Pass the *gorm.DB handed to
// a db.Transaction callback.
func WithGormTx(ctx context.Context, tx *gorm.DB) context.Context {
	return gateway.WithGormTx(ctx, tx)
}

// GormTransactionFromContext returns the handle stored by WithGormTx.
func GormTransactionFromContext(ctx context.Context) (*gorm.DB, bool) {
	return gateway.GormTransactionFromContext(ctx)
}
