package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nlstn/go-sqlmodel/internal/query"
)

func setupGormDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(`CREATE TABLE todo (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, done INTEGER NOT NULL DEFAULT 0)`).Error)
	return db
}

func TestGormGateway_RoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := NewGormGateway(setupGormDB(t), nil)

	res, err := gw.Query(ctx, insertTodo("buy milk"))
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)

	res, err = gw.Query(ctx, query.DbQuery{
		Table:  "todo",
		Type:   query.TypeUpdate,
		Query:  "UPDATE todo SET done = (?) WHERE id = (?)",
		Params: []any{true, 1},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)

	res, err = gw.Query(ctx, query.DbQuery{
		Table:  "todo",
		Type:   query.TypeSelect,
		Query:  "SELECT id, title, done FROM todo WHERE title = (?)",
		Params: []any{"buy milk"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, int64(1), res.Rows[0]["done"])
}

func TestGormGateway_UsesTransactionFromContext(t *testing.T) {
	db := setupGormDB(t)
	gw := NewGormGateway(db, nil)

	sentinel := errors.New("rollback")
	err := db.Transaction(func(tx *gorm.DB) error {
		ctx := WithGormTx(context.Background(), tx)
		if _, err := gw.Query(ctx, insertTodo("inside tx")); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	res, err := gw.Query(context.Background(), query.DbQuery{Type: query.TypeSelect, Query: "SELECT COUNT(*) AS n FROM todo"})
	require.NoError(t, err)
	require.Equal(t, int64(0), res.Rows[0]["n"])
}

func TestGormGateway_WrapsErrors(t *testing.T) {
	gw := NewGormGateway(setupGormDB(t), nil)

	_, err := gw.Query(context.Background(), query.DbQuery{
		Table: "missing",
		Type:  query.TypeDelete,
		Query: "DELETE FROM missing",
	})
	require.Error(t, err)

	var execErr *query.ExecError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, "missing", execErr.Query.Table)
}
