package sqlmodel_test

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	sqlmodel "github.com/nlstn/go-sqlmodel"
)

type TransactionAudit struct {
	ID      uint `gorm:"primaryKey"`
	Counter int
}

var errAbort = errors.New("abort update for test")

func TestTransactionFromContext(t *testing.T) {
	if _, ok := sqlmodel.TransactionFromContext(context.Background()); ok {
		t.Error("Expected no transaction in a bare context")
	}
	if _, ok := sqlmodel.GormTransactionFromContext(context.Background()); ok {
		t.Error("Expected no gorm transaction in a bare context")
	}
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t, sqlmodel.Config{StatementCacheSize: 8})

	if _, err := store.Insert(&Todo{Title: "original"}).Exec(ctx); err != nil {
		t.Fatalf("seed todo: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	txCtx := sqlmodel.WithTx(ctx, tx)
	if got, ok := sqlmodel.TransactionFromContext(txCtx); !ok || got != tx {
		t.Fatal("Expected the transaction to be retrievable from the context")
	}

	res, err := store.Update(&Todo{ID: 1, Title: "changed"}).Exec(txCtx)
	if err != nil {
		t.Fatalf("update in transaction: %v", err)
	}
	if res.RowsAffected != 1 {
		t.Fatalf("Expected 1 updated row, got %d", res.RowsAffected)
	}

	inside, err := store.Select(&Todo{ID: 1}).ByIdentity().Exec(txCtx)
	if err != nil {
		t.Fatalf("select in transaction: %v", err)
	}
	if got := text(inside.Rows[0]["title"]); got != "changed" {
		t.Errorf("Expected the transaction to see its own write, got %v", got)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	after, err := store.Select(&Todo{ID: 1}).ByIdentity().Exec(ctx)
	if err != nil {
		t.Fatalf("select after rollback: %v", err)
	}
	if got := text(after.Rows[0]["title"]); got != "original" {
		t.Errorf("Expected rollback to restore the title, got %v", got)
	}
}

func TestWithGormTx_RollsBackOnAbort(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&TransactionAudit{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&TransactionAudit{ID: 1, Counter: 0}).Error; err != nil {
		t.Fatalf("seed audit: %v", err)
	}

	store, err := sqlmodel.NewStoreWithGorm(db, sqlmodel.Config{})
	if err != nil {
		t.Fatalf("NewStoreWithGorm() error: %v", err)
	}
	if store.Dialect() != sqlmodel.DialectSQLite {
		t.Errorf("Expected dialect from the gorm dialector, got %q", store.Dialect())
	}
	if err := store.RegisterGorm(&TransactionAudit{}); err != nil {
		t.Fatalf("RegisterGorm() error: %v", err)
	}

	var attempted bool
	err = db.Transaction(func(tx *gorm.DB) error {
		ctx := sqlmodel.WithGormTx(context.Background(), tx)
		res, err := store.Update(&TransactionAudit{ID: 1, Counter: 5}).Exec(ctx)
		if err != nil {
			return err
		}
		attempted = res.RowsAffected == 1
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("Expected the transaction to abort, got %v", err)
	}
	if !attempted {
		t.Fatal("Expected the update to run inside the transaction")
	}

	var audit TransactionAudit
	if err := db.First(&audit, 1).Error; err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if audit.Counter != 0 {
		t.Errorf("Expected counter to roll back to 0, got %d", audit.Counter)
	}

	n, err := store.Select(&TransactionAudit{}).Where(sqlmodel.Eq("counter", 0)).CountContext(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 audit row, got %d", n)
	}
}
