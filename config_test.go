package sqlmodel_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlmodel "github.com/nlstn/go-sqlmodel"
)

func TestParseConfig(t *testing.T) {
	cfg, err := sqlmodel.ParseConfig([]byte(`
dialect: postgresql
dsn: postgres://localhost/app
engine: sql
max_in_clause_size: 50
statement_cache_size: 64
statement_cache_ttl: 30s
allow_unconditional: true
log_level: warn
`))
	if err != nil {
		t.Fatalf("ParseConfig() error: %v", err)
	}

	want := sqlmodel.Config{
		Dialect:            sqlmodel.DialectPostgres,
		DSN:                "postgres://localhost/app",
		Engine:             sqlmodel.EngineSQL,
		MaxInClauseSize:    50,
		StatementCacheSize: 64,
		StatementCacheTTL:  30 * time.Second,
		AllowUnconditional: true,
		LogLevel:           "warn",
	}
	if cfg != want {
		t.Errorf("ParseConfig() = %+v, want %+v", cfg, want)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty document", yaml: ""},
		{name: "cache without ttl", yaml: "statement_cache_size: 4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := sqlmodel.ParseConfig([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("ParseConfig() error: %v", err)
			}
			if cfg.Dialect != sqlmodel.DialectSQLite {
				t.Errorf("Dialect = %q, want %q", cfg.Dialect, sqlmodel.DialectSQLite)
			}
			if cfg.Engine != sqlmodel.EngineSQL {
				t.Errorf("Engine = %q, want %q", cfg.Engine, sqlmodel.EngineSQL)
			}
			if cfg.MaxInClauseSize != sqlmodel.DefaultMaxInClauseSize {
				t.Errorf("MaxInClauseSize = %d, want %d", cfg.MaxInClauseSize, sqlmodel.DefaultMaxInClauseSize)
			}
			if cfg.StatementCacheSize > 0 && cfg.StatementCacheTTL != sqlmodel.DefaultStatementCacheTTL {
				t.Errorf("StatementCacheTTL = %v, want %v", cfg.StatementCacheTTL, sqlmodel.DefaultStatementCacheTTL)
			}
		})
	}
}

func TestParseConfig_UnlimitedInClause(t *testing.T) {
	cfg, err := sqlmodel.ParseConfig([]byte("max_in_clause_size: -1\n"))
	if err != nil {
		t.Fatalf("ParseConfig() error: %v", err)
	}
	if cfg.MaxInClauseSize != -1 {
		t.Fatalf("MaxInClauseSize = %d, want -1", cfg.MaxInClauseSize)
	}

	store, _ := newTestStore(t, cfg)
	ids := make([]any, sqlmodel.DefaultMaxInClauseSize+1)
	for i := range ids {
		ids[i] = i
	}
	q, err := store.Select(&Todo{}).Where(sqlmodel.In("id", ids...)).Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(q.Params) != len(ids) {
		t.Errorf("Expected %d params, got %d", len(ids), len(q.Params))
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown key", yaml: "dialekt: sqlite3\n"},
		{name: "unknown dialect", yaml: "dialect: oracle\n"},
		{name: "unknown engine", yaml: "engine: ent\n"},
		{name: "gorm with mysql", yaml: "engine: gorm\ndialect: mysql\n"},
		{name: "negative cache", yaml: "statement_cache_size: -1\n"},
		{name: "bad log level", yaml: "log_level: loud\n"},
		{name: "bad duration", yaml: "statement_cache_ttl: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sqlmodel.ParseConfig([]byte(tt.yaml)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlmodel.yaml")
	if err := os.WriteFile(path, []byte("dialect: mysql\nmax_in_clause_size: 10\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := sqlmodel.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Dialect != sqlmodel.DialectMySQL || cfg.MaxInClauseSize != 10 {
		t.Errorf("Unexpected config %+v", cfg)
	}

	if _, err := sqlmodel.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestOpen(t *testing.T) {
	for _, engine := range []string{sqlmodel.EngineSQL, sqlmodel.EngineGorm} {
		t.Run(engine, func(t *testing.T) {
			ctx := context.Background()
			dsn := filepath.Join(t.TempDir(), "app.db")

			store, err := sqlmodel.Open(ctx, sqlmodel.Config{
				Dialect:            "sqlite",
				DSN:                dsn,
				Engine:             engine,
				StatementCacheSize: 4,
				LogLevel:           "error",
			})
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					t.Errorf("Close() error: %v", err)
				}
			}()

			if err := store.Register(&Todo{}); err != nil {
				t.Fatalf("Register() error: %v", err)
			}
			if _, err := store.Exec(ctx, sqlmodel.DbQuery{
				Table: "todo",
				Type:  sqlmodel.TypeUpdate,
				Query: "CREATE TABLE todo (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, done INTEGER NOT NULL DEFAULT 0)",
			}); err != nil {
				t.Fatalf("create table: %v", err)
			}

			if _, err := store.Insert(&Todo{Title: "persisted"}).Exec(ctx); err != nil {
				t.Fatalf("Insert error: %v", err)
			}
			n, err := store.Select(&Todo{}).Where(sqlmodel.Like("title", "pers%")).CountContext(ctx)
			if err != nil {
				t.Fatalf("CountContext() error: %v", err)
			}
			if n != 1 {
				t.Errorf("Expected 1 todo, got %d", n)
			}
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := sqlmodel.Open(ctx, sqlmodel.Config{}); err == nil {
		t.Error("Expected error for a missing dsn")
	}
	if _, err := sqlmodel.Open(ctx, sqlmodel.Config{Dialect: "oracle", DSN: "x"}); err == nil {
		t.Error("Expected error for an unsupported dialect")
	}
}
