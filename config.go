package sqlmodel

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	// Registered database/sql drivers for Open.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Engines accepted by Config.Engine.
const (
	EngineSQL  = "sql"
	EngineGorm = "gorm"
)

// Dialects accepted by Config.Dialect.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

const (
	// DefaultMaxInClauseSize is the default maximum number of values allowed in an IN clause.
	// This prevents excessively large IN clauses that could impact database performance.
	DefaultMaxInClauseSize = 1000

	// DefaultStatementCacheTTL bounds how long a prepared statement stays cached.
	DefaultStatementCacheTTL = 10 * time.Minute
)

// Config controls how a Store is opened and how its builders behave.
type Config struct {
	// Dialect selects the driver and the placeholder syntax.
	// One of "sqlite3", "postgres", "mysql". Default: "sqlite3".
	Dialect string `yaml:"dialect"`

	// DSN is the data source name handed to the driver. Only used by Open.
	DSN string `yaml:"dsn"`

	// Engine selects the gateway: "sql" (database/sql) or "gorm". Default: "sql".
	Engine string `yaml:"engine"`

	// MaxInClauseSize is the maximum number of values allowed in an IN clause.
	// Default: 1000. If set to 0 or left unset, DefaultMaxInClauseSize is used.
	// A negative value disables the limit.
	MaxInClauseSize int `yaml:"max_in_clause_size"`

	// StatementCacheSize is the number of prepared statements kept by the sql
	// engine. Zero disables the cache.
	StatementCacheSize int `yaml:"statement_cache_size"`

	// StatementCacheTTL is how long a cached statement may live.
	// Default: 10m when the cache is enabled.
	StatementCacheTTL time.Duration `yaml:"statement_cache_ttl"`

	// AllowUnconditional lets UPDATE and DELETE run with no WHERE clause.
	AllowUnconditional bool `yaml:"allow_unconditional"`

	// LogLevel is one of "debug", "info", "warn", "error". When set, Open
	// logs to stderr at that level; otherwise slog.Default() is used.
	LogLevel string `yaml:"log_level"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.Dialect == "" {
		c.Dialect = DialectSQLite
	}
	c.Dialect = normalizeDialect(c.Dialect)
	if c.Engine == "" {
		c.Engine = EngineSQL
	}
	if c.MaxInClauseSize == 0 {
		c.MaxInClauseSize = DefaultMaxInClauseSize
	}
	if c.StatementCacheSize > 0 && c.StatementCacheTTL <= 0 {
		c.StatementCacheTTL = DefaultStatementCacheTTL
	}
	return c
}

func normalizeDialect(d string) string {
	switch strings.ToLower(d) {
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "postgres", "postgresql", "pgx":
		return DialectPostgres
	case "mysql":
		return DialectMySQL
	}
	return d
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Dialect {
	case DialectSQLite, DialectPostgres, DialectMySQL:
	default:
		return fmt.Errorf("sqlmodel: unsupported dialect %q", c.Dialect)
	}
	switch c.Engine {
	case EngineSQL:
	case EngineGorm:
		if c.Dialect == DialectMySQL {
			return fmt.Errorf("sqlmodel: engine gorm does not support dialect %q", c.Dialect)
		}
	default:
		return fmt.Errorf("sqlmodel: unsupported engine %q", c.Engine)
	}
	if c.StatementCacheSize < 0 {
		return fmt.Errorf("sqlmodel: statement cache size must not be negative")
	}
	if c.LogLevel != "" {
		if _, err := parseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("sqlmodel: invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Open connects to the database described by cfg and returns a Store that
// owns the connection. Close the store to release it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlmodel: dsn is required")
	}

	var (
		store *Store
		db    *sql.DB
		err   error
	)
	switch cfg.Engine {
	case EngineGorm:
		var gdb *gorm.DB
		gdb, err = gorm.Open(gormDialector(cfg), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db, err = gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		store, err = NewStoreWithGorm(gdb, cfg)
	default:
		db, err = sql.Open(cfg.Dialect, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		store, err = NewStoreWithDB(db, cfg)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.closers = append([]func() error{db.Close}, store.closers...)

	if err := db.PingContext(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.LogLevel != "" {
		lvl, _ := parseLevel(cfg.LogLevel)
		_ = store.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	}
	store.logger.Info("Opened store", "dialect", cfg.Dialect, "engine", cfg.Engine)
	return store, nil
}

func gormDialector(cfg Config) gorm.Dialector {
	if cfg.Dialect == DialectPostgres {
		return postgres.Open(cfg.DSN)
	}
	return sqlite.Open(cfg.DSN)
}
