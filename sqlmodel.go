// Package sqlmodel turns operations on typed models into parameterized SQL
// statements and executes them through a pluggable gateway.
//
// Models are plain structs registered with a Store. Field tags map fields to
// columns:
//
//	type Todo struct {
//	    ID    int64  `sqlmodel:"column:id,key"`
//	    Title string
//	    Done  bool
//	}
//
//	func (Todo) TableName() string { return "todo" }
//
// gorm tags (column:, primaryKey, autoIncrement, -) are honoured as well, and
// models already described for gorm can be registered with RegisterGorm.
//
// # Statements
//
// Update, Insert, Select and Delete return builders. Predicates passed to
// Where are composed into a ClauseGroup; every bound value is emitted as a
// "(?)" placeholder and the parameter list always follows placeholder order:
//
//	res, err := store.Update(&Todo{ID: 7, Title: "buy milk"}).
//	    Where(sqlmodel.Eq("done", false)).
//	    Exec(ctx)
//	// UPDATE todo SET title = (?), done = (?) WHERE id = (?) AND (done = (?))
//
// # Row identity
//
// UPDATE, DELETE and Select.ByIdentity pin the statement to the model's row.
// A model that reports a row id (RowIdentifier, or a field tagged
// sqlmodel:"rowid") is matched by "rowid = (?)" alone; otherwise every
// primary key column is matched in declared order. Statements with no
// identity and no Where are rejected unless AllowUnconditional is set.
//
// # Partial updates
//
// With Partial, a model implementing Projector (or the Project option) limits
// the SET list to the projected columns plus every column holding a non-zero
// value.
package sqlmodel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/nlstn/go-sqlmodel/internal/gateway"
	"github.com/nlstn/go-sqlmodel/internal/metadata"
	"github.com/nlstn/go-sqlmodel/internal/observability"
	"github.com/nlstn/go-sqlmodel/internal/query"
)

// Store holds registered model metadata and the gateway statements run on.
// Registration is expected at startup; building and executing statements is
// safe for concurrent use.
type Store struct {
	// registry holds model metadata keyed by Go type
	registry *metadata.Registry
	// gateway executes statements without instrumentation
	gateway query.Executor
	// exec is the gateway, possibly wrapped by observability
	exec query.Executor
	// gormDB is set when the store executes through gorm
	gormDB *gorm.DB
	// dialect identifies the database type (e.g., "postgres", "mysql", "sqlite3")
	dialect string
	// logger is used for structured logging throughout the store
	logger *slog.Logger
	// observability holds the observability configuration (tracing, metrics)
	observability *observability.Config
	// maxInClauseSize limits the number of values in an IN clause
	maxInClauseSize    int
	allowUnconditional bool

	closeOnce sync.Once
	closers   []func() error
}

// NewStore creates a store that executes statements with exec.
func NewStore(exec Executor, cfg Config) (*Store, error) {
	if exec == nil {
		return nil, fmt.Errorf("sqlmodel: executor is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newStoreInternal(exec, cfg), nil
}

// NewStoreWithDB creates a store executing through database/sql. The store
// does not take ownership of db.
func NewStoreWithDB(db *sql.DB, cfg Config) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlmodel: database handle is required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gw := gateway.NewSQLGateway(db,
		gateway.WithDialect(cfg.Dialect),
		gateway.WithStatementCache(cfg.StatementCacheSize, cfg.StatementCacheTTL),
	)
	s := newStoreInternal(gw, cfg)
	s.closers = append(s.closers, gw.Close)
	return s, nil
}

// NewStoreWithGorm creates a store executing through gorm. RegisterGorm uses
// the handle's naming strategy. The store does not take ownership of db.
func NewStoreWithGorm(db *gorm.DB, cfg Config) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlmodel: database handle is required")
	}
	cfg.Engine = EngineGorm
	if cfg.Dialect == "" && db.Dialector != nil {
		cfg.Dialect = db.Dialector.Name()
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := newStoreInternal(gateway.NewGormGateway(db, nil), cfg)
	s.gormDB = db
	return s, nil
}

func newStoreInternal(exec query.Executor, cfg Config) *Store {
	s := &Store{
		registry:           metadata.NewRegistry(),
		gateway:            exec,
		exec:               exec,
		dialect:            cfg.Dialect,
		logger:             slog.Default(),
		maxInClauseSize:    cfg.MaxInClauseSize,
		allowUnconditional: cfg.AllowUnconditional,
	}
	s.setGatewayLogger(s.logger)
	return s
}

// SetLogger sets a custom logger for the store, its gateway and any
// instrumentation installed by SetObservability.
// If logger is nil, slog.Default() is used.
func (s *Store) SetLogger(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
	s.setGatewayLogger(logger)
	if s.observability != nil {
		s.observability.SetLogger(logger)
	}
	return nil
}

func (s *Store) setGatewayLogger(logger *slog.Logger) {
	if l, ok := s.gateway.(interface{ SetLogger(*slog.Logger) }); ok {
		l.SetLogger(logger)
	}
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Dialect returns the configured dialect.
func (s *Store) Dialect() string {
	return s.dialect
}

// Register analyzes entity's struct tags and registers its metadata.
func (s *Store) Register(entity interface{}) error {
	meta, err := s.registry.Register(entity)
	if err != nil {
		return err
	}
	s.logRegistered(meta)
	return nil
}

// RegisterGorm registers entity from gorm's schema parser. On a gorm-backed
// store the handle's naming strategy is used.
func (s *Store) RegisterGorm(entity interface{}) error {
	var namer schema.Namer
	if s.gormDB != nil && s.gormDB.Config != nil {
		namer = s.gormDB.NamingStrategy
	}
	meta, err := metadata.AnalyzeGormSchema(entity, namer)
	if err != nil {
		return err
	}
	return s.RegisterMetadata(meta)
}

// RegisterMetadata registers metadata built elsewhere, such as with Declare.
func (s *Store) RegisterMetadata(meta *EntityMetadata) error {
	if err := s.registry.RegisterMetadata(meta); err != nil {
		return err
	}
	s.logRegistered(meta)
	return nil
}

func (s *Store) logRegistered(meta *EntityMetadata) {
	s.logger.Debug("Registered entity",
		"entity", meta.EntityName,
		"table", meta.TableName,
		"columns", len(meta.Columns),
		"keys", len(meta.KeyColumns))
}

// Lookup returns the metadata registered for model's type.
func (s *Store) Lookup(model any) (*EntityMetadata, error) {
	return s.registry.Lookup(model)
}

// Entities returns every registered entity ordered by name.
func (s *Store) Entities() []*EntityMetadata {
	return s.registry.Entities()
}

func (s *Store) options(opts []Option) []Option {
	base := []Option{
		query.WithExecutor(s.exec),
		query.MaxInClauseSize(s.maxInClauseSize),
		query.Dialect(s.dialect),
	}
	if s.allowUnconditional {
		base = append(base, query.AllowUnconditional())
	}
	return append(base, opts...)
}

// Update returns an UPDATE builder for model.
func (s *Store) Update(model any, opts ...Option) *UpdateBuilder {
	return query.NewUpdate(s.registry, model, s.options(opts)...)
}

// Insert returns an INSERT builder for model.
func (s *Store) Insert(model any, opts ...Option) *InsertBuilder {
	return query.NewInsert(s.registry, model, s.options(opts)...)
}

// Select returns a SELECT builder over model's table.
func (s *Store) Select(model any, opts ...Option) *SelectBuilder {
	return query.NewSelect(s.registry, model, s.options(opts)...)
}

// Delete returns a DELETE builder for model.
func (s *Store) Delete(model any, opts ...Option) *DeleteBuilder {
	return query.NewDelete(s.registry, model, s.options(opts)...)
}

// Exec runs an already built statement.
func (s *Store) Exec(ctx context.Context, q DbQuery) (*Result, error) {
	return s.exec.Query(ctx, q)
}

// Go runs an already built statement asynchronously. The channel yields
// exactly one Outcome and is then closed.
func (s *Store) Go(ctx context.Context, q DbQuery) <-chan Outcome {
	return query.Go(ctx, s.exec, q)
}

// ObservabilityConfig configures observability features (tracing, metrics) for the store.
// All providers are optional; when nil, the corresponding feature is a no-op.
type ObservabilityConfig struct {
	// TracerProvider provides the OpenTelemetry tracer. One span is created per statement.
	TracerProvider trace.TracerProvider

	// MeterProvider provides the OpenTelemetry meter for statement counts and durations.
	MeterProvider metric.MeterProvider

	// ServiceName identifies this service in telemetry data.
	// Defaults to "sqlmodel" if not specified.
	ServiceName string

	// ServiceVersion is reported in telemetry attributes.
	ServiceVersion string

	// EnableServerTiming adds a "db" Server-Timing metric per statement when
	// the context carries a header created by the go-server-timing middleware.
	EnableServerTiming bool
}

// SetObservability wraps the gateway with OpenTelemetry tracing and metrics.
// Calling it again replaces the previous configuration.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(...)
//	store.SetObservability(sqlmodel.ObservabilityConfig{
//	    TracerProvider: tp,
//	    ServiceName:    "orders",
//	})
func (s *Store) SetObservability(cfg ObservabilityConfig) error {
	opts := []observability.Option{}

	if cfg.TracerProvider != nil {
		opts = append(opts, observability.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, observability.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, observability.WithServiceVersion(cfg.ServiceVersion))
	}
	if s.logger != nil {
		opts = append(opts, observability.WithLogger(s.logger))
	}
	if cfg.EnableServerTiming {
		opts = append(opts, observability.WithServerTiming())
	}

	obsCfg := observability.NewConfig(opts...)
	if err := obsCfg.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	exec, err := observability.Instrument(s.gateway, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to instrument gateway: %w", err)
	}

	s.observability = obsCfg
	s.exec = exec

	s.logger.Info("Observability configured",
		"tracing_enabled", cfg.TracerProvider != nil,
		"metrics_enabled", cfg.MeterProvider != nil,
		"server_timing_enabled", cfg.EnableServerTiming,
		"service_name", obsCfg.ServiceName(),
	)
	return nil
}

// Observability returns the current observability configuration.
// Returns nil if observability is not configured.
func (s *Store) Observability() *observability.Config {
	return s.observability
}

// Close releases resources held by the store: cached statements and, for
// stores created by Open, the connection pool. It is safe to call multiple
// times; subsequent calls have no effect.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	s.closeOnce.Do(func() {
		for i := len(s.closers) - 1; i >= 0; i-- {
			if err := s.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
