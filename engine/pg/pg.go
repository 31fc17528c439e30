package pg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func New(databaseUrl string, customizers ...func(*Options)) (engine.Engine, error) {
	if databaseUrl == "" {
		return nil, errors.New("database URL is empty")
	}

	options := NewOptions()
	for _, customizer := range customizers {
		customizer(&options)
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}

	pgPoolConfig, err := pgxpool.ParseConfig(databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if _, ok := pgPoolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		pgPoolConfig.ConnConfig.RuntimeParams["application_name"] = options.Common.EngineId
	}

	if databaseSchema, ok := pgPoolConfig.ConnConfig.RuntimeParams["search_path"]; ok {
		options.databaseSchema = databaseSchema
	}

	pgPoolCtx, pgPoolCancel := context.WithTimeout(context.Background(), options.Timeout)
	defer pgPoolCancel()

	pgPool, err := pgxpool.NewWithConfig(pgPoolCtx, pgPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	store := &pgStore{
		pool:           pgPool,
		isolationLevel: options.IsolationLevel,
		timeout:        options.Timeout,
	}

	lockManager := &lockManager{pool: pgPool}

	if options.MigrationEnabled {
		if err := migrateDatabase(pgPoolCtx, store, lockManager, options); err != nil {
			pgPool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	runtime, err := internal.NewRuntime(internal.RuntimeConfig{
		Options:     options.Common,
		Store:       store,
		LockManager: lockManager,
	})
	if err != nil {
		pgPool.Close()
		return nil, err
	}

	return &pgEngine{Engine: internal.NewEngine(runtime), pool: pgPool}, nil
}

func NewOptions() Options {
	return Options{
		Common: engine.Options{
			EngineId:            engine.DefaultEngineId,
			ExpressionEvaluator: engine.NewExpressionEvaluator(),
			InsertBatchSize:     100,
			LockPollInterval:    100 * time.Millisecond,
			LockWaitTimeout:     5 * time.Second,
			Logger:              engine.NewLogger(io.Discard, "info"),
			RetryEnabled:        true,
			RetryInterval:       10 * time.Millisecond,
			RetryLimit:          3,

			TimerExecutorEnabled:  false,
			TimerExecutorInterval: 60 * time.Second,
			TimerExecutorLimit:    10,
		},

		IsolationLevel:   pgx.Serializable,
		MigrationEnabled: true,
		Timeout:          30 * time.Second,

		databaseSchema: "public",
	}
}

type Options struct {
	Common engine.Options // Common engine options.

	IsolationLevel   pgx.TxIsoLevel // Isolation level of command transactions.
	MigrationEnabled bool           // Determines if the database schema is migrated, when the engine is created.
	Timeout          time.Duration  // Time limit for database transactions, utilized when the command context has no deadline.

	databaseSchema string // derived from database URL - see runtime parameter "search_path"
}

func (o Options) Validate() error {
	if err := o.Common.Validate(); err != nil {
		return err
	}

	switch o.IsolationLevel {
	case pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted:
	default:
		return fmt.Errorf("unsupported isolation level %q", o.IsolationLevel)
	}

	if o.Timeout <= 0 {
		return errors.New("timeout must be greater than 0")
	}
	return nil
}

type pgEngine struct {
	*internal.Engine

	pool *pgxpool.Pool
}

// Migrate migrates the database schema of an engine, which has been created with migration disabled.
func Migrate(ctx context.Context, e engine.Engine) error {
	pgEngine, ok := e.(*pgEngine)
	if !ok {
		return errors.New("engine is not a pg engine")
	}

	runtime := pgEngine.Runtime()
	store := runtime.Store().(*pgStore)
	lockManager := runtime.LockManager().(*lockManager)

	options := Options{Common: runtime.Options(), databaseSchema: "public"}
	if databaseSchema, ok := pgEngine.pool.Config().ConnConfig.RuntimeParams["search_path"]; ok {
		options.databaseSchema = databaseSchema
	}

	return migrateDatabase(ctx, store, lockManager, options)
}
