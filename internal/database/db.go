package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/config"
)

// Pool is the subset of pgxpool.Pool used by the repositories. It is
// satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresDB wraps a pgx connection pool
type PostgresDB struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPostgresDB connects to PostgreSQL. A failed ping is logged, not
// returned, so the gateway can start before the database is reachable.
func NewPostgresDB(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (*PostgresDB, error) {
	if log == nil {
		log = logrus.New()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		log.WithError(err).Warn("Database connection test failed")
	}

	log.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Name,
	}).Info("Connected to PostgreSQL database")

	return &PostgresDB{pool: pool, log: log}, nil
}

// Pool returns the underlying pgx pool.
func (p *PostgresDB) Pool() *pgxpool.Pool {
	return p.pool
}

// HealthCheck performs a health check on the database.
func (p *PostgresDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.pool.Ping(ctx)
}

func (p *PostgresDB) Close() {
	p.pool.Close()
}

// RunMigration executes database migrations in order.
func RunMigration(ctx context.Context, pool Pool, migrations []string, log *logrus.Logger) error {
	if log == nil {
		log = logrus.New()
	}

	for i, migration := range migrations {
		log.WithField("migration", i).Debug("Running migration")
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i, err)
		}
	}

	log.WithField("count", len(migrations)).Info("All migrations completed successfully")
	return nil
}

// Migrations for the prompt gateway
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		deleted_at TIMESTAMP WITH TIME ZONE
	)`,

	`CREATE TABLE IF NOT EXISTS prompt_configs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		model_vendor VARCHAR(50) NOT NULL,
		model_type VARCHAR(100) NOT NULL,
		model_parameters JSONB NOT NULL DEFAULT '{}',
		provider_prompt_messages JSONB NOT NULL DEFAULT '[]',
		expected_template_variables TEXT[] NOT NULL DEFAULT '{}',
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		deleted_at TIMESTAMP WITH TIME ZONE
	)`,

	`CREATE TABLE IF NOT EXISTS prompt_request_records (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		application_id UUID NOT NULL,
		prompt_config_id UUID REFERENCES prompt_configs(id) ON DELETE SET NULL,
		model_vendor VARCHAR(50) NOT NULL DEFAULT '',
		model_type VARCHAR(100) NOT NULL DEFAULT '',
		is_stream_response BOOLEAN NOT NULL DEFAULT FALSE,
		request_tokens INTEGER NOT NULL DEFAULT 0,
		response_tokens INTEGER NOT NULL DEFAULT 0,
		request_tokens_cost NUMERIC(20, 10) NOT NULL DEFAULT 0,
		response_tokens_cost NUMERIC(20, 10) NOT NULL DEFAULT 0,
		start_time TIMESTAMP WITH TIME ZONE NOT NULL,
		finish_time TIMESTAMP WITH TIME ZONE NOT NULL,
		stream_response_latency_ms BIGINT,
		error_log TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		expires_at TIMESTAMP WITH TIME ZONE
	)`,

	`ALTER TABLE prompt_request_records
		ADD COLUMN IF NOT EXISTS request_tokens_cost NUMERIC(20, 10) NOT NULL DEFAULT 0,
		ADD COLUMN IF NOT EXISTS response_tokens_cost NUMERIC(20, 10) NOT NULL DEFAULT 0`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_prompt_configs_default
		ON prompt_configs(application_id) WHERE is_default AND deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_configs_application_id ON prompt_configs(application_id)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_request_records_application_id ON prompt_request_records(application_id)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_request_records_expires_at ON prompt_request_records(expires_at)`,
}
