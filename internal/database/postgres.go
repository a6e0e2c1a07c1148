package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stwalsh4118/parcelbrief/internal/config"
)

// applicationName is reported to PostgreSQL in pg_stat_activity.
const applicationName = "parcelbrief"

// schema creates the analysis history table. Statements are idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS parcel_analyses (
		id           UUID PRIMARY KEY,
		address      TEXT NOT NULL,
		pnu          CHAR(19) NOT NULL,
		location     GEOMETRY(Point, 4326),
		boundary     GEOMETRY(MultiPolygon, 4326),
		facts        JSONB NOT NULL,
		report       JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS parcel_analyses_pnu_idx ON parcel_analyses (pnu)`,
	`CREATE INDEX IF NOT EXISTS parcel_analyses_location_idx ON parcel_analyses USING GIST (location)`,
	`CREATE INDEX IF NOT EXISTS parcel_analyses_boundary_idx ON parcel_analyses USING GIST (boundary)`,
}

// Database wraps the pgx connection pool backing the analysis history.
type Database struct {
	Pool *pgxpool.Pool
}

// NewPostgresPool opens a pgx pool sized from cfg and pings it before returning.
func NewPostgresPool(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MinConns = int32(cfg.PoolMin)
	poolConfig.MaxConns = int32(cfg.PoolMax)

	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{Pool: pool}, nil
}

// connectionString builds a postgres URL, escaping credentials.
func connectionString(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + cfg.Port,
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	q.Set("application_name", applicationName)
	u.RawQuery = q.Encode()
	return u.String()
}

// EnsureSchema creates the PostGIS extension, the parcel_analyses table and its indexes.
func (db *Database) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Ping checks if the database connection is alive.
func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close closes the pool. Safe to call more than once.
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Stats returns pool statistics, or nil when the pool is absent.
func (db *Database) Stats() *pgxpool.Stat {
	if db.Pool == nil {
		return nil
	}
	return db.Pool.Stat()
}
