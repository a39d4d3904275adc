// Package database provides the PostgreSQL connection pool and migration
// runner shared by the API server and the parse worker. The teacher wraps
// an ent.Client over a pgx driver; since ent's generated code isn't
// available here, this wraps the pool directly and pkg/services issues SQL.
package database

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql, used by golang-migrate
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds connection pool tuning. DATABASE_URL carries host/user/db
// selection; these are the knobs the teacher's config.go exposed
// separately for MaxOpenConns/MaxIdleConns/lifetimes.
type Config struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig mirrors the teacher's production defaults (25 max open /
// 10 max idle / 1h lifetime / 15m idle time), translated to pgxpool's
// MaxConns/MinConns knobs.
func DefaultConfig() Config {
	return Config{
		MaxConns:        25,
		MinConns:        10,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 15 * time.Minute,
	}
}

// Client wraps the pgx connection pool used by every service in pkg/services.
type Client struct {
	Pool *pgxpool.Pool
}

// NewClient parses databaseURL, applies cfg, and opens the pool. It does
// not run migrations; call RunMigrations separately so callers can choose
// when schema changes apply (worker processes should not race the API
// server to migrate on startup).
func NewClient(ctx context.Context, databaseURL string, cfg Config) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: parse url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return &Client{Pool: pool}, nil
}

// Close releases all pooled connections.
func (c *Client) Close() {
	c.Pool.Close()
}

// RunMigrations applies every embedded migration that hasn't run yet.
// Grounded on the teacher's client.go embed-and-migrate pattern, adapted
// to open its own database/sql handle over the pgx stdlib driver since
// golang-migrate doesn't speak pgxpool directly.
func RunMigrations(databaseURL string) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("database: migrations fs: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("database: migrations source: %w", err)
	}

	db, err := stdsql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("database: open for migration: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("database: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("database: migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("database: migrate up: %w", err)
	}
	return nil
}
