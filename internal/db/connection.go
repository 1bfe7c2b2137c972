package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the part of *pgxpool.Pool the store uses.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// DB holds the database connection pool and queries
type DB struct {
	Pool    Pool
	Queries *Queries
}

// NewDB connects to databaseURL and makes sure the schema exists
func NewDB(ctx context.Context, databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	database := NewWithPool(pool)
	if err := database.Queries.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return database, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool Pool) *DB {
	return &DB{
		Pool:    pool,
		Queries: New(pool),
	}
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}
