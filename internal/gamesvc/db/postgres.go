package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// DriverPostgres is the database/sql driver name registered by pgx stdlib.
const DriverPostgres = "pgx"

var pool *pgxpool.Pool

// Connect initializes the pgx connection pool and exposes it through sqlx so
// the stores can share their queries with the sqlite backend.
func Connect(dsn string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	// Try pinging to make sure it's valid
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	pool = p

	conn := sqlx.NewDb(stdlib.OpenDBFromPool(p), DriverPostgres)
	if err := EnsureSchema(ctx, conn); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return conn, nil
}

// ClosePool is for graceful shutdown
func ClosePool() {
	if pool != nil {
		pool.Close()
	}
}
