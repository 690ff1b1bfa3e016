package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const DriverSQLite = "sqlite3"

// OpenSQLite opens a single-connection sqlite database. One connection keeps
// writers serialized and makes ":memory:" databases usable from every caller.
func OpenSQLite(path string) (*sqlx.DB, error) {
	conn, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := EnsureSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return conn, nil
}
