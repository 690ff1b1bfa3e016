package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Open connects with the named driver: DriverPostgres through the pgx pool,
// or DriverSQLite for local runs.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
		return Connect(dsn)
	case DriverSQLite:
		return OpenSQLite(dsn)
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

// Close releases the connection and, for postgres, the pool under it.
func Close(conn *sqlx.DB) {
	conn.Close()
	if conn.DriverName() == DriverPostgres {
		ClosePool()
	}
}
