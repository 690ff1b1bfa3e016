package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/uno-services/internal/gamesvc/db"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDeckExhausted = errors.New("not enough cards in deck")
	ErrDuplicate     = errors.New("record already exists")
)

// Store bundles the per-table stores. A Store handed to a Tx callback runs
// every query on that transaction.
type Store struct {
	db *sqlx.DB

	Games        *GameStore
	Participants *ParticipantStore
	Cards        *CardStore
	Moves        *MoveStore
}

func New(conn *sqlx.DB) *Store {
	s := bind(conn)
	s.db = conn
	return s
}

func bind(q sqlx.ExtContext) *Store {
	return &Store{
		Games:        NewGameStore(q),
		Participants: NewParticipantStore(q),
		Cards:        NewCardStore(q),
		Moves:        NewMoveStore(q),
	}
}

// Tx runs fn in a single transaction. Returning an error from fn rolls back
// everything fn did.
func (s *Store) Tx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return errors.New("nested transaction")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// forUpdate returns the row lock clause for drivers that support it. sqlite
// serializes writers on its own. With aliases only those tables' rows are
// locked; joined catalog rows are shared by every game and must stay free.
func forUpdate(q sqlx.ExtContext, aliases ...string) string {
	if q.DriverName() != db.DriverPostgres {
		return ""
	}
	if len(aliases) == 0 {
		return " FOR UPDATE"
	}
	return " FOR UPDATE OF " + strings.Join(aliases, ", ")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
