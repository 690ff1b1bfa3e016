package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/jmoiron/sqlx"
)

const gameColumns = `g.id, g.host_id, g.name, g.capacity, g.state, g.is_private, g.password_hash,
	g.current_turn, g.winner_id, g.created_at, g.updated_at`

const gameSummaryColumns = gameColumns + `,
	(SELECT COUNT(*) FROM game_participants p WHERE p.game_id = g.id) AS player_count`

type GameStore struct {
	db sqlx.ExtContext
}

func NewGameStore(db sqlx.ExtContext) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) Create(ctx context.Context, g *models.Game) (int64, error) {
	now := time.Now().UTC()
	query := s.db.Rebind(`
		INSERT INTO games (host_id, name, capacity, state, is_private, password_hash, current_turn, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		RETURNING id
	`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		g.HostID, g.Name, g.Capacity, models.StateLobby, g.IsPrivate, g.PasswordHash, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create game: %w", err)
	}

	g.ID = id
	g.State = models.StateLobby
	g.CreatedAt = now
	g.UpdatedAt = now
	return id, nil
}

func (s *GameStore) GetGameByID(ctx context.Context, gameID int64) (*models.Game, error) {
	return s.get(ctx, gameID, "")
}

// Lock reads the game row and, on Postgres, holds a row lock on it until the
// surrounding transaction ends. Every mutating engine operation starts here
// so concurrent requests for one game serialize in the database.
func (s *GameStore) Lock(ctx context.Context, gameID int64) (*models.Game, error) {
	return s.get(ctx, gameID, forUpdate(s.db))
}

func (s *GameStore) get(ctx context.Context, gameID int64, suffix string) (*models.Game, error) {
	query := s.db.Rebind(`SELECT ` + gameColumns + ` FROM games g WHERE g.id = ?` + suffix)

	game := &models.Game{}
	if err := sqlx.GetContext(ctx, s.db, game, query, gameID); err != nil {
		return nil, notFound(err)
	}
	return game, nil
}

// List returns games in the given state, newest first.
func (s *GameStore) List(ctx context.Context, state string, limit int) ([]models.GameSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.Rebind(`
		SELECT ` + gameSummaryColumns + `
		FROM games g
		WHERE g.state = ?
		ORDER BY g.created_at DESC, g.id DESC
		LIMIT ?
	`)

	games := []models.GameSummary{}
	if err := sqlx.SelectContext(ctx, s.db, &games, query, state, limit); err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return games, nil
}

// ListForUser returns the games the user is a participant of.
func (s *GameStore) ListForUser(ctx context.Context, userID int64) ([]models.GameSummary, error) {
	query := s.db.Rebind(`
		SELECT ` + gameSummaryColumns + `
		FROM games g
		JOIN game_participants me ON me.game_id = g.id
		WHERE me.user_id = ?
		ORDER BY g.created_at DESC, g.id DESC
	`)

	games := []models.GameSummary{}
	if err := sqlx.SelectContext(ctx, s.db, &games, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list games for user %d: %w", userID, err)
	}
	return games, nil
}

// Transition moves the game from one state to another and reports whether
// the row was actually in the expected state.
func (s *GameStore) Transition(ctx context.Context, gameID int64, from, to string) (bool, error) {
	query := s.db.Rebind(`UPDATE games SET state = ?, updated_at = ? WHERE id = ? AND state = ?`)
	res, err := s.db.ExecContext(ctx, query, to, time.Now().UTC(), gameID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update game %d state: %w", gameID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *GameStore) SetWinner(ctx context.Context, gameID, winnerID int64) error {
	query := s.db.Rebind(`UPDATE games SET winner_id = ?, updated_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, winnerID, time.Now().UTC(), gameID); err != nil {
		return fmt.Errorf("failed to set winner of game %d: %w", gameID, err)
	}
	return nil
}

func (s *GameStore) UpdateHost(ctx context.Context, gameID, hostID int64) error {
	query := s.db.Rebind(`UPDATE games SET host_id = ?, updated_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, hostID, time.Now().UTC(), gameID); err != nil {
		return fmt.Errorf("failed to update host of game %d: %w", gameID, err)
	}
	return nil
}

// Delete removes the game with its moves, cards and participants.
func (s *GameStore) Delete(ctx context.Context, gameID int64) (bool, error) {
	for _, table := range []string{"moves", "cards", "game_participants"} {
		query := s.db.Rebind(`DELETE FROM ` + table + ` WHERE game_id = ?`)
		if _, err := s.db.ExecContext(ctx, query, gameID); err != nil {
			return false, fmt.Errorf("failed to delete %s of game %d: %w", table, gameID, err)
		}
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM games WHERE id = ?`), gameID)
	if err != nil {
		return false, fmt.Errorf("failed to delete game %d: %w", gameID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListEndedBefore returns ids of games that ended before cutoff.
func (s *GameStore) ListEndedBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := s.db.Rebind(`SELECT id FROM games WHERE state = ? AND updated_at < ? ORDER BY id`)

	ids := []int64{}
	if err := sqlx.SelectContext(ctx, s.db, &ids, query, models.StateEnded, cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("failed to list ended games: %w", err)
	}
	return ids, nil
}
