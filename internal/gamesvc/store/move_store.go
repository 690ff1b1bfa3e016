package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/jmoiron/sqlx"
)

const moveColumns = `id, game_id, user_id, play_type, card_id, draw_amount, chosen_color, reverse, created_at`

// MoveStore is the append-only move log. It never validates what it records.
type MoveStore struct {
	db sqlx.ExtContext
}

func NewMoveStore(db sqlx.ExtContext) *MoveStore {
	return &MoveStore{db: db}
}

func (s *MoveStore) Record(ctx context.Context, m *models.Move) error {
	m.CreatedAt = time.Now().UTC()
	query := s.db.Rebind(`
		INSERT INTO moves (game_id, user_id, play_type, card_id, draw_amount, chosen_color, reverse, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := s.db.QueryRowxContext(ctx, query,
		m.GameID, m.UserID, m.PlayType, m.CardID, m.DrawAmount, m.ChosenColor, m.Reverse, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to record move: %w", err)
	}
	return nil
}

func (s *MoveStore) Count(ctx context.Context, gameID int64) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM moves WHERE game_id = ?`)
	if err := sqlx.GetContext(ctx, s.db, &n, query, gameID); err != nil {
		return 0, fmt.Errorf("failed to count moves: %w", err)
	}
	return n, nil
}

// ReverseCount is the number of moves flagged reverse; its parity is the
// play direction.
func (s *MoveStore) ReverseCount(ctx context.Context, gameID int64) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM moves WHERE game_id = ? AND reverse`)
	if err := sqlx.GetContext(ctx, s.db, &n, query, gameID); err != nil {
		return 0, fmt.Errorf("failed to count reverses: %w", err)
	}
	return n, nil
}

// Last returns the most recent move, or nil before the first one.
func (s *MoveStore) Last(ctx context.Context, gameID int64) (*models.Move, error) {
	query := s.db.Rebind(`SELECT ` + moveColumns + ` FROM moves WHERE game_id = ? ORDER BY id DESC LIMIT 1`)

	m := &models.Move{}
	if err := sqlx.GetContext(ctx, s.db, m, query, gameID); err != nil {
		if notFound(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last move: %w", err)
	}
	return m, nil
}

func (s *MoveStore) All(ctx context.Context, gameID int64) ([]models.Move, error) {
	query := s.db.Rebind(`SELECT ` + moveColumns + ` FROM moves WHERE game_id = ? ORDER BY id`)

	moves := []models.Move{}
	if err := sqlx.SelectContext(ctx, s.db, &moves, query, gameID); err != nil {
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}
	return moves, nil
}

// ChosenColor returns the colour named when cardID was played, or "".
func (s *MoveStore) ChosenColor(ctx context.Context, gameID, cardID int64) (string, error) {
	query := s.db.Rebind(`
		SELECT chosen_color FROM moves
		WHERE game_id = ? AND card_id = ? AND chosen_color IS NOT NULL
		ORDER BY id DESC LIMIT 1
	`)

	var color string
	if err := sqlx.GetContext(ctx, s.db, &color, query, gameID, cardID); err != nil {
		if notFound(err) == ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get chosen color: %w", err)
	}
	return color, nil
}
