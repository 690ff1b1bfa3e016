package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/jmoiron/sqlx"
)

const participantColumns = `p.id, p.game_id, p.user_id, p.player_order, p.is_ready, p.is_winner, p.disconnected, p.joined_at`

type ParticipantStore struct {
	db sqlx.ExtContext
}

func NewParticipantStore(db sqlx.ExtContext) *ParticipantStore {
	return &ParticipantStore{db: db}
}

// Add inserts a participant. It fails with ErrDuplicate when the user is
// already part of the game (unique_game_user constraint).
func (s *ParticipantStore) Add(ctx context.Context, p *models.Participant) error {
	if p.GameID <= 0 {
		return fmt.Errorf("invalid game ID: %d", p.GameID)
	}
	if p.UserID <= 0 {
		return fmt.Errorf("invalid user ID: %d", p.UserID)
	}

	p.JoinedAt = time.Now().UTC()
	query := s.db.Rebind(`
		INSERT INTO game_participants (game_id, user_id, player_order, is_ready, is_winner, disconnected, joined_at)
		VALUES (?, ?, ?, ?, FALSE, FALSE, ?)
		RETURNING id
	`)
	err := s.db.QueryRowxContext(ctx, query, p.GameID, p.UserID, p.PlayerOrder, p.IsReady, p.JoinedAt).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %d has already joined game %d: %w", p.UserID, p.GameID, ErrDuplicate)
		}
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

func (s *ParticipantStore) Get(ctx context.Context, gameID, userID int64) (*models.Participant, error) {
	query := s.db.Rebind(`SELECT ` + participantColumns + ` FROM game_participants p WHERE p.game_id = ? AND p.user_id = ?`)

	p := &models.Participant{}
	if err := sqlx.GetContext(ctx, s.db, p, query, gameID, userID); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// List returns the roster ordered by seat.
func (s *ParticipantStore) List(ctx context.Context, gameID int64) ([]models.Participant, error) {
	return s.list(ctx, gameID, false)
}

// ListConnected returns the participants not flagged disconnected, by seat.
func (s *ParticipantStore) ListConnected(ctx context.Context, gameID int64) ([]models.Participant, error) {
	return s.list(ctx, gameID, true)
}

func (s *ParticipantStore) list(ctx context.Context, gameID int64, connectedOnly bool) ([]models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM game_participants p WHERE p.game_id = ?`
	if connectedOnly {
		query += ` AND NOT p.disconnected`
	}
	query = s.db.Rebind(query + ` ORDER BY p.player_order, p.id`)

	players := []models.Participant{}
	if err := sqlx.SelectContext(ctx, s.db, &players, query, gameID); err != nil {
		return nil, fmt.Errorf("failed to list participants of game %d: %w", gameID, err)
	}
	return players, nil
}

// ListDisconnected returns every soft-left participant of games that have
// not ended.
func (s *ParticipantStore) ListDisconnected(ctx context.Context) ([]models.Participant, error) {
	query := s.db.Rebind(`
		SELECT ` + participantColumns + `
		FROM game_participants p
		JOIN games g ON g.id = p.game_id
		WHERE p.disconnected AND g.state <> ?
		ORDER BY p.game_id, p.player_order
	`)

	players := []models.Participant{}
	if err := sqlx.SelectContext(ctx, s.db, &players, query, models.StateEnded); err != nil {
		return nil, fmt.Errorf("failed to list disconnected participants: %w", err)
	}
	return players, nil
}

func (s *ParticipantStore) Count(ctx context.Context, gameID int64) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM game_participants WHERE game_id = ?`)
	if err := sqlx.GetContext(ctx, s.db, &n, query, gameID); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return n, nil
}

// Remove hard-deletes the participant row.
func (s *ParticipantStore) Remove(ctx context.Context, gameID, userID int64) (bool, error) {
	query := s.db.Rebind(`DELETE FROM game_participants WHERE game_id = ? AND user_id = ?`)
	return s.exec(ctx, query, gameID, userID)
}

func (s *ParticipantStore) SetDisconnected(ctx context.Context, gameID, userID int64, disconnected bool) (bool, error) {
	query := s.db.Rebind(`UPDATE game_participants SET disconnected = ? WHERE game_id = ? AND user_id = ?`)
	return s.exec(ctx, query, disconnected, gameID, userID)
}

// ToggleReady flips the ready flag and returns its new value.
func (s *ParticipantStore) ToggleReady(ctx context.Context, gameID, userID int64) (bool, error) {
	query := s.db.Rebind(`UPDATE game_participants SET is_ready = NOT is_ready WHERE game_id = ? AND user_id = ?`)
	ok, err := s.exec(ctx, query, gameID, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotFound
	}

	p, err := s.Get(ctx, gameID, userID)
	if err != nil {
		return false, err
	}
	return p.IsReady, nil
}

func (s *ParticipantStore) SetOrder(ctx context.Context, gameID, userID int64, order int) error {
	query := s.db.Rebind(`UPDATE game_participants SET player_order = ? WHERE game_id = ? AND user_id = ?`)
	ok, err := s.exec(ctx, query, order, gameID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *ParticipantStore) SetWinner(ctx context.Context, gameID, userID int64) error {
	query := s.db.Rebind(`UPDATE game_participants SET is_winner = TRUE WHERE game_id = ? AND user_id = ?`)
	_, err := s.exec(ctx, query, gameID, userID)
	return err
}

func (s *ParticipantStore) exec(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
