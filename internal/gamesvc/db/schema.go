package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/avvvet/uno-services/internal/gamesvc/rules"
	"github.com/jmoiron/sqlx"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS deck_cards (
  id BIGSERIAL PRIMARY KEY,
  color VARCHAR(16) NOT NULL,
  value VARCHAR(32) NOT NULL,
  copy INTEGER NOT NULL DEFAULT 1,
  CONSTRAINT unique_deck_card UNIQUE (color, value, copy)
);

CREATE TABLE IF NOT EXISTS games (
  id BIGSERIAL PRIMARY KEY,
  host_id BIGINT NOT NULL,
  name VARCHAR(100) NOT NULL DEFAULT '',
  capacity INTEGER NOT NULL CHECK (capacity BETWEEN 2 AND 10),
  state VARCHAR(16) NOT NULL DEFAULT 'lobby',
  is_private BOOLEAN NOT NULL DEFAULT FALSE,
  password_hash VARCHAR(255),
  current_turn INTEGER NOT NULL DEFAULT 0,
  winner_id BIGINT,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_games_state ON games(state, updated_at);

CREATE TABLE IF NOT EXISTS game_participants (
  id BIGSERIAL PRIMARY KEY,
  game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  player_order INTEGER NOT NULL,
  is_ready BOOLEAN NOT NULL DEFAULT FALSE,
  is_winner BOOLEAN NOT NULL DEFAULT FALSE,
  disconnected BOOLEAN NOT NULL DEFAULT FALSE,
  joined_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT unique_game_user UNIQUE (game_id, user_id)
);

CREATE TABLE IF NOT EXISTS cards (
  id BIGSERIAL PRIMARY KEY,
  game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
  deck_card_id BIGINT NOT NULL REFERENCES deck_cards(id),
  owner_id BIGINT NOT NULL DEFAULT 0,
  location INTEGER NOT NULL,
  discard_seq BIGINT
);
CREATE INDEX IF NOT EXISTS idx_cards_game_owner ON cards(game_id, owner_id, location);

CREATE TABLE IF NOT EXISTS moves (
  id BIGSERIAL PRIMARY KEY,
  game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  play_type VARCHAR(16) NOT NULL CHECK (play_type IN ('play', 'draw', 'skip', 'reverse')),
  card_id BIGINT,
  draw_amount INTEGER,
  chosen_color VARCHAR(16),
  reverse BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moves_game ON moves(game_id, id);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deck_cards (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  color VARCHAR(16) NOT NULL,
  value VARCHAR(32) NOT NULL,
  copy INTEGER NOT NULL DEFAULT 1,
  CONSTRAINT unique_deck_card UNIQUE (color, value, copy)
);

CREATE TABLE IF NOT EXISTS games (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  host_id BIGINT NOT NULL,
  name VARCHAR(100) NOT NULL DEFAULT '',
  capacity INTEGER NOT NULL CHECK (capacity BETWEEN 2 AND 10),
  state VARCHAR(16) NOT NULL DEFAULT 'lobby',
  is_private BOOLEAN NOT NULL DEFAULT FALSE,
  password_hash VARCHAR(255),
  current_turn INTEGER NOT NULL DEFAULT 0,
  winner_id BIGINT,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_games_state ON games(state, updated_at);

CREATE TABLE IF NOT EXISTS game_participants (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  player_order INTEGER NOT NULL,
  is_ready BOOLEAN NOT NULL DEFAULT FALSE,
  is_winner BOOLEAN NOT NULL DEFAULT FALSE,
  disconnected BOOLEAN NOT NULL DEFAULT FALSE,
  joined_at TIMESTAMP NOT NULL,
  CONSTRAINT unique_game_user UNIQUE (game_id, user_id)
);

CREATE TABLE IF NOT EXISTS cards (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
  deck_card_id BIGINT NOT NULL REFERENCES deck_cards(id),
  owner_id BIGINT NOT NULL DEFAULT 0,
  location INTEGER NOT NULL,
  discard_seq BIGINT
);
CREATE INDEX IF NOT EXISTS idx_cards_game_owner ON cards(game_id, owner_id, location);

CREATE TABLE IF NOT EXISTS moves (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  play_type VARCHAR(16) NOT NULL CHECK (play_type IN ('play', 'draw', 'skip', 'reverse')),
  card_id BIGINT,
  draw_amount INTEGER,
  chosen_color VARCHAR(16),
  reverse BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moves_game ON moves(game_id, id);
`

// EnsureSchema creates missing tables for the connection's dialect and seeds
// the deck-card catalog once.
func EnsureSchema(ctx context.Context, conn *sqlx.DB) error {
	schema := postgresSchema
	if conn.DriverName() == DriverSQLite {
		schema = sqliteSchema
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return seedDeckCards(ctx, conn)
}

func seedDeckCards(ctx context.Context, conn *sqlx.DB) error {
	var count int
	if err := conn.GetContext(ctx, &count, `SELECT COUNT(*) FROM deck_cards`); err != nil {
		return fmt.Errorf("count deck cards: %w", err)
	}
	if count > 0 {
		return nil
	}

	faces := rules.Catalog()
	values := make([]string, 0, len(faces))
	args := make([]interface{}, 0, len(faces)*3)
	for _, f := range faces {
		values = append(values, "(?, ?, ?)")
		args = append(args, f.Color, f.Value, f.Copy)
	}

	query := conn.Rebind(`INSERT INTO deck_cards (color, value, copy) VALUES ` +
		strings.Join(values, ", ") + ` ON CONFLICT DO NOTHING`)
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("seed deck cards: %w", err)
	}
	return nil
}
