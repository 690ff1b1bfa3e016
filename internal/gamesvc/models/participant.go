package models

import "time"

type Participant struct {
	ID           int64     `json:"id" db:"id"`                     // Primary key
	GameID       int64     `json:"game_id" db:"game_id"`           // FK to games(id)
	UserID       int64     `json:"user_id" db:"user_id"`           // unique together with game_id
	PlayerOrder  int       `json:"player_order" db:"player_order"` // seat, 1..capacity
	IsReady      bool      `json:"is_ready" db:"is_ready"`
	IsWinner     bool      `json:"is_winner" db:"is_winner"`
	Disconnected bool      `json:"disconnected" db:"disconnected"` // soft-left, pending hard removal
	JoinedAt     time.Time `json:"joined_at" db:"joined_at"`
}
