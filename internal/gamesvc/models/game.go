package models

import (
	"time"
)

// game states
const (
	StateLobby      = "lobby"
	StateInProgress = "in_progress"
	StateEnded      = "ended"
)

const (
	MinCapacity = 2
	MaxCapacity = 10
)

type Game struct {
	ID           int64     `json:"id" db:"id"`                     // Primary key
	HostID       int64     `json:"host_id" db:"host_id"`           // participant holding the host role
	Name         string    `json:"name" db:"name"`                 // display name
	Capacity     int       `json:"capacity" db:"capacity"`         // 2..10 seats
	State        string    `json:"state" db:"state"`               // 'lobby', 'in_progress', 'ended'
	IsPrivate    bool      `json:"is_private" db:"is_private"`     // joining requires the password
	PasswordHash *string   `json:"-" db:"password_hash"`           // bcrypt hash, private games only
	CurrentTurn  int       `json:"current_turn" db:"current_turn"` // legacy counter, never read by the turn resolver
	WinnerID     *int64    `json:"winner_id,omitempty" db:"winner_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// GameSummary is a game row with its participant count, used for listings.
type GameSummary struct {
	Game
	PlayerCount int `json:"player_count" db:"player_count"`
}
