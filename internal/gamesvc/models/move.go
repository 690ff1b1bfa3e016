package models

import "time"

// Move is an immutable entry of the move log.
type Move struct {
	ID          int64     `json:"id" db:"id"`
	GameID      int64     `json:"game_id" db:"game_id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	PlayType    string    `json:"play_type" db:"play_type"` // 'play', 'draw', 'skip', 'reverse'
	CardID      *int64    `json:"card_id,omitempty" db:"card_id"`
	DrawAmount  *int      `json:"draw_amount,omitempty" db:"draw_amount"`
	ChosenColor *string   `json:"chosen_color,omitempty" db:"chosen_color"`
	Reverse     bool      `json:"reverse" db:"reverse"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Owed reports the number of cards this move forces onto the next player.
func (m *Move) Owed() int {
	if m == nil || m.CardID == nil || m.DrawAmount == nil {
		return 0
	}
	return *m.DrawAmount
}
