package models

// card locations
const (
	OwnerNeutral     int64 = 0  // draw pile or discard pile
	LocationDiscard        = -1 // on the discard pile
)

// Card is one physical card of a game. Location > 0 is its position in the
// draw pile, -1 marks the discard pile.
type Card struct {
	ID         int64  `json:"id" db:"id"`
	GameID     int64  `json:"game_id" db:"game_id"`
	DeckCardID int64  `json:"deck_card_id" db:"deck_card_id"`
	OwnerID    int64  `json:"owner_id" db:"owner_id"`
	Location   int    `json:"location" db:"location"`
	DiscardSeq *int64 `json:"-" db:"discard_seq"`
	Color      string `json:"color" db:"color"`
	Value      string `json:"value" db:"value"`
}

type DeckCard struct {
	ID    int64  `json:"id" db:"id"`
	Color string `json:"color" db:"color"`
	Value string `json:"value" db:"value"`
	Copy  int    `json:"copy" db:"copy"`
}

type HandCount struct {
	UserID    int64 `json:"user_id" db:"owner_id"`
	CardCount int   `json:"card_count" db:"hand_count"`
}
