// Package turn derives whose turn it is from the move log. Nothing here is
// stored: the result is recomputed from the roster and move counts on every
// call, so it can never drift from the log.
package turn

import (
	"errors"
	"sort"
)

var ErrNoPlayers = errors.New("no players in the game")

// Seat is one roster entry.
type Seat struct {
	UserID      int64 `json:"user_id"`
	PlayerOrder int   `json:"player_order"`
}

type Turn struct {
	UserID      int64  `json:"current_player_id"`
	PlayerOrder int    `json:"player_order"`
	Direction   int    `json:"direction"`
	Index       int    `json:"index"`
	Seats       []Seat `json:"seats"`
}

// Direction is +1 while the number of reverse moves is even, -1 otherwise.
func Direction(reverseCount int) int {
	if reverseCount%2 == 0 {
		return 1
	}
	return -1
}

// Resolve returns the current player for a roster after moveCount moves of
// which reverseCount were reverses. The roster is not modified.
func Resolve(roster []Seat, moveCount, reverseCount int) (Turn, error) {
	if len(roster) == 0 {
		return Turn{}, ErrNoPlayers
	}

	seats := make([]Seat, len(roster))
	copy(seats, roster)
	sort.SliceStable(seats, func(i, j int) bool {
		return seats[i].PlayerOrder < seats[j].PlayerOrder
	})

	playerCount := len(seats)
	direction := Direction(reverseCount)
	index := moveCount % playerCount
	if direction == -1 && moveCount > 0 {
		index = (playerCount - index) % playerCount
	}

	current := seats[index]
	return Turn{
		UserID:      current.UserID,
		PlayerOrder: current.PlayerOrder,
		Direction:   direction,
		Index:       index,
		Seats:       seats,
	}, nil
}
