package service

import (
	"errors"

	"github.com/avvvet/uno-services/internal/gamesvc/store"
	"github.com/avvvet/uno-services/internal/gamesvc/turn"
)

// validation
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidCapacity  = errors.New("capacity must be between 2 and 10")
	ErrInvalidState     = errors.New("unknown game state")
	ErrPasswordRequired = errors.New("password is required for a private game")
	ErrNotInProgress    = errors.New("game is not in progress")
	ErrNotYourTurn      = errors.New("it is not your turn")
	ErrCardNotInHand    = errors.New("card is not in your hand")
	ErrIllegalCard      = errors.New("card does not match the top of the discard pile")
	ErrColorRequired    = errors.New("a colour must be chosen for a wild card")
	ErrInvalidColor     = errors.New("invalid colour")
	ErrDrawPending      = errors.New("you must draw the cards you owe first")
)

// not found
var (
	ErrGameNotFound = errors.New("game not found")
)

// forbidden
var (
	ErrWrongPassword  = errors.New("incorrect password")
	ErrNotHost        = errors.New("only the host can do this")
	ErrNotParticipant = errors.New("not a player in this game")
)

// conflict
var (
	ErrGameFull      = errors.New("game is full")
	ErrAlreadyJoined = errors.New("already joined this game")
	ErrCardConflict  = errors.New("card changed hands concurrently") // reported as a validation failure
)

// lifecycle
var (
	ErrNotInLobby       = errors.New("game has already started")
	ErrAlreadyStarted   = errors.New("game has already been started or ended")
	ErrGameEnded        = errors.New("game has already ended")
	ErrNotEnoughPlayers = errors.New("not enough players")
)

// Kind is the family an engine error belongs to.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindLifecycle
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindLifecycle:
		return "lifecycle"
	case KindResource:
		return "resource"
	}
	return "internal"
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidInput, KindValidation},
	{ErrInvalidCapacity, KindValidation},
	{ErrInvalidState, KindValidation},
	{ErrPasswordRequired, KindValidation},
	{ErrNotInProgress, KindValidation},
	{ErrNotYourTurn, KindValidation},
	{ErrCardNotInHand, KindValidation},
	{ErrIllegalCard, KindValidation},
	{ErrColorRequired, KindValidation},
	{ErrInvalidColor, KindValidation},
	{ErrDrawPending, KindValidation},
	{ErrCardConflict, KindValidation},
	{ErrGameNotFound, KindNotFound},
	{store.ErrNotFound, KindNotFound},
	{ErrWrongPassword, KindForbidden},
	{ErrNotHost, KindForbidden},
	{ErrNotParticipant, KindForbidden},
	{ErrGameFull, KindConflict},
	{ErrAlreadyJoined, KindConflict},
	{store.ErrDuplicate, KindConflict},
	{turn.ErrNoPlayers, KindConflict},
	{ErrNotInLobby, KindLifecycle},
	{ErrAlreadyStarted, KindLifecycle},
	{ErrGameEnded, KindLifecycle},
	{ErrNotEnoughPlayers, KindLifecycle},
	{store.ErrDeckExhausted, KindResource},
}

// KindOf classifies err. Anything unknown is internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
