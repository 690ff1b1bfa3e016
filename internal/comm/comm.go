package comm

import (
	"encoding/json"
	"strconv"

	"github.com/hashicorp/go-set/v3"
)

// NATS topics shared by the game and socket services.
const (
	TopicGameService   = "game.service"   // game service -> socket service
	TopicSocketService = "socket.service" // socket service -> game service
)

// messages published by the socket service
const (
	MsgPlayerConnected    = "player-connected"
	MsgPlayerDisconnected = "player-disconnected"
)

// engine events
const (
	EventGameCreated        = "game-created"
	EventGameStateUpdate    = "game-state-update"
	EventPlayerJoined       = "player-joined"
	EventPlayerLeft         = "player-left"
	EventPlayerReadyChanged = "player-ready-changed"
	EventPlayerDisconnected = "player-disconnected"
	EventPlayerReconnected  = "player-reconnected"
	EventHostChanged        = "host-changed"
	EventGameStarted        = "game-started"
	EventTurnChanged        = "turn-changed"
	EventCardPlayed         = "card-played"
	EventCardsDrawn         = "cards-drawn"
	EventHandCountUpdated   = "hand-count-updated"
	EventPlayerSkipped      = "player-skipped"
	EventDirectionReversed  = "direction-reversed"
	EventColorChosen        = "color-chosen"
	EventGameEnded          = "game-ended"
	EventLobbyCancelled     = "lobby-cancelled"
	EventGameRemoved        = "game-removed"
	EventRejoinExpired      = "rejoin-expired"
)

// game-ended reasons
const (
	ReasonWinner            = "winner"
	ReasonHostEnded         = "host_ended"
	ReasonHostTimeout       = "host_timeout"
	ReasonNoConnectedPlayer = "no_connected_players"
	ReasonCancelled         = "cancelled"
)

const RoomLobby = "LOBBY"

func GameRoom(gameID int64) string {
	return "GAME_" + strconv.FormatInt(gameID, 10)
}

func WaitingRoom(gameID int64) string {
	return "WAITING_ROOM_" + strconv.FormatInt(gameID, 10)
}

func UserRoom(userID int64) string {
	return "USER_" + strconv.FormatInt(userID, 10)
}

// Rooms maps a game to the set of rooms its events are addressed to.
type Rooms interface {
	AddressesFor(gameID int64) *set.Set[string]
}

// GameRooms addresses the game room and its waiting room.
type GameRooms struct{}

func (GameRooms) AddressesFor(gameID int64) *set.Set[string] {
	return set.From([]string{GameRoom(gameID), WaitingRoom(gameID)})
}

// Event is a semantic engine event, not yet wire formatted.
type Event struct {
	Type   string   `json:"type"`
	GameID int64    `json:"game_id"`
	Rooms  []string `json:"rooms"`
	Data   any      `json:"data"`
}

// WSMessage is the envelope carried over NATS and the websocket. An event
// addressed to several rooms travels as one envelope listing them all.
type WSMessage struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
	Room     string          `json:"room,omitempty"`
	Rooms    []string        `json:"rooms,omitempty"`
}

// Addresses is the union of Room and Rooms.
func (m *WSMessage) Addresses() *set.Set[string] {
	rooms := set.From(m.Rooms)
	if m.Room != "" {
		rooms.Insert(m.Room)
	}
	return rooms
}

// PresenceData is the payload of player-connected / player-disconnected.
type PresenceData struct {
	UserID int64  `json:"user_id"`
	GameID int64  `json:"game_id"`
	Host   bool   `json:"host,omitempty"`
	Socket string `json:"socketid,omitempty"`
}
