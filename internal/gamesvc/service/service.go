package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/metrics"
	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/avvvet/uno-services/internal/gamesvc/rules"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
	"github.com/avvvet/uno-services/internal/gamesvc/timers"
	"github.com/avvvet/uno-services/internal/gamesvc/turn"
	log "github.com/sirupsen/logrus"
)

// Broadcaster fans engine events out to room subscribers. Broadcast must not
// block on slow consumers.
type Broadcaster interface {
	Broadcast(ev comm.Event)
}

type Config struct {
	GracePeriod     time.Duration // rejoin window after a disconnect
	HostTimeout     time.Duration // lobby abandonment after the host disconnects
	HandSize        int
	StarterAttempts int
}

func DefaultConfig() Config {
	return Config{
		GracePeriod:     5 * time.Minute,
		HostTimeout:     2 * time.Minute,
		HandSize:        7,
		StarterAttempts: 20,
	}
}

type seatKey struct {
	GameID int64
	UserID int64
}

type Option func(*GameService)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *GameService) { s.metrics = m }
}

// WithShuffler replaces the random source used for decks and seating.
func WithShuffler(sh store.Shuffler) Option {
	return func(s *GameService) { s.shuffler = sh }
}

func WithRooms(r comm.Rooms) Option {
	return func(s *GameService) { s.rooms = r }
}

// GameService is the game session engine. Every mutating operation runs in
// one store transaction and publishes its events only after commit.
type GameService struct {
	store    *store.Store
	events   Broadcaster
	rooms    comm.Rooms
	cfg      Config
	metrics  *metrics.Metrics
	shuffler store.Shuffler

	grace     *timers.Registry[seatKey]
	hostTimer *timers.Registry[int64]
}

func NewGameService(st *store.Store, events Broadcaster, cfg Config, opts ...Option) *GameService {
	def := DefaultConfig()
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = def.GracePeriod
	}
	if cfg.HostTimeout <= 0 {
		cfg.HostTimeout = def.HostTimeout
	}
	if cfg.HandSize <= 0 {
		cfg.HandSize = def.HandSize
	}
	if cfg.StarterAttempts <= 0 {
		cfg.StarterAttempts = def.StarterAttempts
	}

	s := &GameService{
		store:     st,
		events:    events,
		rooms:     comm.GameRooms{},
		cfg:       cfg,
		shuffler:  globalRand{},
		grace:     timers.NewRegistry[seatKey](),
		hostTimer: timers.NewRegistry[int64](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

type globalRand struct{}

func (globalRand) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// lockGame loads the game row for update and maps a missing row.
func lockGame(ctx context.Context, tx *store.Store, gameID int64) (*models.Game, error) {
	g, err := tx.Games.Lock(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	return g, err
}

func getParticipant(ctx context.Context, q *store.Store, gameID, userID int64) (*models.Participant, error) {
	p, err := q.Participants.Get(ctx, gameID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotParticipant
	}
	return p, err
}

// resolveTurn derives the current turn from the roster and the move log.
func resolveTurn(ctx context.Context, q *store.Store, gameID int64) (turn.Turn, error) {
	players, err := q.Participants.List(ctx, gameID)
	if err != nil {
		return turn.Turn{}, err
	}
	moves, err := q.Moves.Count(ctx, gameID)
	if err != nil {
		return turn.Turn{}, err
	}
	reverses, err := q.Moves.ReverseCount(ctx, gameID)
	if err != nil {
		return turn.Turn{}, err
	}

	seats := make([]turn.Seat, len(players))
	for i, p := range players {
		seats[i] = turn.Seat{UserID: p.UserID, PlayerOrder: p.PlayerOrder}
	}
	return turn.Resolve(seats, moves, reverses)
}

func face(c *models.Card) rules.Face {
	return rules.Face{Color: c.Color, Value: c.Value}
}

func (s *GameService) reject(err error) error {
	if err != nil {
		s.metrics.Rejections.WithLabelValues(KindOf(err).String()).Inc()
	}
	return err
}

// event payloads

type PlayerEvent struct {
	GameID int64 `json:"game_id"`
	UserID int64 `json:"user_id"`
}

type ReadyEvent struct {
	GameID int64 `json:"game_id"`
	UserID int64 `json:"user_id"`
	Ready  bool  `json:"ready"`
}

type DisconnectEvent struct {
	GameID    int64 `json:"game_id"`
	UserID    int64 `json:"user_id"`
	TimeoutMs int64 `json:"timeout_ms"`
}

type HostEvent struct {
	GameID    int64 `json:"game_id"`
	NewHostID int64 `json:"new_host_id"`
}

type StateEvent struct {
	GameID int64  `json:"game_id"`
	State  string `json:"state"`
}

type StartedEvent struct {
	GameID        int64       `json:"game_id"`
	FirstPlayerID int64       `json:"first_player_id"`
	TopCard       models.Card `json:"top_card"`
}

type TurnEvent struct {
	GameID int64 `json:"game_id"`
	turn.Turn
}

type CardPlayedEvent struct {
	GameID int64       `json:"game_id"`
	UserID int64       `json:"user_id"`
	Card   models.Card `json:"card"`
	Color  string      `json:"color"` // colour now in force
}

type DrawEvent struct {
	GameID int64 `json:"game_id"`
	UserID int64 `json:"user_id"`
	Count  int   `json:"count"`
	Forced bool  `json:"forced"`
}

type HandCountEvent struct {
	GameID int64              `json:"game_id"`
	Counts []models.HandCount `json:"counts"`
}

type DirectionEvent struct {
	GameID    int64 `json:"game_id"`
	Direction int   `json:"direction"`
}

type ColorEvent struct {
	GameID int64  `json:"game_id"`
	UserID int64  `json:"user_id"`
	Color  string `json:"color"`
}

type EndedEvent struct {
	GameID   int64  `json:"game_id"`
	Reason   string `json:"reason"`
	WinnerID *int64 `json:"winner_id,omitempty"`
}

// outbox collects the events of one operation until its transaction commits.
type outbox []comm.Event

func (s *GameService) toGame(out *outbox, typ string, gameID int64, data any) {
	*out = append(*out, comm.Event{
		Type:   typ,
		GameID: gameID,
		Rooms:  s.rooms.AddressesFor(gameID).Slice(),
		Data:   data,
	})
}

// toLobby addresses the game's rooms and the lobby listing.
func (s *GameService) toLobby(out *outbox, typ string, gameID int64, data any) {
	rooms := s.rooms.AddressesFor(gameID)
	rooms.Insert(comm.RoomLobby)
	*out = append(*out, comm.Event{Type: typ, GameID: gameID, Rooms: rooms.Slice(), Data: data})
}

func (s *GameService) toUser(out *outbox, typ string, gameID, userID int64, data any) {
	*out = append(*out, comm.Event{
		Type:   typ,
		GameID: gameID,
		Rooms:  []string{comm.UserRoom(userID)},
		Data:   data,
	})
}

func (s *GameService) ended(out *outbox, gameID int64, reason string, winner *int64) {
	s.toGame(out, comm.EventGameEnded, gameID, EndedEvent{GameID: gameID, Reason: reason, WinnerID: winner})
	s.toLobby(out, comm.EventGameStateUpdate, gameID, StateEvent{GameID: gameID, State: models.StateEnded})
}

func (s *GameService) publish(out outbox) {
	for _, ev := range out {
		if e, ok := ev.Data.(EndedEvent); ok {
			s.metrics.GamesEnded.WithLabelValues(e.Reason).Inc()
		}
		if s.events != nil {
			s.events.Broadcast(ev)
		}
	}
}

// gameLog returns a logger scoped to one game.
func gameLog(gameID int64) *log.Entry {
	return log.WithField("game_id", gameID)
}
