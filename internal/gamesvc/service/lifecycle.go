package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/avvvet/uno-services/internal/gamesvc/rules"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
	"github.com/avvvet/uno-services/internal/gamesvc/turn"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const defaultCapacity = 4

type CreateParams struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	IsPrivate bool   `json:"is_private"`
	Password  string `json:"password"`
}

// GameView is a game with its roster.
type GameView struct {
	models.Game
	Players []models.Participant `json:"players"`
}

type StartResult struct {
	Game    *models.Game `json:"game"`
	TopCard models.Card  `json:"top_card"`
	Turn    turn.Turn    `json:"turn"`
}

// CreateGame opens a lobby with the host seated first.
func (s *GameService) CreateGame(ctx context.Context, hostID int64, p CreateParams) (*models.Game, error) {
	if hostID <= 0 {
		return nil, s.reject(fmt.Errorf("host id %d: %w", hostID, ErrInvalidInput))
	}
	if p.Capacity == 0 {
		p.Capacity = defaultCapacity
	}
	if p.Capacity < models.MinCapacity || p.Capacity > models.MaxCapacity {
		return nil, s.reject(ErrInvalidCapacity)
	}

	game := &models.Game{
		HostID:    hostID,
		Name:      strings.TrimSpace(p.Name),
		Capacity:  p.Capacity,
		IsPrivate: p.IsPrivate,
	}
	if p.IsPrivate {
		password := strings.TrimSpace(p.Password)
		if password == "" {
			return nil, s.reject(ErrPasswordRequired)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash game password: %w", err)
		}
		h := string(hash)
		game.PasswordHash = &h
	}

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		if _, err := tx.Games.Create(ctx, game); err != nil {
			return err
		}
		return tx.Participants.Add(ctx, &models.Participant{GameID: game.ID, UserID: hostID, PlayerOrder: 1})
	})
	if err != nil {
		return nil, err
	}

	var out outbox
	s.toLobby(&out, comm.EventGameCreated, game.ID, models.GameSummary{Game: *game, PlayerCount: 1})
	s.publish(out)
	s.metrics.GamesCreated.Inc()

	gameLog(game.ID).Infof("game created by host %d, capacity %d", hostID, game.Capacity)
	return game, nil
}

// JoinGame seats the user in a lobby. A user who is already a participant is
// reconnected instead and needs no password.
func (s *GameService) JoinGame(ctx context.Context, gameID, userID int64, password string) (reconnected bool, err error) {
	if userID <= 0 {
		return false, s.reject(fmt.Errorf("user id %d: %w", userID, ErrInvalidInput))
	}

	var out outbox
	err = s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.State == models.StateEnded {
			return ErrGameEnded
		}

		if _, err := tx.Participants.Get(ctx, gameID, userID); err == nil {
			reconnected = true
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if g.State != models.StateLobby {
			return ErrNotInLobby
		}
		if g.IsPrivate {
			password = strings.TrimSpace(password)
			if password == "" {
				return ErrPasswordRequired
			}
			hash := ""
			if g.PasswordHash != nil {
				hash = *g.PasswordHash
			}
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
				return ErrWrongPassword
			}
		}

		players, err := tx.Participants.List(ctx, gameID)
		if err != nil {
			return err
		}
		if len(players) >= g.Capacity {
			return ErrGameFull
		}

		p := &models.Participant{GameID: gameID, UserID: userID, PlayerOrder: lowestFreeSeat(players)}
		if err := tx.Participants.Add(ctx, p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyJoined
			}
			return err
		}

		s.toLobby(&out, comm.EventPlayerJoined, gameID, PlayerEvent{GameID: gameID, UserID: userID})
		return nil
	})
	if err != nil {
		return false, s.reject(err)
	}

	if reconnected {
		return true, s.Reconnect(ctx, gameID, userID)
	}
	s.publish(out)
	gameLog(gameID).Infof("user %d joined", userID)
	return false, nil
}

// lowestFreeSeat returns the smallest player order not taken.
func lowestFreeSeat(players []models.Participant) int {
	taken := make(map[int]bool, len(players))
	for _, p := range players {
		taken[p.PlayerOrder] = true
	}
	seat := 1
	for taken[seat] {
		seat++
	}
	return seat
}

func (s *GameService) ListGames(ctx context.Context, state string, limit int) ([]models.GameSummary, error) {
	if state == "" {
		state = models.StateLobby
	}
	switch state {
	case models.StateLobby, models.StateInProgress, models.StateEnded:
	default:
		return nil, s.reject(ErrInvalidState)
	}
	return s.store.Games.List(ctx, state, limit)
}

func (s *GameService) GamesForUser(ctx context.Context, userID int64) ([]models.GameSummary, error) {
	return s.store.Games.ListForUser(ctx, userID)
}

func (s *GameService) GetGame(ctx context.Context, gameID int64) (*GameView, error) {
	g, err := s.store.Games.GetGameByID(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.reject(ErrGameNotFound)
	}
	if err != nil {
		return nil, err
	}
	players, err := s.store.Participants.List(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &GameView{Game: *g, Players: players}, nil
}

// StartGame deals the game. Seating is shuffled and renumbered 1..N, every
// player gets a hand and a starter card opens the discard pile.
func (s *GameService) StartGame(ctx context.Context, gameID, userID int64) (*StartResult, error) {
	var out outbox
	var res StartResult

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.HostID != userID {
			return ErrNotHost
		}
		if g.State != models.StateLobby {
			return ErrAlreadyStarted
		}

		players, err := tx.Participants.List(ctx, gameID)
		if err != nil {
			return err
		}
		if len(players) < 2 {
			return ErrNotEnoughPlayers
		}

		if _, err := tx.Cards.CreateDeck(ctx, gameID, s.shuffler); err != nil {
			return err
		}

		s.shuffler.Shuffle(len(players), func(i, j int) {
			players[i], players[j] = players[j], players[i]
		})
		for i, p := range players {
			if _, err := tx.Cards.Draw(ctx, gameID, p.UserID, s.cfg.HandSize); err != nil {
				return fmt.Errorf("deal to user %d: %w", p.UserID, err)
			}
			if err := tx.Participants.SetOrder(ctx, gameID, p.UserID, i+1); err != nil {
				return err
			}
		}

		top, err := s.flipStarter(ctx, tx, gameID)
		if err != nil {
			return err
		}

		ok, err := tx.Games.Transition(ctx, gameID, models.StateLobby, models.StateInProgress)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyStarted
		}

		t, err := resolveTurn(ctx, tx, gameID)
		if err != nil {
			return err
		}
		counts, err := tx.Cards.HandCounts(ctx, gameID)
		if err != nil {
			return err
		}

		g.State = models.StateInProgress
		res = StartResult{Game: g, TopCard: *top, Turn: t}

		s.toLobby(&out, comm.EventGameStateUpdate, gameID, StateEvent{GameID: gameID, State: models.StateInProgress})
		s.toGame(&out, comm.EventGameStarted, gameID, StartedEvent{GameID: gameID, FirstPlayerID: t.UserID, TopCard: *top})
		s.toGame(&out, comm.EventTurnChanged, gameID, TurnEvent{GameID: gameID, Turn: t})
		s.toGame(&out, comm.EventHandCountUpdated, gameID, HandCountEvent{GameID: gameID, Counts: counts})
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.hostTimer.Cancel(gameID)
	s.publish(out)
	s.metrics.GamesStarted.Inc()

	gameLog(gameID).WithField("starter", res.TopCard.Color+"-"+res.TopCard.Value).Info("game started")
	return &res, nil
}

// flipStarter opens the discard pile. Wild and action cards are buried at
// the bottom of the deck and the next card is tried; once the attempts run
// out the last card drawn is used whatever it is.
func (s *GameService) flipStarter(ctx context.Context, tx *store.Store, gameID int64) (*models.Card, error) {
	for attempt := 1; ; attempt++ {
		c, err := tx.Cards.NextInDeck(ctx, gameID)
		if err != nil {
			return nil, err
		}

		if rules.IsStarter(face(c)) || attempt >= s.cfg.StarterAttempts {
			ok, err := tx.Cards.Discard(ctx, c.ID, gameID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("starter card %d was not in the deck", c.ID)
			}
			c.Location = models.LocationDiscard
			return c, nil
		}

		if _, err := tx.Cards.Bury(ctx, c.ID, gameID); err != nil {
			return nil, err
		}
	}
}

// ToggleReady flips the caller's ready flag in a lobby.
func (s *GameService) ToggleReady(ctx context.Context, gameID, userID int64) (bool, error) {
	var out outbox
	var ready bool

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.State != models.StateLobby {
			return ErrNotInLobby
		}

		ready, err = tx.Participants.ToggleReady(ctx, gameID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotParticipant
		}
		if err != nil {
			return err
		}

		s.toGame(&out, comm.EventPlayerReadyChanged, gameID, ReadyEvent{GameID: gameID, UserID: userID, Ready: ready})
		return nil
	})
	if err != nil {
		return false, s.reject(err)
	}

	s.publish(out)
	return ready, nil
}

// LeaveGame is a soft leave: the participant stays, flagged disconnected,
// until the grace period runs out. The game ends at once when nobody
// connected is left; a leaving lobby host hands the role on.
func (s *GameService) LeaveGame(ctx context.Context, gameID, userID int64) error {
	var out outbox

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if _, err := getParticipant(ctx, tx, gameID, userID); err != nil {
			return err
		}

		if _, err := tx.Participants.SetDisconnected(ctx, gameID, userID, true); err != nil {
			return err
		}
		s.toGame(&out, comm.EventPlayerLeft, gameID, PlayerEvent{GameID: gameID, UserID: userID})

		connected, err := tx.Participants.ListConnected(ctx, gameID)
		if err != nil {
			return err
		}

		switch {
		case len(connected) == 0 && g.State != models.StateEnded:
			ok, err := tx.Games.Transition(ctx, gameID, g.State, models.StateEnded)
			if err != nil {
				return err
			}
			if ok {
				s.ended(&out, gameID, comm.ReasonNoConnectedPlayer, nil)
			}
		case len(connected) > 0 && g.HostID == userID && g.State == models.StateLobby:
			if err := s.migrateHost(ctx, tx, &out, gameID, connected[0].UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.reject(err)
	}

	s.scheduleGrace(gameID, userID)
	s.publish(out)
	gameLog(gameID).Infof("user %d left, rejoin window %s", userID, s.cfg.GracePeriod)
	return nil
}

func (s *GameService) migrateHost(ctx context.Context, tx *store.Store, out *outbox, gameID, newHost int64) error {
	if err := tx.Games.UpdateHost(ctx, gameID, newHost); err != nil {
		return err
	}
	s.toGame(out, comm.EventHostChanged, gameID, HostEvent{GameID: gameID, NewHostID: newHost})
	gameLog(gameID).Infof("host changed to user %d", newHost)
	return nil
}

// CancelLobby deletes a lobby that has not started. Host only.
func (s *GameService) CancelLobby(ctx context.Context, gameID, userID int64) error {
	var out outbox
	var players []models.Participant

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.HostID != userID {
			return ErrNotHost
		}
		if g.State != models.StateLobby {
			return ErrNotInLobby
		}

		players, err = tx.Participants.List(ctx, gameID)
		if err != nil {
			return err
		}
		if _, err := tx.Games.Delete(ctx, gameID); err != nil {
			return err
		}

		s.toGame(&out, comm.EventLobbyCancelled, gameID, EndedEvent{GameID: gameID, Reason: comm.ReasonCancelled})
		out = append(out, comm.Event{
			Type:   comm.EventGameRemoved,
			GameID: gameID,
			Rooms:  []string{comm.RoomLobby},
			Data:   PlayerEvent{GameID: gameID, UserID: userID},
		})
		return nil
	})
	if err != nil {
		return s.reject(err)
	}

	s.forgetGame(gameID, players)
	s.publish(out)
	gameLog(gameID).Infof("lobby cancelled by host %d", userID)
	return nil
}

// EndGame ends a game on the host's request.
func (s *GameService) EndGame(ctx context.Context, gameID, userID int64) error {
	var out outbox

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.HostID != userID {
			return ErrNotHost
		}
		if g.State == models.StateEnded {
			return ErrGameEnded
		}

		ok, err := tx.Games.Transition(ctx, gameID, g.State, models.StateEnded)
		if err != nil {
			return err
		}
		if !ok {
			return ErrGameEnded
		}
		s.ended(&out, gameID, comm.ReasonHostEnded, nil)
		return nil
	})
	if err != nil {
		return s.reject(err)
	}

	s.hostTimer.Cancel(gameID)
	s.publish(out)
	gameLog(gameID).Infof("game ended by host %d", userID)
	return nil
}

// FinishGame ends the game with winnerID declared the winner. Host only.
func (s *GameService) FinishGame(ctx context.Context, gameID, userID, winnerID int64) error {
	var out outbox

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.HostID != userID {
			return ErrNotHost
		}
		if g.State == models.StateEnded {
			return ErrGameEnded
		}
		if _, err := getParticipant(ctx, tx, gameID, winnerID); err != nil {
			return err
		}

		return s.declareWinner(ctx, tx, &out, g, winnerID)
	})
	if err != nil {
		return s.reject(err)
	}

	s.hostTimer.Cancel(gameID)
	s.publish(out)
	return nil
}

func (s *GameService) declareWinner(ctx context.Context, tx *store.Store, out *outbox, g *models.Game, winnerID int64) error {
	ok, err := tx.Games.Transition(ctx, g.ID, g.State, models.StateEnded)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGameEnded
	}
	if err := tx.Games.SetWinner(ctx, g.ID, winnerID); err != nil {
		return err
	}
	if err := tx.Participants.SetWinner(ctx, g.ID, winnerID); err != nil {
		return err
	}

	g.State = models.StateEnded
	g.WinnerID = &winnerID
	s.ended(out, g.ID, comm.ReasonWinner, &winnerID)
	log.WithFields(log.Fields{"game_id": g.ID, "winner": winnerID}).Info("game won")
	return nil
}
