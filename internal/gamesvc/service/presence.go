package service

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
)

// timerOpTimeout bounds the store work done from a timer callback.
const timerOpTimeout = 30 * time.Second

// MarkDisconnected soft-leaves a participant whose connection dropped and
// starts the rejoin window. A lobby host hands the role to a connected
// player, or when nobody is connected the lobby gets the host countdown.
func (s *GameService) MarkDisconnected(ctx context.Context, gameID, userID int64) error {
	var out outbox
	hostCountdown := false

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
		s.toGame(&out, comm.EventPlayerDisconnected, gameID, DisconnectEvent{
			GameID:    gameID,
			UserID:    userID,
			TimeoutMs: s.cfg.GracePeriod.Milliseconds(),
		})

		if g.HostID != userID || g.State != models.StateLobby {
			return nil
		}
		connected, err := tx.Participants.ListConnected(ctx, gameID)
		if err != nil {
			return err
		}
		if len(connected) == 0 {
			hostCountdown = true
			return nil
		}
		return s.migrateHost(ctx, tx, &out, gameID, connected[0].UserID)
	})
	if err != nil {
		return s.reject(err)
	}

	s.scheduleGrace(gameID, userID)
	if hostCountdown {
		s.scheduleHostTimeout(gameID, userID)
	}
	s.publish(out)
	gameLog(gameID).Infof("user %d disconnected, rejoin window %s", userID, s.cfg.GracePeriod)
	return nil
}

// Reconnect clears the disconnected flag and cancels any pending timers for
// the participant.
func (s *GameService) Reconnect(ctx context.Context, gameID, userID int64) error {
	var out outbox
	var isHost bool

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.State == models.StateEnded {
			return ErrGameEnded
		}
		p, err := getParticipant(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		isHost = g.HostID == userID

		if !p.Disconnected {
			return nil
		}
		if _, err := tx.Participants.SetDisconnected(ctx, gameID, userID, false); err != nil {
			return err
		}
		s.toGame(&out, comm.EventPlayerReconnected, gameID, PlayerEvent{GameID: gameID, UserID: userID})
		return nil
	})
	if err != nil {
		return s.reject(err)
	}

	if s.grace.Cancel(seatKey{gameID, userID}) {
		gameLog(gameID).Infof("cancelled rejoin timer for user %d", userID)
	}
	if isHost {
		s.hostTimer.Cancel(gameID)
	}
	s.syncTimerGauges()
	s.publish(out)
	return nil
}

func (s *GameService) scheduleGrace(gameID, userID int64) {
	s.grace.Schedule(seatKey{gameID, userID}, s.cfg.GracePeriod, func() {
		s.graceExpired(gameID, userID)
		s.syncTimerGauges()
	})
	s.syncTimerGauges()
}

func (s *GameService) scheduleHostTimeout(gameID, hostID int64) {
	s.hostTimer.Schedule(gameID, s.cfg.HostTimeout, func() {
		s.hostTimedOut(gameID, hostID)
		s.syncTimerGauges()
	})
	s.syncTimerGauges()
}

func (s *GameService) syncTimerGauges() {
	s.metrics.PendingTimers.WithLabelValues("grace").Set(float64(s.grace.Len()))
	s.metrics.PendingTimers.WithLabelValues("host").Set(float64(s.hostTimer.Len()))
}

// graceExpired hard-removes a participant that did not come back. A game
// that is gone or already ended is left alone, as is a participant that
// reconnected in the meantime.
func (s *GameService) graceExpired(gameID, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
	defer cancel()

	logger := gameLog(gameID).WithField("user_id", userID)
	var out outbox
	removed := false

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.State == models.StateEnded {
			return nil
		}
		p, err := getParticipant(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		if !p.Disconnected {
			return nil
		}

		if _, err := tx.Participants.Remove(ctx, gameID, userID); err != nil {
			return err
		}
		removed = true
		s.toGame(&out, comm.EventPlayerLeft, gameID, PlayerEvent{GameID: gameID, UserID: userID})
		s.toUser(&out, comm.EventRejoinExpired, gameID, userID, PlayerEvent{GameID: gameID, UserID: userID})

		connected, err := tx.Participants.ListConnected(ctx, gameID)
		if err != nil {
			return err
		}
		if len(connected) == 0 {
			ok, err := tx.Games.Transition(ctx, gameID, g.State, models.StateEnded)
			if err != nil {
				return err
			}
			if ok {
				s.ended(&out, gameID, comm.ReasonNoConnectedPlayer, nil)
			}
			return nil
		}
		if g.HostID == userID {
			return s.migrateHost(ctx, tx, &out, gameID, connected[0].UserID)
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrGameNotFound), errors.Is(err, ErrNotParticipant):
		logger.Info("rejoin timer expired for a game or player that is gone")
		return
	case err != nil:
		logger.Errorf("rejoin timer expiry failed: %s", err)
		return
	}

	s.publish(out)
	if removed {
		logger.Info("rejoin timer expired, player removed")
	}
}

// hostTimedOut closes a lobby whose host never came back.
func (s *GameService) hostTimedOut(gameID, hostID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
	defer cancel()

	logger := gameLog(gameID).WithField("host_id", hostID)
	var out outbox

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.State != models.StateLobby || g.HostID != hostID {
			return nil
		}
		p, err := tx.Participants.Get(ctx, gameID, hostID)
		if err == nil && !p.Disconnected {
			return nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		ok, err := tx.Games.Transition(ctx, gameID, models.StateLobby, models.StateEnded)
		if err != nil {
			return err
		}
		if ok {
			s.ended(&out, gameID, comm.ReasonHostTimeout, nil)
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrGameNotFound):
		logger.Info("host timeout for a game that is gone")
		return
	case err != nil:
		logger.Errorf("host timeout failed: %s", err)
		return
	}

	s.publish(out)
	if len(out) > 0 {
		logger.Info("lobby closed, host did not return")
	}
}

// forgetGame drops every timer held for the game.
func (s *GameService) forgetGame(gameID int64, players []models.Participant) {
	s.hostTimer.Cancel(gameID)
	for _, p := range players {
		s.grace.Cancel(seatKey{gameID, p.UserID})
	}
	s.syncTimerGauges()
}

// Reconcile restarts the rejoin window of every participant left flagged
// disconnected by a previous process. Timers do not survive a restart.
func (s *GameService) Reconcile(ctx context.Context) (int, error) {
	players, err := s.store.Participants.ListDisconnected(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range players {
		s.scheduleGrace(p.GameID, p.UserID)
	}
	if len(players) > 0 {
		log.Infof("restarted %d rejoin timers", len(players))
	}
	return len(players), nil
}

// SweepEnded deletes games that ended before cutoff.
func (s *GameService) SweepEnded(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.store.Games.ListEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		var players []models.Participant
		err := s.store.Tx(ctx, func(tx *store.Store) error {
			var lerr error
			if players, lerr = tx.Participants.List(ctx, id); lerr != nil {
				return lerr
			}
			_, lerr = tx.Games.Delete(ctx, id)
			return lerr
		})
		if err != nil {
			gameLog(id).Errorf("failed to delete ended game: %s", err)
			continue
		}
		s.forgetGame(id, players)

		var out outbox
		out = append(out, comm.Event{Type: comm.EventGameRemoved, GameID: id, Rooms: []string{comm.RoomLobby}, Data: PlayerEvent{GameID: id}})
		s.publish(out)
		swept++
	}
	return swept, nil
}

// PendingRejoin reports whether a rejoin timer is running for the seat.
func (s *GameService) PendingRejoin(gameID, userID int64) bool {
	return s.grace.Active(seatKey{gameID, userID})
}

// Shutdown stops all pending timers.
func (s *GameService) Shutdown() {
	s.grace.Stop()
	s.hostTimer.Stop()
	s.syncTimerGauges()
}
