package service

import (
	"errors"
	"time"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func (s *ServiceSuite) participant(gameID, userID int64) (*models.Participant, error) {
	return s.store.Participants.Get(s.ctx, gameID, userID)
}

func (s *ServiceSuite) TestReconnectBeforeExpiry() {
	g := s.started(3)

	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 2))
	s.Require().True(s.svc.PendingRejoin(g.ID, 2))

	ev, ok := s.events.last(comm.EventPlayerDisconnected)
	s.Require().True(ok)
	s.Require().Equal(int64(60), ev.Data.(DisconnectEvent).TimeoutMs)

	s.Require().NoError(s.svc.Reconnect(s.ctx, g.ID, 2))
	s.Require().False(s.svc.PendingRejoin(g.ID, 2))
	s.Require().Equal(1, s.events.count(comm.EventPlayerReconnected))

	time.Sleep(120 * time.Millisecond)
	p, err := s.participant(g.ID, 2)
	s.Require().NoError(err)
	s.Require().False(p.Disconnected)
	s.Require().Zero(s.events.count(comm.EventRejoinExpired))
}

func (s *ServiceSuite) TestGraceExpiryRemovesPlayer() {
	g := s.started(3)
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 3))

	s.Require().Eventually(func() bool {
		_, err := s.participant(g.ID, 3)
		return errors.Is(err, store.ErrNotFound)
	}, waitFor, tick)

	s.Require().Eventually(func() bool {
		return s.events.count(comm.EventRejoinExpired) == 1
	}, waitFor, tick)
	ev, _ := s.events.last(comm.EventRejoinExpired)
	s.Require().Equal([]string{comm.UserRoom(3)}, ev.Rooms)

	s.Require().Equal(models.StateInProgress, s.game(g.ID).State)
	s.Require().False(s.svc.PendingRejoin(g.ID, 3))
}

func (s *ServiceSuite) TestGraceExpiryEndsEmptyGame() {
	g := s.started(2)
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 1))
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 2))

	s.Require().Eventually(func() bool {
		return s.game(g.ID).State == models.StateEnded
	}, waitFor, tick)

	// the second expiry finds the game ended and leaves it alone
	time.Sleep(100 * time.Millisecond)
	s.Require().Equal(1, s.events.count(comm.EventRejoinExpired))
	ended, ok := s.events.last(comm.EventGameEnded)
	s.Require().True(ok)
	s.Require().Equal(comm.ReasonNoConnectedPlayer, ended.Data.(EndedEvent).Reason)
}

func (s *ServiceSuite) TestGraceExpiryAfterGameEnded() {
	g := s.started(3)
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 2))
	s.Require().NoError(s.svc.EndGame(s.ctx, g.ID, 1))

	s.Require().Eventually(func() bool {
		return !s.svc.PendingRejoin(g.ID, 2)
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	p, err := s.participant(g.ID, 2)
	s.Require().NoError(err)
	s.Require().True(p.Disconnected)
	s.Require().Zero(s.events.count(comm.EventRejoinExpired))

	s.Require().ErrorIs(s.svc.Reconnect(s.ctx, g.ID, 2), ErrGameEnded)
}

func (s *ServiceSuite) TestGraceExpiryForDeletedGame() {
	g := s.lobby(2)
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 2))
	_, err := s.store.Games.Delete(s.ctx, g.ID)
	s.Require().NoError(err)

	s.Require().Eventually(func() bool {
		return !s.svc.PendingRejoin(g.ID, 2)
	}, waitFor, tick)
	s.Require().Zero(s.events.count(comm.EventRejoinExpired))
}

func (s *ServiceSuite) TestLobbyHostDisconnectMigrates() {
	g := s.lobby(3)
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 1))

	s.Require().Equal(int64(2), s.game(g.ID).HostID)
	ev, ok := s.events.last(comm.EventHostChanged)
	s.Require().True(ok)
	s.Require().Equal(int64(2), ev.Data.(HostEvent).NewHostID)

	// the new host can start without waiting for the old one
	_, err := s.svc.StartGame(s.ctx, g.ID, 2)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestRunningGameKeepsHostOnDisconnect() {
	g := s.started(3)
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 1))
	s.Require().Equal(int64(1), s.game(g.ID).HostID)
	s.Require().Zero(s.events.count(comm.EventHostChanged))
}

func (s *ServiceSuite) TestHostTimeoutClosesLobby() {
	g := s.lobby(1)
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 1))

	s.Require().Eventually(func() bool {
		return s.events.count(comm.EventGameEnded) == 1
	}, waitFor, tick)
	ended, _ := s.events.last(comm.EventGameEnded)
	s.Require().Equal(comm.ReasonHostTimeout, ended.Data.(EndedEvent).Reason)
	s.Require().Equal(models.StateEnded, s.game(g.ID).State)
}

func (s *ServiceSuite) TestHostReconnectCancelsTimeout() {
	g := s.lobby(1)
	s.Require().NoError(s.svc.MarkDisconnected(s.ctx, g.ID, 1))
	s.Require().NoError(s.svc.Reconnect(s.ctx, g.ID, 1))

	time.Sleep(120 * time.Millisecond)
	s.Require().Equal(models.StateLobby, s.game(g.ID).State)
	s.Require().Zero(s.events.count(comm.EventGameEnded))
}

func (s *ServiceSuite) TestLeaveHandsOverHost() {
	g := s.lobby(3)
	s.Require().NoError(s.svc.LeaveGame(s.ctx, g.ID, 1))

	s.Require().Equal(int64(2), s.game(g.ID).HostID)
	s.Require().Equal(1, s.events.count(comm.EventPlayerLeft))
	s.Require().True(s.svc.PendingRejoin(g.ID, 1))

	p, err := s.participant(g.ID, 1)
	s.Require().NoError(err)
	s.Require().True(p.Disconnected)
}

func (s *ServiceSuite) TestLastLeaveEndsGame() {
	g := s.started(2)
	s.Require().NoError(s.svc.LeaveGame(s.ctx, g.ID, 2))
	s.Require().Equal(models.StateInProgress, s.game(g.ID).State)

	s.Require().NoError(s.svc.LeaveGame(s.ctx, g.ID, 1))
	s.Require().Equal(models.StateEnded, s.game(g.ID).State)
	ended, ok := s.events.last(comm.EventGameEnded)
	s.Require().True(ok)
	s.Require().Equal(comm.ReasonNoConnectedPlayer, ended.Data.(EndedEvent).Reason)

	s.Require().ErrorIs(s.svc.LeaveGame(s.ctx, g.ID, 9), ErrNotParticipant)
}

func (s *ServiceSuite) TestReconcileRestartsTimers() {
	g := s.started(3)
	_, err := s.store.Participants.SetDisconnected(s.ctx, g.ID, 3, true)
	s.Require().NoError(err)

	n, err := s.svc.Reconcile(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(1, n)
	s.Require().True(s.svc.PendingRejoin(g.ID, 3))

	s.Require().Eventually(func() bool {
		_, err := s.participant(g.ID, 3)
		return errors.Is(err, store.ErrNotFound)
	}, waitFor, tick)
}
