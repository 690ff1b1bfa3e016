package service

import (
	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/avvvet/uno-services/internal/gamesvc/rules"
)

// seats returns the user ids in seat order.
func (s *ServiceSuite) seats(gameID int64) []int64 {
	players, err := s.store.Participants.List(s.ctx, gameID)
	s.Require().NoError(err)
	ids := []int64{}
	for _, p := range players {
		ids = append(ids, p.UserID)
	}
	return ids
}

func (s *ServiceSuite) TestPlayRejections() {
	g := s.started(3)
	order := s.seats(g.ID)
	s.setTop(g.ID, rules.Red, "5")

	red := s.give(g.ID, order[1], rules.Red, "7")
	_, err := s.svc.PlayCard(s.ctx, g.ID, order[1], red, "")
	s.Require().ErrorIs(err, ErrNotYourTurn)
	s.Require().Equal(KindValidation, KindOf(err))

	// someone else's card
	_, err = s.svc.PlayCard(s.ctx, g.ID, order[0], red, "")
	s.Require().ErrorIs(err, ErrCardNotInHand)
	held, err := s.store.Cards.Get(s.ctx, g.ID, red)
	s.Require().NoError(err)
	s.Require().Equal(order[1], held.OwnerID)

	blue := s.give(g.ID, order[0], rules.Blue, "7")
	s.Require().NoError(s.svc.ValidatePlay(s.ctx, g.ID, order[0], blue, ""))
	blue8 := s.give(g.ID, order[0], rules.Blue, "8")
	_, err = s.svc.PlayCard(s.ctx, g.ID, order[0], blue8, "")
	s.Require().ErrorIs(err, ErrIllegalCard)

	moves, err := s.store.Moves.Count(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Zero(moves, "rejected plays must not touch the move log")

	lobby := s.lobby(2)
	_, err = s.svc.PlayCard(s.ctx, lobby.ID, 1, red, "")
	s.Require().ErrorIs(err, ErrNotInProgress)
}

func (s *ServiceSuite) TestPlayMatchingCardAdvancesTurn() {
	g := s.started(3)
	order := s.seats(g.ID)
	s.setTop(g.ID, rules.Red, "5")

	// same value, different colour
	card := s.give(g.ID, order[0], rules.Blue, "5")
	before := s.handSize(g.ID, order[0])

	res, err := s.svc.PlayCard(s.ctx, g.ID, order[0], card, "")
	s.Require().NoError(err)
	s.Require().Nil(res.WinnerID)
	s.Require().Equal(order[1], res.Turn.UserID)
	s.Require().Equal(before-1, s.handSize(g.ID, order[0]))

	top, err := s.store.Cards.TopOfDiscard(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Equal(card, top.ID)

	last, err := s.store.Moves.Last(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Equal(rules.PlayTypePlay, last.PlayType)
	s.Require().Equal(card, *last.CardID)

	s.Require().Equal(1, s.events.count(comm.EventCardPlayed))
	s.Require().Equal(order[1], s.current(g.ID))
}

func (s *ServiceSuite) TestWildNeedsColourAndSetsIt() {
	g := s.started(3)
	order := s.seats(g.ID)
	s.setTop(g.ID, rules.Red, "5")

	wild := s.give(g.ID, order[0], rules.Wild, rules.WildCard)
	_, err := s.svc.PlayCard(s.ctx, g.ID, order[0], wild, "")
	s.Require().ErrorIs(err, ErrColorRequired)
	_, err = s.svc.PlayCard(s.ctx, g.ID, order[0], wild, "purple")
	s.Require().ErrorIs(err, ErrInvalidColor)

	res, err := s.svc.PlayCard(s.ctx, g.ID, order[0], wild, rules.Green)
	s.Require().NoError(err)
	s.Require().Equal(rules.Green, res.Color)
	s.Require().Equal(1, s.events.count(comm.EventColorChosen))

	red := s.give(g.ID, order[1], rules.Red, "3")
	_, err = s.svc.PlayCard(s.ctx, g.ID, order[1], red, "")
	s.Require().ErrorIs(err, ErrIllegalCard)

	green := s.give(g.ID, order[1], rules.Green, "3")
	_, err = s.svc.PlayCard(s.ctx, g.ID, order[1], green, "")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestSkipPassesOverNextSeat() {
	g := s.started(3)
	order := s.seats(g.ID)
	s.setTop(g.ID, rules.Red, "5")

	skip := s.give(g.ID, order[0], rules.Red, rules.Skip)
	res, err := s.svc.PlayCard(s.ctx, g.ID, order[0], skip, "")
	s.Require().NoError(err)
	s.Require().Equal(order[1], *res.Skipped)
	s.Require().Equal(order[2], res.Turn.UserID)
	s.Require().Equal(order[2], s.current(g.ID))

	moves, err := s.store.Moves.All(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Len(moves, 2)
	s.Require().Equal(rules.PlayTypeSkip, moves[0].PlayType)
	s.Require().Equal(rules.PlayTypeSkip, moves[1].PlayType)
	s.Require().Nil(moves[1].CardID)
	s.Require().Equal(order[1], moves[1].UserID)
	s.Require().Equal(1, s.events.count(comm.EventPlayerSkipped))
}

func (s *ServiceSuite) TestReverseFlipsDirection() {
	g := s.started(3)
	order := s.seats(g.ID)
	s.setTop(g.ID, rules.Red, "5")

	rev := s.give(g.ID, order[0], rules.Red, rules.Reverse)
	res, err := s.svc.PlayCard(s.ctx, g.ID, order[0], rev, "")
	s.Require().NoError(err)
	s.Require().Equal(-1, res.Turn.Direction)
	s.Require().Equal(order[2], res.Turn.UserID)

	reverses, err := s.store.Moves.ReverseCount(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Equal(1, reverses)
	s.Require().Equal(1, s.events.count(comm.EventDirectionReversed))
}

func (s *ServiceSuite) TestDrawCardForcesDraw() {
	g := s.started(3)
	order := s.seats(g.ID)
	s.setTop(g.ID, rules.Red, "5")

	d2 := s.give(g.ID, order[0], rules.Red, rules.DrawTwo)
	_, err := s.svc.PlayCard(s.ctx, g.ID, order[0], d2, "")
	s.Require().NoError(err)
	s.Require().Equal(order[1], s.current(g.ID))

	victim := order[1]
	red := s.give(g.ID, victim, rules.Red, "9")
	_, err = s.svc.PlayCard(s.ctx, g.ID, victim, red, "")
	s.Require().ErrorIs(err, ErrDrawPending)
	_, err = s.svc.EndTurn(s.ctx, g.ID, victim)
	s.Require().ErrorIs(err, ErrDrawPending)

	before := s.handSize(g.ID, victim)
	res, err := s.svc.DrawCards(s.ctx, g.ID, victim, 1)
	s.Require().NoError(err)
	s.Require().True(res.Forced)
	s.Require().Len(res.Cards, 2)
	s.Require().Equal(before+2, s.handSize(g.ID, victim))
	s.Require().Equal(order[2], res.Turn.UserID)

	// nothing owed by the next player
	_, err = s.svc.EndTurn(s.ctx, g.ID, order[2])
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestVoluntaryDrawKeepsTurn() {
	g := s.started(2)
	order := s.seats(g.ID)

	deck, err := s.store.Cards.DeckCount(s.ctx, g.ID)
	s.Require().NoError(err)

	res, err := s.svc.DrawCards(s.ctx, g.ID, order[0], 0)
	s.Require().NoError(err)
	s.Require().False(res.Forced)
	s.Require().Len(res.Cards, 1)
	s.Require().Equal(order[0], s.current(g.ID))

	after, err := s.store.Cards.DeckCount(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Equal(deck-1, after)

	_, err = s.svc.DrawCards(s.ctx, g.ID, order[1], 1)
	s.Require().ErrorIs(err, ErrNotYourTurn)

	t, err := s.svc.EndTurn(s.ctx, g.ID, order[0])
	s.Require().NoError(err)
	s.Require().Equal(order[1], t.UserID)

	last, err := s.store.Moves.Last(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Equal(rules.PlayTypeDraw, last.PlayType)
	s.Require().Nil(last.CardID)
}

func (s *ServiceSuite) TestDrawBeyondDeckFails() {
	g := s.started(2)
	order := s.seats(g.ID)

	deck, err := s.store.Cards.DeckCount(s.ctx, g.ID)
	s.Require().NoError(err)

	_, err = s.svc.DrawCards(s.ctx, g.ID, order[0], deck+1)
	s.Require().Error(err)
	s.Require().Equal(KindResource, KindOf(err))

	after, err := s.store.Cards.DeckCount(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Require().Equal(deck, after)
}

func (s *ServiceSuite) TestEmptyHandWins() {
	g := s.started(3)
	order := s.seats(g.ID)
	s.setTop(g.ID, rules.Red, "5")

	last := s.give(g.ID, order[0], rules.Red, "8")
	s.keepOnly(g.ID, order[0], last)
	s.Require().Equal(1, s.handSize(g.ID, order[0]))

	res, err := s.svc.PlayCard(s.ctx, g.ID, order[0], last, "")
	s.Require().NoError(err)
	s.Require().NotNil(res.WinnerID)
	s.Require().Equal(order[0], *res.WinnerID)

	fin := s.game(g.ID)
	s.Require().Equal(models.StateEnded, fin.State)
	s.Require().Equal(order[0], *fin.WinnerID)

	ended, ok := s.events.last(comm.EventGameEnded)
	s.Require().True(ok)
	s.Require().Equal(comm.ReasonWinner, ended.Data.(EndedEvent).Reason)

	card := s.give(g.ID, order[1], rules.Red, "2")
	_, err = s.svc.PlayCard(s.ctx, g.ID, order[1], card, "")
	s.Require().ErrorIs(err, ErrNotInProgress)
}

func (s *ServiceSuite) TestStateView() {
	g := s.started(2)
	order := s.seats(g.ID)

	st, err := s.svc.State(s.ctx, g.ID, order[1])
	s.Require().NoError(err)
	s.Require().NotNil(st.TopCard)
	s.Require().Equal(st.TopCard.Color, st.TopColor)
	s.Require().Equal(order[0], st.Turn.UserID)
	s.Require().Len(st.Hand, 7)
	s.Require().Len(st.HandCounts, 2)

	_, err = s.svc.State(s.ctx, g.ID, 42)
	s.Require().ErrorIs(err, ErrNotParticipant)

	hand, err := s.svc.Hand(s.ctx, g.ID, order[0])
	s.Require().NoError(err)
	s.Require().Len(hand, 7)
}
