package service

import (
	"context"
	"errors"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/avvvet/uno-services/internal/gamesvc/rules"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
	"github.com/avvvet/uno-services/internal/gamesvc/turn"
	log "github.com/sirupsen/logrus"
)

type PlayResult struct {
	Card     models.Card `json:"card"`
	Color    string      `json:"color"`
	WinnerID *int64      `json:"winner_id,omitempty"`
	Skipped  *int64      `json:"skipped_id,omitempty"`
	Turn     *turn.Turn  `json:"turn,omitempty"`
}

type DrawResult struct {
	Cards  []models.Card `json:"cards"`
	Forced bool          `json:"forced"`
	Turn   *turn.Turn    `json:"turn,omitempty"`
}

// GameState is everything a seated player may see.
type GameState struct {
	Game       models.Game          `json:"game"`
	Players    []models.Participant `json:"players"`
	TopCard    *models.Card         `json:"top_card"`
	TopColor   string               `json:"top_color"`
	Turn       *turn.Turn           `json:"turn,omitempty"`
	HandCounts []models.HandCount   `json:"hand_counts"`
	DeckCount  int                  `json:"deck_count"`
	Hand       []models.Card        `json:"hand"`
}

// requireTurn checks the game is running and it is userID's turn.
func requireTurn(ctx context.Context, q *store.Store, g *models.Game, userID int64) (turn.Turn, error) {
	if g.State != models.StateInProgress {
		return turn.Turn{}, ErrNotInProgress
	}
	t, err := resolveTurn(ctx, q, g.ID)
	if err != nil {
		return turn.Turn{}, err
	}
	if t.UserID != userID {
		return turn.Turn{}, ErrNotYourTurn
	}
	return t, nil
}

// owedDraw is the number of cards userID must draw because of the move
// just before theirs.
func owedDraw(last *models.Move, userID int64) int {
	if last == nil || last.UserID == userID {
		return 0
	}
	return last.Owed()
}

// topColor is the colour in force on the discard pile: the chosen colour
// for a wild, the card's own colour otherwise.
func topColor(ctx context.Context, q *store.Store, gameID int64, top *models.Card) (string, error) {
	if top == nil {
		return "", nil
	}
	if !face(top).IsWild() {
		return top.Color, nil
	}
	return q.Moves.ChosenColor(ctx, gameID, top.ID)
}

func validatePlay(ctx context.Context, q *store.Store, g *models.Game, userID, cardID int64, chosenColor string) (*models.Card, error) {
	if _, err := requireTurn(ctx, q, g, userID); err != nil {
		return nil, err
	}

	last, err := q.Moves.Last(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if owedDraw(last, userID) > 0 {
		return nil, ErrDrawPending
	}

	card, err := q.Cards.Get(ctx, g.ID, cardID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCardNotInHand
	}
	if err != nil {
		return nil, err
	}
	if card.OwnerID != userID {
		return nil, ErrCardNotInHand
	}

	f := face(card)
	if f.IsWild() {
		if chosenColor == "" {
			return nil, ErrColorRequired
		}
		if !rules.ValidColor(chosenColor) {
			return nil, ErrInvalidColor
		}
	}

	top, err := q.Cards.TopOfDiscard(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if top == nil {
		return card, nil
	}
	color, err := topColor(ctx, q, g.ID, top)
	if err != nil {
		return nil, err
	}
	topFace := face(top)
	if !rules.CanPlay(f, &topFace, color) {
		return nil, ErrIllegalCard
	}
	return card, nil
}

// ValidatePlay reports whether userID may play cardID now without changing
// anything.
func (s *GameService) ValidatePlay(ctx context.Context, gameID, userID, cardID int64, chosenColor string) error {
	g, err := s.store.Games.GetGameByID(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return s.reject(ErrGameNotFound)
	}
	if err != nil {
		return err
	}
	_, err = validatePlay(ctx, s.store, g, userID, cardID, chosenColor)
	return s.reject(err)
}

// PlayCard plays a card from the caller's hand onto the discard pile and
// applies its effect. Emptying the hand wins the game.
func (s *GameService) PlayCard(ctx context.Context, gameID, userID, cardID int64, chosenColor string) (*PlayResult, error) {
	var out outbox
	var res PlayResult

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		card, err := validatePlay(ctx, tx, g, userID, cardID, chosenColor)
		if err != nil {
			return err
		}

		ok, err := tx.Cards.PlayCard(ctx, cardID, gameID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCardConflict
		}
		card.OwnerID = models.OwnerNeutral
		card.Location = models.LocationDiscard

		move := &models.Move{
			GameID:   gameID,
			UserID:   userID,
			PlayType: rules.PlayType(card.Value),
			CardID:   &card.ID,
			Reverse:  card.Value == rules.Reverse,
		}
		if amount := rules.DrawAmount(card.Value); amount > 0 {
			move.DrawAmount = &amount
		}
		color := card.Color
		if face(card).IsWild() {
			color = chosenColor
			move.ChosenColor = &chosenColor
		}
		if err := tx.Moves.Record(ctx, move); err != nil {
			return err
		}

		res.Card = *card
		res.Color = color
		s.toGame(&out, comm.EventCardPlayed, gameID, CardPlayedEvent{GameID: gameID, UserID: userID, Card: *card, Color: color})
		if face(card).IsWild() {
			s.toGame(&out, comm.EventColorChosen, gameID, ColorEvent{GameID: gameID, UserID: userID, Color: chosenColor})
		}

		left, err := tx.Cards.HandCount(ctx, gameID, userID)
		if err != nil {
			return err
		}
		if err := s.handCounts(ctx, tx, &out, gameID); err != nil {
			return err
		}
		if left == 0 {
			res.WinnerID = &userID
			return s.declareWinner(ctx, tx, &out, g, userID)
		}

		if card.Value == rules.Skip {
			skipped, err := resolveTurn(ctx, tx, gameID)
			if err != nil {
				return err
			}
			// the skipped seat forfeits its move
			if err := tx.Moves.Record(ctx, &models.Move{GameID: gameID, UserID: skipped.UserID, PlayType: rules.PlayTypeSkip}); err != nil {
				return err
			}
			res.Skipped = &skipped.UserID
			s.toGame(&out, comm.EventPlayerSkipped, gameID, PlayerEvent{GameID: gameID, UserID: skipped.UserID})
		}

		t, err := resolveTurn(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if move.Reverse {
			s.toGame(&out, comm.EventDirectionReversed, gameID, DirectionEvent{GameID: gameID, Direction: t.Direction})
		}
		res.Turn = &t
		s.toGame(&out, comm.EventTurnChanged, gameID, TurnEvent{GameID: gameID, Turn: t})
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.metrics.Moves.WithLabelValues(rules.PlayType(res.Card.Value)).Inc()
	s.publish(out)

	log.WithFields(log.Fields{"game_id": gameID, "user_id": userID, "card": res.Card.Color + "-" + res.Card.Value}).Debug("card played")
	return &res, nil
}

// DrawCards draws for the player whose turn it is. A draw owed by a draw
// card overrides count and forfeits the turn; a voluntary draw keeps it.
func (s *GameService) DrawCards(ctx context.Context, gameID, userID int64, count int) (*DrawResult, error) {
	var out outbox
	var res DrawResult

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if _, err := requireTurn(ctx, tx, g, userID); err != nil {
			return err
		}

		last, err := tx.Moves.Last(ctx, gameID)
		if err != nil {
			return err
		}
		n := count
		if n <= 0 {
			n = 1
		}
		if owed := owedDraw(last, userID); owed > 0 {
			n = owed
			res.Forced = true
		}

		cards, err := tx.Cards.Draw(ctx, gameID, userID, n)
		if err != nil {
			return err
		}
		res.Cards = cards

		s.toGame(&out, comm.EventCardsDrawn, gameID, DrawEvent{GameID: gameID, UserID: userID, Count: n, Forced: res.Forced})
		if err := s.handCounts(ctx, tx, &out, gameID); err != nil {
			return err
		}

		if res.Forced {
			if err := tx.Moves.Record(ctx, &models.Move{GameID: gameID, UserID: userID, PlayType: rules.PlayTypeDraw}); err != nil {
				return err
			}
			t, err := resolveTurn(ctx, tx, gameID)
			if err != nil {
				return err
			}
			res.Turn = &t
			s.toGame(&out, comm.EventTurnChanged, gameID, TurnEvent{GameID: gameID, Turn: t})
		}
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	if res.Forced {
		s.metrics.Moves.WithLabelValues(rules.PlayTypeDraw).Inc()
	}
	s.publish(out)
	return &res, nil
}

// EndTurn passes the turn by recording a cardless draw move.
func (s *GameService) EndTurn(ctx context.Context, gameID, userID int64) (*turn.Turn, error) {
	var out outbox
	var t turn.Turn

	err := s.store.Tx(ctx, func(tx *store.Store) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if _, err := requireTurn(ctx, tx, g, userID); err != nil {
			return err
		}
		last, err := tx.Moves.Last(ctx, gameID)
		if err != nil {
			return err
		}
		if owedDraw(last, userID) > 0 {
			return ErrDrawPending
		}

		if err := tx.Moves.Record(ctx, &models.Move{GameID: gameID, UserID: userID, PlayType: rules.PlayTypeDraw}); err != nil {
			return err
		}
		t, err = resolveTurn(ctx, tx, gameID)
		if err != nil {
			return err
		}
		s.toGame(&out, comm.EventTurnChanged, gameID, TurnEvent{GameID: gameID, Turn: t})
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.metrics.Moves.WithLabelValues(rules.PlayTypeDraw).Inc()
	s.publish(out)
	return &t, nil
}

func (s *GameService) handCounts(ctx context.Context, q *store.Store, out *outbox, gameID int64) error {
	counts, err := q.Cards.HandCounts(ctx, gameID)
	if err != nil {
		return err
	}
	s.toGame(out, comm.EventHandCountUpdated, gameID, HandCountEvent{GameID: gameID, Counts: counts})
	return nil
}

// CurrentTurn recomputes whose turn it is from the move log.
func (s *GameService) CurrentTurn(ctx context.Context, gameID int64) (*turn.Turn, error) {
	if _, err := s.store.Games.GetGameByID(ctx, gameID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.reject(ErrGameNotFound)
		}
		return nil, err
	}
	t, err := resolveTurn(ctx, s.store, gameID)
	if err != nil {
		return nil, s.reject(err)
	}
	return &t, nil
}

func (s *GameService) Hand(ctx context.Context, gameID, userID int64) ([]models.Card, error) {
	if _, err := getParticipant(ctx, s.store, gameID, userID); err != nil {
		return nil, s.reject(err)
	}
	return s.store.Cards.Hand(ctx, gameID, userID)
}

func (s *GameService) HandCounts(ctx context.Context, gameID int64) ([]models.HandCount, error) {
	return s.store.Cards.HandCounts(ctx, gameID)
}

// State returns the table as seen by userID.
func (s *GameService) State(ctx context.Context, gameID, userID int64) (*GameState, error) {
	view, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if _, err := getParticipant(ctx, s.store, gameID, userID); err != nil {
		return nil, s.reject(err)
	}

	st := &GameState{Game: view.Game, Players: view.Players}
	if st.TopCard, err = s.store.Cards.TopOfDiscard(ctx, gameID); err != nil {
		return nil, err
	}
	if st.TopColor, err = topColor(ctx, s.store, gameID, st.TopCard); err != nil {
		return nil, err
	}
	if view.State == models.StateInProgress {
		t, err := resolveTurn(ctx, s.store, gameID)
		if err != nil {
			return nil, err
		}
		st.Turn = &t
	}
	if st.HandCounts, err = s.store.Cards.HandCounts(ctx, gameID); err != nil {
		return nil, err
	}
	if st.DeckCount, err = s.store.Cards.DeckCount(ctx, gameID); err != nil {
		return nil, err
	}
	if st.Hand, err = s.store.Cards.Hand(ctx, gameID, userID); err != nil {
		return nil, err
	}
	return st, nil
}
