// Package robot seats computer players in lobbies that wait too long and
// plays their turns through the game engine.
package robot

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/avvvet/uno-services/internal/gamesvc/rules"
	"github.com/avvvet/uno-services/internal/gamesvc/service"
	"github.com/avvvet/uno-services/internal/gamesvc/turn"
	log "github.com/sirupsen/logrus"
)

// FirstID is the user id of the first robot; robots take a contiguous range.
const FirstID int64 = 9_000_000_001

// Engine is the part of the game service robots drive.
type Engine interface {
	ListGames(ctx context.Context, state string, limit int) ([]models.GameSummary, error)
	GetGame(ctx context.Context, gameID int64) (*service.GameView, error)
	JoinGame(ctx context.Context, gameID, userID int64, password string) (bool, error)
	State(ctx context.Context, gameID, userID int64) (*service.GameState, error)
	PlayCard(ctx context.Context, gameID, userID, cardID int64, chosenColor string) (*service.PlayResult, error)
	DrawCards(ctx context.Context, gameID, userID int64, count int) (*service.DrawResult, error)
	EndTurn(ctx context.Context, gameID, userID int64) (*turn.Turn, error)
}

type Config struct {
	Count     int           // robots available
	JoinAfter time.Duration // lobby age before a robot takes a seat
	Think     time.Duration // pause before a robot moves
}

type Pool struct {
	engine Engine
	cfg    Config
	now    func() time.Time

	mu     sync.Mutex
	moving map[int64]bool // games with a robot move in flight
	wg     sync.WaitGroup
}

func NewPool(engine Engine, cfg Config) *Pool {
	return &Pool{
		engine: engine,
		cfg:    cfg,
		now:    time.Now,
		moving: make(map[int64]bool),
	}
}

func (p *Pool) IsRobot(userID int64) bool {
	return userID >= FirstID && userID < FirstID+int64(p.cfg.Count)
}

// Fill seats one robot in every public lobby that has waited longer than
// JoinAfter with a free seat and no robot yet. It returns the seats taken.
func (p *Pool) Fill(ctx context.Context) (int, error) {
	lobbies, err := p.engine.ListGames(ctx, models.StateLobby, 100)
	if err != nil {
		return 0, err
	}

	joined := 0
	for _, g := range lobbies {
		if g.IsPrivate || g.PlayerCount >= g.Capacity || p.now().Sub(g.CreatedAt) < p.cfg.JoinAfter {
			continue
		}
		view, err := p.engine.GetGame(ctx, g.ID)
		if err != nil {
			log.Errorf("Error loading lobby %d: %v", g.ID, err)
			continue
		}
		id, ok := p.freeRobot(view.Players)
		if !ok {
			continue
		}
		if _, err := p.engine.JoinGame(ctx, g.ID, id, ""); err != nil {
			log.Warnf("robot %d could not join game %d: %v", id, g.ID, err)
			continue
		}
		log.WithFields(log.Fields{"game_id": g.ID, "user_id": id}).Info("robot joined lobby")
		joined++
	}
	return joined, nil
}

// freeRobot picks the lowest robot id not seated yet, or nothing when a
// robot already sits at the table.
func (p *Pool) freeRobot(players []models.Participant) (int64, bool) {
	seated := make(map[int64]bool, len(players))
	for _, pl := range players {
		if p.IsRobot(pl.UserID) {
			return 0, false
		}
		seated[pl.UserID] = true
	}
	for i := 0; i < p.cfg.Count; i++ {
		if id := FirstID + int64(i); !seated[id] {
			return id, true
		}
	}
	return 0, false
}

// Handle consumes one game service envelope and, when it announces a robot's
// turn in a game room, starts that move in the background. It never blocks
// the caller, so moves in different games run side by side.
func (p *Pool) Handle(ctx context.Context, raw []byte) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(raw, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}
	if msg.Type != comm.EventTurnChanged {
		return
	}

	var ev service.TurnEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Errorf("Error decoding %s: %s", msg.Type, err)
		return
	}
	if !msg.Addresses().Contains(comm.GameRoom(ev.GameID)) || !p.IsRobot(ev.UserID) || !p.begin(ev.GameID) {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.done(ev.GameID)
		p.move(ctx, ev.GameID, ev.UserID)
	}()
}

// Wait blocks until every move started by Handle has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) move(ctx context.Context, gameID, userID int64) {
	if p.cfg.Think > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Think):
		}
	}
	if err := p.TakeTurn(ctx, gameID, userID); err != nil {
		log.Errorf("robot %d failed its turn in game %d: %v", userID, gameID, err)
	}
}

func (p *Pool) begin(gameID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.moving[gameID] {
		return false
	}
	p.moving[gameID] = true
	return true
}

func (p *Pool) done(gameID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.moving, gameID)
}

// TakeTurn makes one complete move for userID: settle an owed draw, else
// play a legal card, else draw one and play it if possible or pass.
func (p *Pool) TakeTurn(ctx context.Context, gameID, userID int64) error {
	st, err := p.engine.State(ctx, gameID, userID)
	if err != nil {
		return err
	}
	if st.Game.State != models.StateInProgress || st.Turn == nil || st.Turn.UserID != userID {
		return nil
	}

	if card, color, ok := Choose(st.Hand, st.TopCard, st.TopColor); ok {
		_, err := p.engine.PlayCard(ctx, gameID, userID, card.ID, color)
		if !errors.Is(err, service.ErrDrawPending) {
			return err
		}
	}

	res, err := p.engine.DrawCards(ctx, gameID, userID, 1)
	if err != nil {
		return err
	}
	if res.Forced {
		return nil
	}
	if card, color, ok := Choose(res.Cards, st.TopCard, st.TopColor); ok {
		_, err := p.engine.PlayCard(ctx, gameID, userID, card.ID, color)
		return err
	}
	_, err = p.engine.EndTurn(ctx, gameID, userID)
	return err
}

// Choose picks the card to play on top. Coloured cards go before wilds and
// action cards before numbers; a wild takes the colour the rest of the hand
// holds most of. ok is false when nothing in hand is playable.
func Choose(hand []models.Card, top *models.Card, topColor string) (models.Card, string, bool) {
	var topFace *rules.Face
	if top != nil {
		topFace = &rules.Face{Color: top.Color, Value: top.Value}
	}

	best, found := models.Card{}, false
	for _, c := range hand {
		f := rules.Face{Color: c.Color, Value: c.Value}
		if !rules.CanPlay(f, topFace, topColor) {
			continue
		}
		if !found || rank(f) > rank(rules.Face{Color: best.Color, Value: best.Value}) {
			best, found = c, true
		}
	}
	if !found {
		return models.Card{}, "", false
	}
	if best.Color != rules.Wild {
		return best, "", true
	}
	return best, favouriteColor(hand, best.ID), true
}

func rank(f rules.Face) int {
	switch {
	case f.IsWild():
		return 0
	case f.IsAction():
		return 2
	}
	return 1
}

func favouriteColor(hand []models.Card, skip int64) string {
	counts := make(map[string]int, len(rules.SuitColors))
	for _, c := range hand {
		if c.ID != skip && c.Color != rules.Wild {
			counts[c.Color]++
		}
	}
	color := rules.SuitColors[0]
	for _, c := range rules.SuitColors {
		if counts[c] > counts[color] {
			color = c
		}
	}
	return color
}
