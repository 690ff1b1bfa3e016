package robot

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/db"
	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/avvvet/uno-services/internal/gamesvc/rules"
	"github.com/avvvet/uno-services/internal/gamesvc/service"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
	"github.com/avvvet/uno-services/internal/gamesvc/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(id int64, color, value string) models.Card {
	return models.Card{ID: id, Color: color, Value: value}
}

func TestChoose(t *testing.T) {
	red5 := card(100, rules.Red, "5")

	tests := []struct {
		name     string
		hand     []models.Card
		top      *models.Card
		topColor string
		wantID   int64
		wantCol  string
		wantOK   bool
	}{
		{"nothing playable", []models.Card{card(1, rules.Blue, "3")}, &red5, rules.Red, 0, "", false},
		{"matches colour", []models.Card{card(1, rules.Blue, "3"), card(2, rules.Red, "9")}, &red5, rules.Red, 2, "", true},
		{"matches value", []models.Card{card(1, rules.Green, "5")}, &red5, rules.Red, 1, "", true},
		{"action before number", []models.Card{card(1, rules.Red, "2"), card(2, rules.Red, rules.Skip)}, &red5, rules.Red, 2, "", true},
		{"number before wild", []models.Card{card(1, rules.Wild, rules.WildCard), card(2, rules.Red, "2")}, &red5, rules.Red, 2, "", true},
		{
			"wild takes the most held colour",
			[]models.Card{card(1, rules.Wild, rules.WildDrawFour), card(2, rules.Green, "1"), card(3, rules.Green, "8"), card(4, rules.Blue, "1")},
			&red5, rules.Red, 1, rules.Green, true,
		},
		{"lone wild defaults to red", []models.Card{card(1, rules.Wild, rules.WildCard)}, &red5, rules.Red, 1, rules.Red, true},
		{"empty pile takes anything", []models.Card{card(1, rules.Yellow, "4")}, nil, "", 1, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, color, ok := Choose(tc.hand, tc.top, tc.topColor)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantID, got.ID)
			assert.Equal(t, tc.wantCol, color)
		})
	}
}

type fakeEngine struct {
	mu      sync.Mutex
	lobbies []models.GameSummary
	players map[int64][]models.Participant
	joined  map[int64]int64
	state   *service.GameState
	turns   int
}

func (f *fakeEngine) ListGames(context.Context, string, int) ([]models.GameSummary, error) {
	return f.lobbies, nil
}

func (f *fakeEngine) GetGame(_ context.Context, gameID int64) (*service.GameView, error) {
	return &service.GameView{Players: f.players[gameID]}, nil
}

func (f *fakeEngine) JoinGame(_ context.Context, gameID, userID int64, _ string) (bool, error) {
	f.joined[gameID] = userID
	return false, nil
}

func (f *fakeEngine) State(context.Context, int64, int64) (*service.GameState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns++
	return f.state, nil
}

func (f *fakeEngine) PlayCard(context.Context, int64, int64, int64, string) (*service.PlayResult, error) {
	return &service.PlayResult{}, nil
}

func (f *fakeEngine) DrawCards(context.Context, int64, int64, int) (*service.DrawResult, error) {
	return &service.DrawResult{}, nil
}

func (f *fakeEngine) EndTurn(context.Context, int64, int64) (*turn.Turn, error) {
	return &turn.Turn{}, nil
}

func (f *fakeEngine) stateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turns
}

func TestFillSeatsOneRobotPerWaitingLobby(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Minute)
	lobby := func(id int64, created time.Time, players, capacity int, private bool) models.GameSummary {
		return models.GameSummary{
			Game:        models.Game{ID: id, CreatedAt: created, Capacity: capacity, IsPrivate: private},
			PlayerCount: players,
		}
	}

	f := &fakeEngine{
		lobbies: []models.GameSummary{
			lobby(1, old, 1, 4, false),
			lobby(2, now, 1, 4, false),   // too young
			lobby(3, old, 4, 4, false),   // full
			lobby(4, old, 1, 4, true),    // private
			lobby(5, old, 2, 4, false),   // robot already seated
			lobby(6, old, 2, 4, false),
		},
		players: map[int64][]models.Participant{
			1: {{UserID: 7}},
			5: {{UserID: 7}, {UserID: FirstID}},
			6: {{UserID: 8}, {UserID: 9}},
		},
		joined: map[int64]int64{},
	}

	p := NewPool(f, Config{Count: 3, JoinAfter: 30 * time.Second})
	p.now = func() time.Time { return now }

	n, err := p.Fill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[int64]int64{1: FirstID, 6: FirstID}, f.joined)
}

func TestIsRobot(t *testing.T) {
	p := NewPool(&fakeEngine{}, Config{Count: 2})
	assert.True(t, p.IsRobot(FirstID))
	assert.True(t, p.IsRobot(FirstID+1))
	assert.False(t, p.IsRobot(FirstID+2))
	assert.False(t, p.IsRobot(42))
}

func envelope(t *testing.T, typ string, rooms []string, data any) []byte {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	msg, err := json.Marshal(comm.WSMessage{Type: typ, Rooms: rooms, Data: raw})
	require.NoError(t, err)
	return msg
}

func TestHandleActsOnRobotTurnsInGameRoom(t *testing.T) {
	f := &fakeEngine{state: &service.GameState{Game: models.Game{State: models.StateEnded}}}
	p := NewPool(f, Config{Count: 1})
	ctx := context.Background()

	robotTurn := service.TurnEvent{GameID: 3, Turn: turn.Turn{UserID: FirstID}}
	humanTurn := service.TurnEvent{GameID: 3, Turn: turn.Turn{UserID: 5}}

	gameRooms := comm.GameRooms{}.AddressesFor(3).Slice()

	p.Handle(ctx, envelope(t, comm.EventTurnChanged, []string{comm.WaitingRoom(3)}, robotTurn))
	p.Handle(ctx, envelope(t, comm.EventTurnChanged, gameRooms, humanTurn))
	p.Handle(ctx, envelope(t, comm.EventCardPlayed, gameRooms, robotTurn))
	p.Handle(ctx, []byte("{"))
	p.Wait()
	assert.Zero(t, f.stateCalls())

	p.Handle(ctx, envelope(t, comm.EventTurnChanged, gameRooms, robotTurn))
	p.Wait()
	assert.Equal(t, 1, f.stateCalls())
}

func TestHandleMovesGamesSideBySide(t *testing.T) {
	f := &fakeEngine{state: &service.GameState{Game: models.Game{State: models.StateEnded}}}
	p := NewPool(f, Config{Count: 2, Think: 100 * time.Millisecond})
	ctx := context.Background()

	turnIn := func(gameID, userID int64) []byte {
		ev := service.TurnEvent{GameID: gameID, Turn: turn.Turn{UserID: userID}}
		return envelope(t, comm.EventTurnChanged, []string{comm.GameRoom(gameID)}, ev)
	}

	start := time.Now()
	p.Handle(ctx, turnIn(1, FirstID))
	p.Handle(ctx, turnIn(2, FirstID+1))
	// a second announcement while game 1 is still moving is dropped
	p.Handle(ctx, turnIn(1, FirstID))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "Handle must not wait for the move")

	p.Wait()
	assert.Equal(t, 2, f.stateCalls())
	assert.Less(t, time.Since(start), 190*time.Millisecond, "moves in different games overlap")
}

type counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *counter) Broadcast(ev comm.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[ev.Type]++
}

func (c *counter) get(typ string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[typ]
}

func TestRobotsPlayAgainstEachOther(t *testing.T) {
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer conn.Close()

	events := &counter{counts: map[string]int{}}
	svc := service.NewGameService(store.New(conn), events, service.Config{
		GracePeriod:     time.Minute,
		HostTimeout:     time.Minute,
		HandSize:        7,
		StarterAttempts: 20,
	})
	defer svc.Shutdown()

	ctx := context.Background()
	g, err := svc.CreateGame(ctx, FirstID, service.CreateParams{Name: "bots", Capacity: 2})
	require.NoError(t, err)
	_, err = svc.JoinGame(ctx, g.ID, FirstID+1, "")
	require.NoError(t, err)
	_, err = svc.StartGame(ctx, g.ID, FirstID)
	require.NoError(t, err)

	p := NewPool(svc, Config{Count: 2})
	for i := 0; i < 30; i++ {
		if events.get(comm.EventGameEnded) > 0 {
			break
		}
		current, err := svc.CurrentTurn(ctx, g.ID)
		require.NoError(t, err)
		require.True(t, p.IsRobot(current.UserID))

		before := events.get(comm.EventTurnChanged)
		require.NoError(t, p.TakeTurn(ctx, g.ID, current.UserID))
		moved := events.get(comm.EventTurnChanged) > before || events.get(comm.EventGameEnded) > 0
		require.True(t, moved, "turn %d made no move", i)
	}
}
