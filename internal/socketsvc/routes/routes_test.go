package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/socketsvc/broker"
	"github.com/avvvet/uno-services/internal/socketsvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type publisher struct {
	mu    sync.Mutex
	types []string
}

func (p *publisher) Publish(_ string, data []byte) error {
	var m comm.WSMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, m.Type)
	return nil
}

func (p *publisher) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

func TestSocketRoundTrip(t *testing.T) {
	auth := jwtauth.New("HS256", []byte("secret"), nil)
	_, tok, err := auth.Encode(map[string]interface{}{"user_id": 4})
	require.NoError(t, err)

	pub := &publisher{}
	s := ws.NewWs()
	b := broker.NewBroker(nil, s.GetConnection, s.GetRoomSockets).WithPublisher(pub)
	s.Broker = b

	r := chi.NewRouter()
	SetRoutes(r, s, auth, "0")
	srv := httptest.NewServer(r)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?game_id=9", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?game_id=9&jwt="+tok, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(pub.seen()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{comm.MsgPlayerConnected}, pub.seen())

	raw, _ := json.Marshal(comm.WSMessage{Type: comm.EventTurnChanged, Room: comm.GameRoom(9), Data: json.RawMessage(`{"current_player_id":4}`)})
	b.Deliver(raw)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got comm.WSMessage
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, comm.EventTurnChanged, got.Type)
	require.JSONEq(t, `{"current_player_id":4}`, string(got.Data))

	require.NoError(t, conn.WriteJSON(comm.WSMessage{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "pong", got.Type)

	conn.Close()
	require.Eventually(t, func() bool {
		seen := pub.seen()
		return len(seen) == 2 && seen[1] == comm.MsgPlayerDisconnected
	}, time.Second, 5*time.Millisecond)
}

func TestHealth(t *testing.T) {
	r := chi.NewRouter()
	SetRoutes(r, ws.NewWs(), jwtauth.New("HS256", []byte("secret"), nil), "8082")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "8082")
}
