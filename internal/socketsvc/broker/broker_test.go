package broker

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/stretchr/testify/assert"
)

type recordingSender struct {
	got []*comm.WSMessage
	err error
}

func (r *recordingSender) WriteJSON(v interface{}) error {
	r.got = append(r.got, v.(*comm.WSMessage))
	return r.err
}

func newTestBroker(conns map[string]*recordingSender, rooms map[string][]string) *Broker {
	return NewBroker(nil,
		func(id string) (Sender, bool) {
			c, ok := conns[id]
			return c, ok
		},
		func(room string) ([]string, bool) {
			ids, ok := rooms[room]
			return ids, ok
		})
}

func envelope(t *testing.T, m comm.WSMessage) []byte {
	raw, err := json.Marshal(m)
	assert.NoError(t, err)
	return raw
}

func TestDeliverToRoom(t *testing.T) {
	conns := map[string]*recordingSender{"a": {}, "b": {}, "c": {}}
	b := newTestBroker(conns, map[string][]string{"GAME_1": {"a", "b", "gone"}})

	b.Deliver(envelope(t, comm.WSMessage{Type: comm.EventCardPlayed, Room: "GAME_1", Data: json.RawMessage(`{"x":1}`)}))

	assert.Len(t, conns["a"].got, 1)
	assert.Len(t, conns["b"].got, 1)
	assert.Empty(t, conns["c"].got)
	assert.Equal(t, "GAME_1", conns["a"].got[0].Room)
	assert.JSONEq(t, `{"x":1}`, string(conns["a"].got[0].Data))
}

func TestDeliverToSocket(t *testing.T) {
	conns := map[string]*recordingSender{"a": {}, "b": {err: errors.New("closed")}}
	b := newTestBroker(conns, nil)

	b.Deliver(envelope(t, comm.WSMessage{Type: "pong", SocketId: "b"}))
	b.Deliver(envelope(t, comm.WSMessage{Type: comm.EventGameCreated, Room: comm.RoomLobby}))
	b.Deliver(envelope(t, comm.WSMessage{Type: "orphan"}))
	b.Deliver([]byte("{"))

	assert.Len(t, conns["b"].got, 1)
	assert.Empty(t, conns["a"].got)
}

func TestDeliverOncePerSocketAcrossRooms(t *testing.T) {
	conns := map[string]*recordingSender{"a": {}, "b": {}, "c": {}}
	b := newTestBroker(conns, map[string][]string{
		"GAME_7":         {"a", "b"},
		"WAITING_ROOM_7": {"a", "b"},
		"LOBBY":          {"a", "b", "c"},
	})

	b.Deliver(envelope(t, comm.WSMessage{
		Type:  comm.EventGameStateUpdate,
		Rooms: []string{"GAME_7", "LOBBY", "WAITING_ROOM_7"},
		Data:  json.RawMessage(`{"game_id":7}`),
	}))

	for id, c := range conns {
		assert.Len(t, c.got, 1, "socket %s", id)
	}
}
