package ws

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/socketsvc/broker"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-set/v3"
	log "github.com/sirupsen/logrus"
)

// Conn is the part of a websocket connection the gateway writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// client is one open socket. Writes are serialized because a websocket
// connection allows one writer at a time.
type client struct {
	mu     sync.Mutex
	conn   Conn
	userID int64
	gameID int64
	rooms  *set.Set[string]
}

func (c *client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // socketId -> *client

	mu      sync.RWMutex
	roomMap map[string]*set.Set[string] // room -> socketIds

	Broker *broker.Broker
}

func NewWs() *Ws {
	return &Ws{roomMap: make(map[string]*set.Set[string])}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "join-room":
		s.handleRoom(socketId, message, true)
	case "leave-room":
		s.handleRoom(socketId, message, false)
	case "ping":
		s.Send(socketId, &comm.WSMessage{Type: "pong"})
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) handleRoom(socketId string, msg *comm.WSMessage, join bool) {
	var payload struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: malformed %s payload from socket %s: %s", msg.Type, socketId, err)
		return
	}

	c, ok := s.client(socketId)
	if !ok {
		return
	}
	if !mayJoin(c.userID, c.gameID, payload.Room) {
		log.Warnf("socket %s (user %d) refused room %q", socketId, c.userID, payload.Room)
		return
	}

	if join {
		s.Join(socketId, payload.Room)
	} else {
		s.Leave(socketId, payload.Room)
	}
}

// mayJoin keeps users out of other users' private rooms and out of the rooms
// of games other than the one their socket was opened for.
func mayJoin(userID, gameID int64, room string) bool {
	switch {
	case room == comm.RoomLobby:
		return true
	case strings.HasPrefix(room, "USER_"):
		return room == comm.UserRoom(userID)
	case strings.HasPrefix(room, "GAME_"), strings.HasPrefix(room, "WAITING_ROOM_"):
		return gameID > 0 && (room == comm.GameRoom(gameID) || room == comm.WaitingRoom(gameID))
	}
	return false
}

// HandleConnect registers a socket, puts it in the lobby, the user's private
// room and, when bound to a game, the game rooms, then reports the user as
// connected.
func (s *Ws) HandleConnect(socketId string, conn Conn, userID, gameID int64) {
	c := &client{conn: conn, userID: userID, gameID: gameID, rooms: set.New[string](4)}
	s.connMap.Store(socketId, c)

	s.Join(socketId, comm.RoomLobby)
	s.Join(socketId, comm.UserRoom(userID))
	if gameID > 0 {
		s.Join(socketId, comm.GameRoom(gameID))
		s.Join(socketId, comm.WaitingRoom(gameID))
		s.publishPresence(comm.MsgPlayerConnected, socketId, c)
	}
}

// HandleDisconnect forgets a socket. The user is reported disconnected from
// its game only when no other socket of theirs is still bound to it.
func (s *Ws) HandleDisconnect(socketId string) {
	v, ok := s.connMap.LoadAndDelete(socketId)
	if !ok {
		return
	}
	c := v.(*client)

	s.mu.Lock()
	for _, room := range c.rooms.Slice() {
		s.removeLocked(socketId, room)
	}
	s.mu.Unlock()

	if c.gameID > 0 && !s.userBound(c.userID, c.gameID) {
		s.publishPresence(comm.MsgPlayerDisconnected, socketId, c)
	}
}

func (s *Ws) userBound(userID, gameID int64) bool {
	bound := false
	s.connMap.Range(func(_, v interface{}) bool {
		c := v.(*client)
		if c.userID == userID && c.gameID == gameID {
			bound = true
			return false
		}
		return true
	})
	return bound
}

func (s *Ws) publishPresence(typ, socketId string, c *client) {
	if s.Broker == nil {
		return
	}
	data, err := json.Marshal(comm.PresenceData{UserID: c.userID, GameID: c.gameID, Socket: socketId})
	if err != nil {
		log.Errorf("Failed to marshal presence: %v", err)
		return
	}
	bytes, err := json.Marshal(&comm.WSMessage{Type: typ, Data: data, SocketId: socketId})
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.Publish(comm.TopicSocketService, bytes); err != nil {
		log.Errorf("Failed to publish %s for user %d: %v", typ, c.userID, err)
		return
	}
	log.Infof("Published %s for user %d game %d", typ, c.userID, c.gameID)
}

func (s *Ws) client(socketId string) (*client, bool) {
	v, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return v.(*client), true
}

// GetConnection returns a writer for the socket, safe for concurrent use.
func (s *Ws) GetConnection(socketId string) (broker.Sender, bool) {
	c, ok := s.client(socketId)
	if !ok {
		return nil, false
	}
	return c, true
}

func (s *Ws) Join(socketId, room string) {
	c, ok := s.client(socketId)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.roomMap[room]
	if !ok {
		members = set.New[string](8)
		s.roomMap[room] = members
	}
	members.Insert(socketId)
	c.rooms.Insert(room)
}

func (s *Ws) Leave(socketId, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(socketId, room)
	if c, ok := s.client(socketId); ok {
		c.rooms.Remove(room)
	}
}

func (s *Ws) removeLocked(socketId, room string) {
	members, ok := s.roomMap[room]
	if !ok {
		return
	}
	members.Remove(socketId)
	if members.Empty() {
		delete(s.roomMap, room)
	}
}

func (s *Ws) GetRoomSockets(roomId string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.roomMap[roomId]
	if !ok {
		return nil, false
	}
	return members.Slice(), true
}

// Send writes one message to one socket.
func (s *Ws) Send(socketId string, m *comm.WSMessage) {
	c, ok := s.client(socketId)
	if !ok {
		return
	}
	if err := c.WriteJSON(m); err != nil {
		log.Errorf("write to socket %s failed: %v", socketId, err)
	}
}

var _ Conn = (*websocket.Conn)(nil)
