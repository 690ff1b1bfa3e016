package broker

import (
	"encoding/json"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/hashicorp/go-set/v3"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Sender writes a message to one web client.
type Sender interface {
	WriteJSON(v interface{}) error
}

type Publisher interface {
	Publish(subject string, data []byte) error
}

type Broker struct {
	Conn           *nats.Conn
	pub            Publisher
	GetConnection  func(string) (Sender, bool)
	GetRoomSockets func(string) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncGetConnection func(string) (Sender, bool), fncGetRoomSockets func(string) ([]string, bool)) *Broker {
	b := &Broker{
		Conn:           conn,
		GetConnection:  fncGetConnection,
		GetRoomSockets: fncGetRoomSockets,
	}
	if conn != nil {
		b.pub = conn
	}
	return b
}

// WithPublisher replaces the NATS connection used for publishing.
func (b *Broker) WithPublisher(p Publisher) *Broker {
	b.pub = p
	return b
}

// consume message from game service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to game service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.pub.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages receive message from game service
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	b.Deliver(msgNats.Data)
}

// Deliver routes one envelope from the game service to a single socket when
// it names one, otherwise once to every socket in any of its rooms.
func (b *Broker) Deliver(raw []byte) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(raw, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	if message.SocketId != "" {
		b.sendMessage(message.SocketId, message)
		return
	}

	rooms := message.Addresses()
	if rooms.Empty() {
		log.Errorf("message %s has no room or socket", message.Type)
		return
	}
	targets := set.New[string](8)
	for _, room := range rooms.Slice() {
		if sockets, ok := b.GetRoomSockets(room); ok {
			targets.InsertSlice(sockets)
		}
	}
	for _, socketId := range targets.Slice() {
		b.sendMessage(socketId, message)
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(socketId string, m *comm.WSMessage) {
	if conn, ok := b.GetConnection(socketId); ok {
		if err := conn.WriteJSON(m); err != nil {
			log.Errorf("write to socket %s failed: %v", socketId, err)
		}
	}
}
