package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/service"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is the part of a NATS connection the broker writes through.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Presence receives connection changes reported by the socket service.
type Presence interface {
	Reconnect(ctx context.Context, gameID, userID int64) error
	MarkDisconnected(ctx context.Context, gameID, userID int64) error
}

type Broker struct {
	Conn     *nats.Conn
	pub      Publisher
	presence Presence
}

func NewBroker(nc *nats.Conn, presence Presence) *Broker {
	return &Broker{
		Conn:     nc,
		pub:      nc,
		presence: presence,
	}
}

// SetPresence wires the engine in once it exists; the engine itself takes
// the broker as its Broadcaster.
func (b *Broker) SetPresence(p Presence) {
	b.presence = p
}

// Broadcast wraps an engine event in a single envelope naming all of its
// rooms; the socket service writes it once to each socket in their union.
// NATS buffers publishes, so this never waits on clients.
func (b *Broker) Broadcast(ev comm.Event) {
	if len(ev.Rooms) == 0 {
		return
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		log.Errorf("unable to marshal %s event for game %d: %s", ev.Type, ev.GameID, err)
		return
	}

	rooms := append([]string(nil), ev.Rooms...)
	sort.Strings(rooms)
	msg := &comm.WSMessage{
		Type:  ev.Type,
		Data:  data,
		Rooms: rooms,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.Publish(comm.TopicGameService, payload)
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	b.dispatch(msgNat.Data)
}

func (b *Broker) dispatch(raw []byte) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(raw, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case comm.MsgPlayerConnected, comm.MsgPlayerDisconnected:
		var p comm.PresenceData
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			log.Errorf("Error decoding %s: %s", msg.Type, err)
			return
		}
		if p.GameID <= 0 || p.UserID <= 0 {
			// socket not bound to a game
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		if msg.Type == comm.MsgPlayerConnected {
			err = b.presence.Reconnect(ctx, p.GameID, p.UserID)
		} else {
			err = b.presence.MarkDisconnected(ctx, p.GameID, p.UserID)
		}

		switch {
		case err == nil:
		case isStale(err):
			log.Debugf("%s for user %d in game %d ignored: %s", msg.Type, p.UserID, p.GameID, err)
		default:
			log.Errorf("Error handling %s for user %d in game %d: %s", msg.Type, p.UserID, p.GameID, err)
		}
	default:
		log.Errorf("Unknown message %q", msg.Type)
	}
}

// isStale reports errors that only mean the socket outlived its seat.
func isStale(err error) bool {
	return errors.Is(err, service.ErrGameNotFound) ||
		errors.Is(err, service.ErrNotParticipant) ||
		errors.Is(err, service.ErrGameEnded)
}

// consume message from socket service
func (b *Broker) SubscribSocketService(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message for socket service to consume
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.pub.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
