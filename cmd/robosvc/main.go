package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/uno-services/configs"
	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/broker"
	svcconfig "github.com/avvvet/uno-services/internal/gamesvc/config"
	"github.com/avvvet/uno-services/internal/gamesvc/db"
	"github.com/avvvet/uno-services/internal/gamesvc/service"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
	natscli "github.com/avvvet/uno-services/internal/nats"
	"github.com/avvvet/uno-services/internal/robot"
)

const SERVICE_NAME = "robot"

var instanceId string

func setup() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
}

// filler is the part of the robot pool the lobby monitor drives.
type filler interface {
	Fill(ctx context.Context) (int, error)
}

func main() {
	setup()
	log.Printf("Starting Robot Service...")

	cfg, err := svcconfig.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	conn, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close(conn)
	log.Infof("%s connection established successfully", cfg.DBDriver)

	n, err := natscli.Connect(SERVICE_NAME+"-"+instanceId, cfg.NatsURL, cfg.NatsToken)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer n.Conn.Close()
	log.Infof("NATS connected at %s", n.Url)

	// robot moves reach players through the same topic the game service uses
	games := service.NewGameService(store.New(conn), broker.NewBroker(n.Conn, nil), cfg.Engine())
	defer games.Shutdown()

	pool := robot.NewPool(games, cfg.Robots())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Handle only dispatches, so this callback never holds up other games
	sub, err := n.Conn.Subscribe(comm.TopicGameService, func(m *nats.Msg) {
		pool.Handle(ctx, m.Data)
	})
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", comm.TopicGameService, err)
	}
	defer sub.Unsubscribe()

	log.Printf("Game monitoring started - checking every %s", cfg.RobotPoll)
	monitor(ctx, pool, cfg.RobotPoll)
	pool.Wait()
	log.Infof("%s service stopped", SERVICE_NAME)
}

// monitor fills waiting lobbies once per interval until ctx is done.
func monitor(ctx context.Context, robots filler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			joined, err := robots.Fill(ctx)
			if err != nil {
				log.Errorf("Error filling lobbies: %v", err)
				continue
			}
			if joined > 0 {
				log.Infof("%d robots joined waiting lobbies", joined)
			}
		}
	}
}
