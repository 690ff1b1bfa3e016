package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/uno-services/configs"
	"github.com/avvvet/uno-services/internal/gamesvc/broker"
	svcconfig "github.com/avvvet/uno-services/internal/gamesvc/config"
	"github.com/avvvet/uno-services/internal/gamesvc/db"
	"github.com/avvvet/uno-services/internal/gamesvc/service"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
	natscli "github.com/avvvet/uno-services/internal/nats"
)

const SERVICE_NAME = "ctl"

var instanceId string

func setup() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
}

// sweeper is the part of the engine the control loop drives.
type sweeper interface {
	SweepEnded(ctx context.Context, cutoff time.Time) (int, error)
}

func main() {
	setup()

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

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME+"-"+instanceId, cfg.NatsURL, cfg.NatsToken)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Infof("NATS connection established successfully %s", n.Url)

	// removals are announced to the lobby through the same broker the game
	// service uses; this process never subscribes, so it needs no presence
	games := service.NewGameService(store.New(conn), broker.NewBroker(n.Conn, nil), cfg.Engine())
	defer games.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run(ctx, games, cfg.SweepInterval, cfg.Retention)
	log.Infof("%s service stopped", SERVICE_NAME)
}

// run sweeps once per interval until ctx is done.
func run(ctx context.Context, games sweeper, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, games, retention)
		}
	}
}

func sweep(ctx context.Context, games sweeper, retention time.Duration) int {
	n, err := games.SweepEnded(ctx, time.Now().Add(-retention))
	if err != nil {
		log.Errorf("sweep ended games: %v", err)
		return 0
	}
	if n > 0 {
		log.Infof("deleted %d ended games older than %s", n, retention)
	}
	return n
}
