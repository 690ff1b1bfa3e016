package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	config "github.com/avvvet/uno-services/configs"
	"github.com/avvvet/uno-services/internal/comm"
	"github.com/avvvet/uno-services/internal/gamesvc/broker"
	svcconfig "github.com/avvvet/uno-services/internal/gamesvc/config"
	"github.com/avvvet/uno-services/internal/gamesvc/db"
	handlers "github.com/avvvet/uno-services/internal/gamesvc/handlers"
	"github.com/avvvet/uno-services/internal/gamesvc/metrics"
	"github.com/avvvet/uno-services/internal/gamesvc/service"
	"github.com/avvvet/uno-services/internal/gamesvc/store"
	nats "github.com/avvvet/uno-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
}

func main() {
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
	n, err := nats.Connect(SERVICE_NAME+"-"+instanceId, cfg.NatsURL, cfg.NatsToken)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Infof("NATS connection established successfully %s", n.Url)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b := broker.NewBroker(n.Conn, nil)
	games := service.NewGameService(store.New(conn), b, cfg.Engine(), service.WithMetrics(metrics.New(reg)))
	b.SetPresence(games)

	restarted, err := games.Reconcile(context.Background())
	if err != nil {
		log.Errorf("Error restarting rejoin timers: %v", err)
	} else {
		log.Infof("%d rejoin timers restarted", restarted)
	}

	// subscribe to socket service
	sub, err := b.SubscribSocketService(comm.TopicSocketService)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", comm.TopicSocketService, err)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(games, handlers.InitAuth(cfg.JWTSecret), reg, cfg.GamePort)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.GamePort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sub.Unsubscribe()
	games.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
