package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	GamesCreated  prometheus.Counter
	GamesStarted  prometheus.Counter
	GamesEnded    *prometheus.CounterVec // by reason
	Moves         *prometheus.CounterVec // by play type
	Rejections    *prometheus.CounterVec // by error kind
	PendingTimers *prometheus.GaugeVec   // by timer kind
}

// New creates the engine metrics and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uno",
			Name:      "games_created_total",
			Help:      "Games created.",
		}),
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uno",
			Name:      "games_started_total",
			Help:      "Games moved from lobby to in progress.",
		}),
		GamesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uno",
			Name:      "games_ended_total",
			Help:      "Games ended, by reason.",
		}, []string{"reason"}),
		Moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uno",
			Name:      "moves_total",
			Help:      "Moves appended to the move log, by play type.",
		}, []string{"play_type"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uno",
			Name:      "rejections_total",
			Help:      "Rejected engine operations, by error kind.",
		}, []string{"kind"}),
		PendingTimers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "uno",
			Name:      "pending_timers",
			Help:      "Disconnect timers currently scheduled.",
		}, []string{"timer"}),
	}

	if reg != nil {
		reg.MustRegister(m.GamesCreated, m.GamesStarted, m.GamesEnded, m.Moves, m.Rejections, m.PendingTimers)
	}
	return m
}
