package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Route("/games", func(r chi.Router) {
				r.Get("/", h.ListGames)
				r.Post("/", h.CreateGame)
				r.Get("/mine", h.MyGames)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.GetGame)
					r.Delete("/", h.CancelLobby)
					r.Get("/state", h.State)

					// lobby
					r.Post("/join", h.JoinGame)
					r.Post("/leave", h.LeaveGame)
					r.Post("/ready", h.ToggleReady)
					r.Post("/start", h.StartGame)
					r.Post("/end", h.EndGame)
					r.Post("/finish", h.FinishGame)

					// play
					r.Get("/turn", h.CurrentTurn)
					r.Get("/hand", h.Hand)
					r.Get("/hand-counts", h.HandCounts)
					r.Post("/validate", h.ValidatePlay)
					r.Post("/play", h.PlayCard)
					r.Post("/draw", h.DrawCards)
					r.Post("/end-turn", h.EndTurn)
				})
			})
		})
	})
}

// InitAuth builds the HS256 verifier shared with the socket service.
func InitAuth(secret string) *jwtauth.JWTAuth {
	if secret == "" {
		log.Warn("JWT_SECRET_KEY is empty, tokens are signed with an empty key")
	}
	tokenAuth := jwtauth.New("HS256", []byte(secret), nil)

	if log.IsLevelEnabled(log.DebugLevel) {
		_, tokenString, _ := tokenAuth.Encode(map[string]interface{}{
			"user_id": 1,
			"exp":     time.Now().Add(24 * time.Hour).Unix(),
		})
		log.Debugf("DEBUG: JWT for user 1 : %s", tokenString)
	}
	return tokenAuth
}
