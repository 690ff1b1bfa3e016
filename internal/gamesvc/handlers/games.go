package handlers

import (
	"net/http"
	"strconv"

	"github.com/avvvet/uno-services/internal/gamesvc/service"
)

type joinRequest struct {
	Password string `json:"password"`
}

type playRequest struct {
	CardID      int64  `json:"card_id"`
	ChosenColor string `json:"chosen_color"`
}

type drawRequest struct {
	Count int `json:"count"`
}

type finishRequest struct {
	WinnerID int64 `json:"winner_id"`
}

func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := h.games.ListGames(r.Context(), r.URL.Query().Get("state"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "games", games)
}

func (h *Handler) MyGames(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}
	games, err := h.games.GamesForUser(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "games", games)
}

func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}
	var req service.CreateParams
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	g, err := h.games.CreateGame(r.Context(), uid, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, "game created", g)
}

func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	view, err := h.games.GetGame(r.Context(), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "game", view)
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	st, err := h.games.State(r.Context(), gid, uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "state", st)
}

func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	reconnected, err := h.games.JoinGame(r.Context(), gid, uid, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	msg := "joined"
	if reconnected {
		msg = "reconnected"
	}
	h.ok(w, http.StatusOK, msg, map[string]bool{"reconnected": reconnected})
}

func (h *Handler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.games.LeaveGame(r.Context(), gid, uid); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "left", nil)
}

func (h *Handler) CancelLobby(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.games.CancelLobby(r.Context(), gid, uid); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "lobby cancelled", nil)
}

func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	res, err := h.games.StartGame(r.Context(), gid, uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "game started", res)
}

func (h *Handler) ToggleReady(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	ready, err := h.games.ToggleReady(r.Context(), gid, uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "ready changed", map[string]bool{"ready": ready})
}

func (h *Handler) EndGame(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.games.EndGame(r.Context(), gid, uid); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "game ended", nil)
}

func (h *Handler) FinishGame(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req finishRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.games.FinishGame(r.Context(), gid, uid, req.WinnerID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "game finished", map[string]int64{"winner_id": req.WinnerID})
}

func (h *Handler) ValidatePlay(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req playRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.games.ValidatePlay(r.Context(), gid, uid, req.CardID, req.ChosenColor); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "playable", map[string]bool{"valid": true})
}

func (h *Handler) PlayCard(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req playRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	res, err := h.games.PlayCard(r.Context(), gid, uid, req.CardID, req.ChosenColor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "card played", res)
}

func (h *Handler) DrawCards(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req drawRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	res, err := h.games.DrawCards(r.Context(), gid, uid, req.Count)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "cards drawn", res)
}

func (h *Handler) EndTurn(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	t, err := h.games.EndTurn(r.Context(), gid, uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "turn ended", t)
}

func (h *Handler) CurrentTurn(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	t, err := h.games.CurrentTurn(r.Context(), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "turn", t)
}

func (h *Handler) Hand(w http.ResponseWriter, r *http.Request) {
	gid, uid, ok := h.caller(w, r)
	if !ok {
		return
	}
	cards, err := h.games.Hand(r.Context(), gid, uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "hand", cards)
}

func (h *Handler) HandCounts(w http.ResponseWriter, r *http.Request) {
	gid, err := gameID(r)
	if err != nil {
		h.badRequest(w, err)
		return
	}
	counts, err := h.games.HandCounts(r.Context(), gid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, "hand counts", counts)
}
