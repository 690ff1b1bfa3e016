package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/avvvet/uno-services/internal/gamesvc/service"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var errNoUser = errors.New("token carries no user_id")

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	games     *service.GameService
	gatherer  prometheus.Gatherer
	port      string
}

func NewHandler(games *service.GameService, tokenAuth *jwtauth.JWTAuth, gatherer prometheus.Gatherer, port string) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		tokenAuth: tokenAuth,
		games:     games,
		gatherer:  gatherer,
		port:      port,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) ok(w http.ResponseWriter, code int, msg string, data interface{}) {
	h.CreateResponse(w, Response{Message: msg, Code: code, Data: data})
}

// statusFor maps an engine error family to an HTTP status.
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict, service.KindLifecycle:
		return http.StatusConflict
	case service.KindResource:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Errorf("%s %s: %s", r.Method, r.URL.Path, err)
		msg = "internal error"
	}
	h.CreateResponse(w, Response{Code: code, Error: msg, Data: map[string]string{"kind": service.KindOf(err).String()}})
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: err.Error()})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, "game service is running at port "+h.port, nil)
}

// userID reads the caller from the verified token.
func userID(r *http.Request) (int64, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return 0, err
	}

	var id int64
	switch v := claims["user_id"].(type) {
	case float64:
		id = int64(v)
	case int64:
		id = v
	case json.Number:
		id, err = v.Int64()
	case string:
		id, err = strconv.ParseInt(v, 10, 64)
	default:
		return 0, errNoUser
	}
	if err != nil || id <= 0 {
		return 0, errNoUser
	}
	return id, nil
}

func gameID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: game id", service.ErrInvalidInput)
	}
	return id, nil
}

// decode reads an optional JSON body into v.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s", service.ErrInvalidInput, err)
	}
	return nil
}

// caller resolves the authenticated user and the {id} game of a request,
// writing the error response itself when either is missing.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (gid, uid int64, ok bool) {
	uid, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return 0, 0, false
	}
	gid, err = gameID(r)
	if err != nil {
		h.badRequest(w, err)
		return 0, 0, false
	}
	return gid, uid, true
}
