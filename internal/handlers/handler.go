package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AaronKurian/ChatApp/internal/delivery"
	"github.com/AaronKurian/ChatApp/internal/push"
	"github.com/AaronKurian/ChatApp/internal/store"
)

// PresenceCounter reports how many users currently hold a live connection.
type PresenceCounter interface {
	Len() int
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	router   *delivery.Router
	push     *push.Sender
	presence PresenceCounter
	redis    *redis.Client
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies. redisClient
// may be nil when rate limiting is not configured.
func NewHandler(dataStore store.DataStore, router *delivery.Router, pushSender *push.Sender, presence PresenceCounter, redisClient *redis.Client, logger zerolog.Logger) *Handler {
	return &Handler{
		store:    dataStore,
		router:   router,
		push:     pushSender,
		presence: presence,
		redis:    redisClient,
		logger:   logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
