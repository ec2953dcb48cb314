package handlers

import (
	"encoding/json"
	"net/http"
)

// VapidKeyResponse represents the push public key response. The key is empty
// when push is not configured; clients treat that as "feature off".
type VapidKeyResponse struct {
	Key string `json:"key"`
}

// VapidPublicKey returns the VAPID public key for client subscription.
func (h *Handler) VapidPublicKey(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, VapidKeyResponse{Key: h.push.PublicKey()})
}

// SubscribeRequest represents the push subscribe request body. The
// subscription document is stored opaquely, exactly as the browser produced it.
type SubscribeRequest struct {
	Username     string          `json:"username"`
	Subscription json.RawMessage `json:"subscription"`
}

// SubscribeResponse represents the push subscribe response.
type SubscribeResponse struct {
	Message string `json:"message"`
}

// Subscribe saves or replaces a user's push subscription.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Username == "" || len(req.Subscription) == 0 || string(req.Subscription) == "null" {
		h.Error(w, http.StatusBadRequest, "username and subscription are required.")
		return
	}

	if err := h.store.UpsertSubscription(r.Context(), req.Username, req.Subscription); err != nil {
		h.logger.Error().Err(err).Str("username", req.Username).Msg("subscription save failed")
		h.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.JSON(w, http.StatusCreated, SubscribeResponse{Message: "Subscription saved."})
}
