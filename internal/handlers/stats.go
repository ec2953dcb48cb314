package handlers

import "net/http"

// StatsResponse summarizes service-wide counters.
type StatsResponse struct {
	Users    int64 `json:"users"`
	Messages int64 `json:"messages"`
	Online   int   `json:"online"`
}

// Stats reports registered users, stored messages and live connections.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.CountUsers(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count users")
		h.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	messages, err := h.store.CountMessages(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count messages")
		h.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		Users:    users,
		Messages: messages,
		Online:   h.presence.Len(),
	})
}
