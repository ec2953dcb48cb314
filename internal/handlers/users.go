package handlers

import "net/http"

// UserResponse represents a user in the user list.
type UserResponse struct {
	Username string `json:"username"`
}

// ListUsers handles the user directory listing.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("user list failed")
		h.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	resp := make([]UserResponse, len(users))
	for i, u := range users {
		resp[i] = UserResponse{Username: u.Username}
	}

	h.JSON(w, http.StatusOK, resp)
}
