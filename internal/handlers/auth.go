package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AaronKurian/ChatApp/internal/metrics"
)

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login or signup.
type LoginResponse struct {
	Message string `json:"message"`
}

// Login handles authentication with auto-signup: a previously unseen username
// is created on its first login attempt (201); an existing username must
// present the exact stored password (200 on match, 401 otherwise).
//
// Passwords are compared verbatim. Known limitation carried over from the
// original service; changing it means migrating every stored credential.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "Username and password are required.")
		return
	}

	existing, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.logger.Error().Err(err).Msg("user lookup failed")
		h.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if existing == nil {
		if _, err := h.store.CreateUser(r.Context(), req.Username, req.Password); err != nil {
			h.logger.Error().Err(err).Str("username", req.Username).Msg("user create failed")
			h.Error(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		metrics.UsersRegistered.Inc()
		h.logger.Info().Str("username", req.Username).Msg("user signed up")
		h.JSON(w, http.StatusCreated, LoginResponse{Message: "Signup successful."})
		return
	}

	if existing.Password != req.Password {
		h.Error(w, http.StatusUnauthorized, "Invalid username or password.")
		return
	}

	h.JSON(w, http.StatusOK, LoginResponse{Message: "Login successful."})
}
