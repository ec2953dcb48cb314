package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AaronKurian/ChatApp/internal/metrics"
	"github.com/AaronKurian/ChatApp/internal/models"
)

// SendMessageRequest represents the message submission body.
type SendMessageRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Text     string `json:"message"`
}

// SendMessageResponse represents the message submission response.
type SendMessageResponse struct {
	Message string `json:"message"`
}

// SendMessage handles message submission: validate, check both parties exist,
// persist, then hand off to the delivery router. Persistence is the only
// durability guarantee; routing failures never affect the response.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Sender == "" || req.Receiver == "" || req.Text == "" {
		h.Error(w, http.StatusBadRequest, "Sender, receiver, and message are required.")
		return
	}

	sender, err := h.store.GetUserByUsername(r.Context(), req.Sender)
	if err != nil {
		h.logger.Error().Err(err).Msg("sender lookup failed")
		h.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if sender == nil {
		h.Error(w, http.StatusNotFound, "Sender does not exist.")
		return
	}

	receiver, err := h.store.GetUserByUsername(r.Context(), req.Receiver)
	if err != nil {
		h.logger.Error().Err(err).Msg("receiver lookup failed")
		h.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if receiver == nil {
		h.Error(w, http.StatusNotFound, "Receiver does not exist.")
		return
	}

	msg, err := h.store.AppendMessage(r.Context(), req.Sender, req.Receiver, req.Text)
	if err != nil {
		h.logger.Error().Err(err).Msg("message append failed")
		h.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	metrics.MessagesStored.Inc()

	h.router.Route(msg)

	h.JSON(w, http.StatusCreated, SendMessageResponse{Message: "Message sent successfully."})
}

// GetMessages handles conversation history lookup between two users.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user1 := r.URL.Query().Get("user1")
	user2 := r.URL.Query().Get("user2")
	if user1 == "" || user2 == "" {
		h.Error(w, http.StatusBadRequest, "user1 and user2 are required.")
		return
	}

	msgs, err := h.store.GetConversation(r.Context(), user1, user2)
	if err != nil {
		h.logger.Error().Err(err).Msg("conversation lookup failed")
		h.Error(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if msgs == nil {
		msgs = []models.Message{}
	}
	h.JSON(w, http.StatusOK, msgs)
}
