package models

import "time"

// Message represents a persisted chat message between two users.
// Messages are immutable once stored and are never deleted.
type Message struct {
	ID        string    `json:"id"` // ULID
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Text      string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
