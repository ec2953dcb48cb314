package store

import (
	"context"
	"encoding/json"

	"github.com/AaronKurian/ChatApp/internal/models"
)

// DataStore defines the interface for persistent storage of users, messages
// and push subscriptions. Both PostgresStore and SQLiteStore implement this
// interface. Lookups return (nil, nil) when no row matches.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Message operations. AppendMessage assigns the ID and timestamp.
	// GetConversation returns messages exchanged between the two users in
	// either direction, ordered by creation time ascending.
	AppendMessage(ctx context.Context, sender, receiver, text string) (*models.Message, error)
	GetConversation(ctx context.Context, user1, user2 string) ([]models.Message, error)
	CountMessages(ctx context.Context) (int64, error)

	// Push subscription operations
	UpsertSubscription(ctx context.Context, username string, subscription json.RawMessage) error
	GetSubscription(ctx context.Context, username string) (*models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, username string) error
}
