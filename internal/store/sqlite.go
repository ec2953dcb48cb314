package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/AaronKurian/ChatApp/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatapp.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatapp.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		receiver TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		username TEXT PRIMARY KEY,
		subscription TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, receiver, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, created_at)
		VALUES (?, ?, ?)
	`, username, password, now)
	if err != nil {
		return nil, err
	}

	return &models.User{Username: username, Password: password, CreatedAt: now}, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, created_at
		FROM users WHERE username = ?
	`, username).Scan(
		&user.Username,
		&user.Password,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsers retrieves all users ordered by signup time.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, created_at
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.Username, &user.Password, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// CountUsers returns the total number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendMessage stores a new message, assigning its ID and timestamp.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sender, receiver, text string) (*models.Message, error) {
	msg := &models.Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Receiver:  receiver,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender, receiver, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.Sender, msg.Receiver, msg.Text, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// GetConversation retrieves messages between two users in either direction,
// ordered by creation time ascending.
func (s *SQLiteStore) GetConversation(ctx context.Context, user1, user2 string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, body, created_at
		FROM messages
		WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		ORDER BY created_at ASC, id ASC
	`, user1, user2, user2, user1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// CountMessages returns the total number of stored messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// UpsertSubscription saves or replaces a user's push subscription.
func (s *SQLiteStore) UpsertSubscription(ctx context.Context, username string, subscription json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (username, subscription, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			subscription = excluded.subscription,
			updated_at = excluded.updated_at
	`, username, string(subscription), time.Now().UTC())
	return err
}

// GetSubscription retrieves a user's push subscription.
func (s *SQLiteStore) GetSubscription(ctx context.Context, username string) (*models.PushSubscription, error) {
	sub := &models.PushSubscription{}
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT username, subscription, updated_at
		FROM subscriptions WHERE username = ?
	`, username).Scan(
		&sub.Username,
		&raw,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sub.Subscription = json.RawMessage(raw)
	return sub, nil
}

// DeleteSubscription removes a user's push subscription. Deleting a
// subscription that does not exist is not an error.
func (s *SQLiteStore) DeleteSubscription(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE username = ?`, username)
	return err
}
