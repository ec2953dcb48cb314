package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/AaronKurian/ChatApp/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		receiver TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		username TEXT PRIMARY KEY,
		subscription JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, receiver, created_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password)
		VALUES ($1, $2)
		RETURNING username, password, created_at
	`, username, password).Scan(
		&user.Username,
		&user.Password,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT username, password, created_at
		FROM users WHERE username = $1
	`, username).Scan(
		&user.Username,
		&user.Password,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsers retrieves all users ordered by signup time.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
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
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendMessage stores a new message, assigning its ID and timestamp.
func (s *PostgresStore) AppendMessage(ctx context.Context, sender, receiver, text string) (*models.Message, error) {
	msg := &models.Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Receiver:  receiver,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender, receiver, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.Sender, msg.Receiver, msg.Text, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// GetConversation retrieves messages between two users in either direction,
// ordered by creation time ascending.
func (s *PostgresStore) GetConversation(ctx context.Context, user1, user2 string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender, receiver, body, created_at
		FROM messages
		WHERE (sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1)
		ORDER BY created_at ASC, id ASC
	`, user1, user2)
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
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// UpsertSubscription saves or replaces a user's push subscription.
func (s *PostgresStore) UpsertSubscription(ctx context.Context, username string, subscription json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (username, subscription, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (username) DO UPDATE SET
			subscription = EXCLUDED.subscription,
			updated_at = EXCLUDED.updated_at
	`, username, subscription)
	return err
}

// GetSubscription retrieves a user's push subscription.
func (s *PostgresStore) GetSubscription(ctx context.Context, username string) (*models.PushSubscription, error) {
	sub := &models.PushSubscription{}
	err := s.pool.QueryRow(ctx, `
		SELECT username, subscription, updated_at
		FROM subscriptions WHERE username = $1
	`, username).Scan(
		&sub.Username,
		&sub.Subscription,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// DeleteSubscription removes a user's push subscription. Deleting a
// subscription that does not exist is not an error.
func (s *PostgresStore) DeleteSubscription(ctx context.Context, username string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE username = $1`, username)
	return err
}
