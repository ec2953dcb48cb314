package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteStore_Users(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.GetUserByUsername(ctx, "alice")
	req.NoError(err)
	req.Nil(user)

	created, err := s.CreateUser(ctx, "alice", "secret")
	req.NoError(err)
	req.Equal("alice", created.Username)
	req.Equal("secret", created.Password)

	user, err = s.GetUserByUsername(ctx, "alice")
	req.NoError(err)
	req.NotNil(user)
	req.Equal("secret", user.Password)

	// Duplicate usernames are rejected by the schema.
	_, err = s.CreateUser(ctx, "alice", "other")
	req.Error(err)

	_, err = s.CreateUser(ctx, "bob", "hunter2")
	req.NoError(err)

	users, err := s.ListUsers(ctx)
	req.NoError(err)
	req.Len(users, 2)

	count, err := s.CountUsers(ctx)
	req.NoError(err)
	req.EqualValues(2, count)
}

func TestSQLiteStore_Conversation(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	m1, err := s.AppendMessage(ctx, "alice", "bob", "one")
	req.NoError(err)
	req.NotEmpty(m1.ID)
	req.False(m1.CreatedAt.IsZero())

	_, err = s.AppendMessage(ctx, "bob", "alice", "two")
	req.NoError(err)
	_, err = s.AppendMessage(ctx, "alice", "carol", "unrelated")
	req.NoError(err)
	_, err = s.AppendMessage(ctx, "alice", "bob", "three")
	req.NoError(err)

	// Both directions, ascending; other pairs excluded. The argument order
	// must not matter.
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		msgs, err := s.GetConversation(ctx, pair[0], pair[1])
		req.NoError(err)
		req.Len(msgs, 3)
		req.Equal("one", msgs[0].Text)
		req.Equal("two", msgs[1].Text)
		req.Equal("three", msgs[2].Text)
	}

	count, err := s.CountMessages(ctx)
	req.NoError(err)
	req.EqualValues(4, count)
}

func TestSQLiteStore_Subscriptions(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	sub, err := s.GetSubscription(ctx, "alice")
	req.NoError(err)
	req.Nil(sub)

	first := json.RawMessage(`{"endpoint":"https://push.example/a","keys":{"p256dh":"pk","auth":"ak"}}`)
	req.NoError(s.UpsertSubscription(ctx, "alice", first))

	sub, err = s.GetSubscription(ctx, "alice")
	req.NoError(err)
	req.NotNil(sub)
	req.JSONEq(string(first), string(sub.Subscription))

	// Upsert replaces the stored descriptor.
	second := json.RawMessage(`{"endpoint":"https://push.example/b","keys":{"p256dh":"pk2","auth":"ak2"}}`)
	req.NoError(s.UpsertSubscription(ctx, "alice", second))

	sub, err = s.GetSubscription(ctx, "alice")
	req.NoError(err)
	req.JSONEq(string(second), string(sub.Subscription))

	req.NoError(s.DeleteSubscription(ctx, "alice"))

	sub, err = s.GetSubscription(ctx, "alice")
	req.NoError(err)
	req.Nil(sub)

	// Deleting again is a no-op.
	req.NoError(s.DeleteSubscription(ctx, "alice"))
}
