package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/AaronKurian/ChatApp/internal/delivery"
	"github.com/AaronKurian/ChatApp/internal/models"
	"github.com/AaronKurian/ChatApp/internal/push"
)

// memStore is an in-memory DataStore used by handler tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	messages []models.Message
	subs     map[string]json.RawMessage
	seq      int
	failing  bool
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]models.User),
		subs:  make(map[string]json.RawMessage),
	}
}

var errStore = errors.New("store unavailable")

func (m *memStore) Close() {}

func (m *memStore) Ping(ctx context.Context) error {
	if m.failing {
		return errStore
	}
	return nil
}

func (m *memStore) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	if m.failing {
		return nil, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user := models.User{Username: username, Password: password, CreatedAt: m.tick()}
	m.users[username] = user
	return &user, nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.failing {
		return nil, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (m *memStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if m.failing {
		return nil, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (m *memStore) CountUsers(ctx context.Context) (int64, error) {
	if m.failing {
		return 0, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *memStore) AppendMessage(ctx context.Context, sender, receiver, text string) (*models.Message, error) {
	if m.failing {
		return nil, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := models.Message{
		ID:        fmt.Sprintf("msg-%04d", m.seq),
		Sender:    sender,
		Receiver:  receiver,
		Text:      text,
		CreatedAt: m.tick(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *memStore) GetConversation(ctx context.Context, user1, user2 string) ([]models.Message, error) {
	if m.failing {
		return nil, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var msgs []models.Message
	for _, msg := range m.messages {
		if (msg.Sender == user1 && msg.Receiver == user2) || (msg.Sender == user2 && msg.Receiver == user1) {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (m *memStore) CountMessages(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.messages)), nil
}

func (m *memStore) UpsertSubscription(ctx context.Context, username string, subscription json.RawMessage) error {
	if m.failing {
		return errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[username] = subscription
	return nil
}

func (m *memStore) GetSubscription(ctx context.Context, username string) (*models.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.subs[username]
	if !ok {
		return nil, nil
	}
	return &models.PushSubscription{Username: username, Subscription: raw}, nil
}

func (m *memStore) DeleteSubscription(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, username)
	return nil
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (m *memStore) tick() time.Time {
	m.seq++
	return time.Unix(1700000000, 0).Add(time.Duration(m.seq) * time.Second).UTC()
}

// Delivery fakes

type fakePresence struct {
	conns map[string]string
}

func (f *fakePresence) Lookup(username string) (string, bool) {
	id, ok := f.conns[username]
	return id, ok
}

func (f *fakePresence) Len() int { return len(f.conns) }

type fakeEmitter struct {
	mu    sync.Mutex
	emits []*models.Message
}

func (f *fakeEmitter) Emit(connID string, msg *models.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, msg)
	return true
}

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emits)
}

type fakePusher struct {
	enabled bool
	status  int
	sent    chan json.RawMessage
}

func (f *fakePusher) Enabled() bool { return f.enabled }

func (f *fakePusher) Send(ctx context.Context, sub json.RawMessage, payload []byte) (int, error) {
	if f.sent != nil {
		f.sent <- sub
	}
	return f.status, nil
}

type testEnv struct {
	handler  *Handler
	store    *memStore
	presence *fakePresence
	emitter  *fakeEmitter
	pusher   *fakePusher
}

func newTestEnv() *testEnv {
	st := newMemStore()
	presence := &fakePresence{conns: map[string]string{}}
	emitter := &fakeEmitter{}
	pusher := &fakePusher{enabled: true, status: http.StatusCreated, sent: make(chan json.RawMessage, 4)}
	router := delivery.NewRouter(presence, emitter, pusher, st, zerolog.Nop())
	pushSender := push.NewSender("", "", "")
	return &testEnv{
		handler:  NewHandler(st, router, pushSender, presence, nil, zerolog.Nop()),
		store:    st,
		presence: presence,
		emitter:  emitter,
		pusher:   pusher,
	}
}

func postJSON(t *testing.T, handlerFn http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handlerFn(w, r)
	return w
}

func TestLogin_SignupThenLoginThenBadPassword(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	// First login with an unseen username signs up.
	w := postJSON(t, env.handler.Login, "/login", LoginRequest{Username: "alice", Password: "secret"})
	req.Equal(http.StatusCreated, w.Code)

	// Same credentials again log in.
	w = postJSON(t, env.handler.Login, "/login", LoginRequest{Username: "alice", Password: "secret"})
	req.Equal(http.StatusOK, w.Code)

	// Wrong password on an existing user is rejected.
	w = postJSON(t, env.handler.Login, "/login", LoginRequest{Username: "alice", Password: "nope"})
	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestLogin_MissingFields(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	w := postJSON(t, env.handler.Login, "/login", LoginRequest{Username: "alice"})
	req.Equal(http.StatusBadRequest, w.Code)

	w = postJSON(t, env.handler.Login, "/login", LoginRequest{Password: "secret"})
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestLogin_StoreError(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	env.store.failing = true

	w := postJSON(t, env.handler.Login, "/login", LoginRequest{Username: "alice", Password: "secret"})
	req.Equal(http.StatusInternalServerError, w.Code)
}

func TestListUsers(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	env.store.CreateUser(context.Background(), "alice", "a")
	env.store.CreateUser(context.Background(), "bob", "b")

	r := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()
	env.handler.ListUsers(w, r)

	req.Equal(http.StatusOK, w.Code)

	var users []UserResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &users))
	req.Len(users, 2)
	req.Equal("alice", users[0].Username)
	req.Equal("bob", users[1].Username)
}

func TestSendMessage_Validation(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	for _, body := range []SendMessageRequest{
		{Receiver: "bob", Text: "hi"},
		{Sender: "alice", Text: "hi"},
		{Sender: "alice", Receiver: "bob"},
	} {
		w := postJSON(t, env.handler.SendMessage, "/messages", body)
		req.Equal(http.StatusBadRequest, w.Code)
	}

	count, _ := env.store.CountMessages(context.Background())
	req.Zero(count)
}

func TestSendMessage_UnknownUsers(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	env.store.CreateUser(context.Background(), "alice", "a")

	// Unknown sender
	w := postJSON(t, env.handler.SendMessage, "/messages", SendMessageRequest{Sender: "ghost", Receiver: "alice", Text: "hi"})
	req.Equal(http.StatusNotFound, w.Code)

	// Unknown receiver
	w = postJSON(t, env.handler.SendMessage, "/messages", SendMessageRequest{Sender: "alice", Receiver: "ghost", Text: "hi"})
	req.Equal(http.StatusNotFound, w.Code)

	// Nothing was persisted either way.
	count, _ := env.store.CountMessages(context.Background())
	req.Zero(count)
}

func TestSendMessage_PersistsRegardlessOfPresence(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	env.pusher.enabled = false

	env.store.CreateUser(context.Background(), "alice", "a")
	env.store.CreateUser(context.Background(), "bob", "b")

	// Receiver is offline and push is off; the message must still persist.
	w := postJSON(t, env.handler.SendMessage, "/messages", SendMessageRequest{Sender: "bob", Receiver: "alice", Text: "hi alice"})
	req.Equal(http.StatusCreated, w.Code)
	req.Zero(env.emitter.count())

	msgs, err := env.store.GetConversation(context.Background(), "alice", "bob")
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("hi alice", msgs[0].Text)
}

func TestSendMessage_LiveDeliveryAndPushBothFire(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	env.store.CreateUser(context.Background(), "alice", "a")
	env.store.CreateUser(context.Background(), "bob", "b")
	env.store.UpsertSubscription(context.Background(), "alice", json.RawMessage(`{"endpoint":"https://push.example/alice"}`))

	// alice is on the live channel.
	env.presence.conns["alice"] = "c1"

	w := postJSON(t, env.handler.SendMessage, "/messages", SendMessageRequest{Sender: "bob", Receiver: "alice", Text: "hi alice"})
	req.Equal(http.StatusCreated, w.Code)

	// Exactly one live event for the submitted message.
	req.Equal(1, env.emitter.count())
	req.Equal("hi alice", env.emitter.emits[0].Text)

	// The push attempt fires too; live presence does not suppress it.
	select {
	case sub := <-env.pusher.sent:
		req.JSONEq(`{"endpoint":"https://push.example/alice"}`, string(sub))
	case <-time.After(2 * time.Second):
		t.Fatal("push attempt never happened")
	}
}

func TestGetMessages_MissingParams(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	r := httptest.NewRequest(http.MethodGet, "/messages?user1=alice", nil)
	w := httptest.NewRecorder()
	env.handler.GetMessages(w, r)
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestGetMessages_BothDirectionsOrdered(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	env.store.CreateUser(context.Background(), "alice", "a")
	env.store.CreateUser(context.Background(), "bob", "b")
	env.store.CreateUser(context.Background(), "carol", "c")

	env.store.AppendMessage(context.Background(), "alice", "bob", "one")
	env.store.AppendMessage(context.Background(), "bob", "alice", "two")
	env.store.AppendMessage(context.Background(), "alice", "carol", "unrelated")
	env.store.AppendMessage(context.Background(), "alice", "bob", "three")

	r := httptest.NewRequest(http.MethodGet, "/messages?user1=alice&user2=bob", nil)
	w := httptest.NewRecorder()
	env.handler.GetMessages(w, r)
	req.Equal(http.StatusOK, w.Code)

	var msgs []models.Message
	req.NoError(json.Unmarshal(w.Body.Bytes(), &msgs))
	req.Len(msgs, 3)
	req.Equal("one", msgs[0].Text)
	req.Equal("two", msgs[1].Text)
	req.Equal("three", msgs[2].Text)
}

func TestGetMessages_EmptyConversation(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	r := httptest.NewRequest(http.MethodGet, "/messages?user1=alice&user2=bob", nil)
	w := httptest.NewRecorder()
	env.handler.GetMessages(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`[]`, w.Body.String())
}

func TestVapidPublicKey(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	// Push disabled: the key is empty, not an error.
	r := httptest.NewRequest(http.MethodGet, "/vapidPublicKey", nil)
	w := httptest.NewRecorder()
	env.handler.VapidPublicKey(w, r)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"key":""}`, w.Body.String())

	// Push configured: the public key is returned.
	env.handler.push = push.NewSender("BPublicKey", "private", "mailto:ops@example.com")
	w = httptest.NewRecorder()
	env.handler.VapidPublicKey(w, r)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"key":"BPublicKey"}`, w.Body.String())
}

func TestSubscribe(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	w := postJSON(t, env.handler.Subscribe, "/subscribe", SubscribeRequest{
		Username:     "alice",
		Subscription: json.RawMessage(`{"endpoint":"https://push.example/alice"}`),
	})
	req.Equal(http.StatusCreated, w.Code)

	sub, err := env.store.GetSubscription(context.Background(), "alice")
	req.NoError(err)
	req.NotNil(sub)
	req.JSONEq(`{"endpoint":"https://push.example/alice"}`, string(sub.Subscription))

	// Subscribing again replaces the stored descriptor.
	w = postJSON(t, env.handler.Subscribe, "/subscribe", SubscribeRequest{
		Username:     "alice",
		Subscription: json.RawMessage(`{"endpoint":"https://push.example/alice-2"}`),
	})
	req.Equal(http.StatusCreated, w.Code)

	sub, err = env.store.GetSubscription(context.Background(), "alice")
	req.NoError(err)
	req.JSONEq(`{"endpoint":"https://push.example/alice-2"}`, string(sub.Subscription))
}

func TestSubscribe_MissingFields(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	w := postJSON(t, env.handler.Subscribe, "/subscribe", SubscribeRequest{Username: "alice"})
	req.Equal(http.StatusBadRequest, w.Code)

	w = postJSON(t, env.handler.Subscribe, "/subscribe", SubscribeRequest{
		Subscription: json.RawMessage(`{"endpoint":"x"}`),
	})
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.handler.Health(w, r)
	req.Equal(http.StatusOK, w.Code)

	var resp HealthResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal("healthy", resp.Status)
	req.Equal("pass", resp.Checks["store"].Status)
	req.Equal("off", resp.Checks["redis"].Status)
	req.Equal("off", resp.Checks["push"].Status)

	env.store.failing = true
	w = httptest.NewRecorder()
	env.handler.Health(w, r)
	req.Equal(http.StatusServiceUnavailable, w.Code)
}

func TestHealth_RedisDependency(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	mr := miniredis.RunT(t)
	env.handler.redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.handler.Health(w, r)
	req.Equal(http.StatusOK, w.Code)

	var resp HealthResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal("pass", resp.Checks["redis"].Status)

	// A configured Redis that stops answering degrades the service.
	mr.Close()
	w = httptest.NewRecorder()
	env.handler.Health(w, r)
	req.Equal(http.StatusServiceUnavailable, w.Code)

	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal("fail", resp.Checks["redis"].Status)
}

func TestStats(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()

	env.store.CreateUser(context.Background(), "alice", "a")
	env.store.CreateUser(context.Background(), "bob", "b")
	env.store.AppendMessage(context.Background(), "alice", "bob", "one")
	env.presence.conns["alice"] = "c1"

	r := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	env.handler.Stats(w, r)
	req.Equal(http.StatusOK, w.Code)

	var resp StatsResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal(int64(2), resp.Users)
	req.Equal(int64(1), resp.Messages)
	req.Equal(1, resp.Online)
}

func TestStats_StoreError(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	env.store.failing = true

	r := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	env.handler.Stats(w, r)
	req.Equal(http.StatusInternalServerError, w.Code)
}
