package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/api"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/relay"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/store"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/typing"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/wire"
)

// memMessageRepo and memSessionRepo are in-memory stand-ins for the gorm
// cache, enough for exercising the service paths.
type memMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{messages: make(map[string]*domain.Message)}
}

func (r *memMessageRepo) CreateOrIgnore(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[msg.ID]; !ok {
		cp := *msg
		r.messages[msg.ID] = &cp
	}
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[id], nil
}

func (r *memMessageRepo) GetBySession(_ context.Context, sessionID string, _, _ int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessageRepo) GetBySessionSince(_ context.Context, _ string, _ time.Time, _ int) ([]*domain.Message, error) {
	return nil, nil
}

func (r *memMessageRepo) MarkRead(_ context.Context, ids []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if m, ok := r.messages[id]; ok && m.ReadAt == nil {
			t := at
			m.ReadAt = &t
		}
	}
	return nil
}

func (r *memMessageRepo) Search(_ context.Context, query string, _ int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.messages {
		if strings.Contains(m.Text, query) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessageRepo) DeleteBySession(_ context.Context, _ string) error { return nil }

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *memSessionRepo) Upsert(_ context.Context, sess *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sess
	r.sessions[sess.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id], nil
}

func (r *memSessionRepo) GetAll(_ context.Context, _, _ int) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (r *memSessionRepo) UpdateLastMessage(_ context.Context, id, text, sender string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Touch(text, sender, ts)
	}
	return nil
}

func (r *memSessionRepo) UpdateUnreadCount(_ context.Context, id string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.UnreadCount = count
	}
	return nil
}

func (r *memSessionRepo) IncrementUnreadCount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.UnreadCount++
	}
	return nil
}

func (r *memSessionRepo) UpdateStatus(_ context.Context, id string, status domain.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Status = status
	}
	return nil
}

func (r *memSessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// fixture wires a service against a fake websocket relay and REST API.
type fixture struct {
	svc      *ChatService
	bus      domain.EventBus
	msgRepo  *memMessageRepo
	sessRepo *memSessionRepo
	conns    chan *websocket.Conn
}

func newFixture(t *testing.T, identity Identity) *fixture {
	t.Helper()

	conns := make(chan *websocket.Conn, 4)
	wsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(wsServer.Close)

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch {
		case req.URL.Path == "/support/session":
			json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{
					"id": "sess-own", "participantKind": "guest",
					"participantName": "Guest", "status": "active",
				},
				"messages": []any{},
			})
		case req.URL.Path == "/support/sessions":
			json.NewEncoder(w).Encode([]any{})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(apiServer.Close)

	bus := domain.NewEventBus()
	relayClient := relay.NewClient("ws"+strings.TrimPrefix(wsServer.URL, "http"), bus, zerolog.Nop())
	st := store.New(bus)
	msgRepo := newMemMessageRepo()
	sessRepo := newMemSessionRepo()

	svc := NewChatService(relayClient, st, bus, msgRepo, sessRepo, api.NewClient(apiServer.URL), identity, zerolog.Nop())

	return &fixture{svc: svc, bus: bus, msgRepo: msgRepo, sessRepo: sessRepo, conns: conns}
}

func (f *fixture) connect(t *testing.T) *websocket.Conn {
	t.Helper()
	require.NoError(t, f.svc.Connect(context.Background()))
	select {
	case conn := <-f.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("relay never accepted")
		return nil
	}
}

func guestIdentity() Identity {
	return Identity{Role: domain.SenderGuest, Name: "Guest"}
}

func TestSendRefusedWhileDisconnected(t *testing.T) {
	f := newFixture(t, guestIdentity())

	_, err := f.svc.InitializeCustomerSession(context.Background())
	require.NoError(t, err)

	_, err = f.svc.SendCustomerMessage(context.Background(), "hello?")
	assert.ErrorIs(t, err, relay.ErrNotConnected)

	// No optimistic entry was created
	conv := f.svc.Store().CustomerConversation()
	require.NotNil(t, conv)
	assert.Empty(t, conv.Messages)
}

func TestOptimisticSendConfirmedByRelayEcho(t *testing.T) {
	f := newFixture(t, guestIdentity())
	ctx := context.Background()

	_, err := f.svc.InitializeCustomerSession(ctx)
	require.NoError(t, err)
	server := f.connect(t)
	defer f.svc.Disconnect()

	confirmed := f.bus.Subscribe([]domain.EventType{domain.EventTypeMessageConfirmed})

	localID, err := f.svc.SendCustomerMessage(ctx, "where is my order?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(localID, domain.LocalIDPrefix))

	// The relay receives the frame with the correlation tag
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, data, err := server.Read(readCtx)
	require.NoError(t, err)

	var env wire.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, wire.EventCustomerChatMessage, env.Event)

	var sent wire.CustomerMessagePayload
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.Equal(t, localID, sent.ClientTag)

	// The relay confirms by broadcasting the saved message back
	echo, err := wire.NewEnvelope(wire.EventNewCustomerMessage, wire.NewMessagePayload{
		SavedMessage: wire.SavedMessage{
			ID: "42", SessionID: "sess-own", SenderType: "guest",
			Text: sent.Text, ClientTag: sent.ClientTag, CreatedAt: time.Now(),
		},
	})
	require.NoError(t, err)
	frame, _ := json.Marshal(echo)
	require.NoError(t, server.Write(ctx, websocket.MessageText, frame))

	select {
	case evt := <-confirmed:
		e := evt.(domain.MessageConfirmedEvent)
		assert.Equal(t, "42", e.Message.ID)
		assert.Equal(t, localID, e.ReplacedLocal)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation never arrived")
	}

	// Exactly one entry remains and it is confirmed
	conv := f.svc.Store().CustomerConversation()
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "42", conv.Messages[0].ID)
	assert.False(t, conv.Messages[0].Pending())

	// And it landed in the cache
	cached, err := f.msgRepo.GetByID(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, cached)
}

func TestInboundAdminMessageCachedAndCountedUnread(t *testing.T) {
	f := newFixture(t, guestIdentity())
	ctx := context.Background()

	_, err := f.svc.InitializeCustomerSession(ctx)
	require.NoError(t, err)
	server := f.connect(t)
	defer f.svc.Disconnect()

	f.sessRepo.Upsert(ctx, domain.NewSession("sess-own", domain.ParticipantGuest, "Guest"))

	confirmed := f.bus.Subscribe([]domain.EventType{domain.EventTypeMessageConfirmed})

	adminID := "admin-1"
	env, err := wire.NewEnvelope(wire.EventNewAdminMessage, wire.NewMessagePayload{
		SavedMessage: wire.SavedMessage{
			ID: "7", SessionID: "sess-own", SenderType: "admin", SenderID: &adminID,
			SenderName: "Support Team", Text: "how can I help?", CreatedAt: time.Now(),
		},
	})
	require.NoError(t, err)
	frame, _ := json.Marshal(env)
	require.NoError(t, server.Write(ctx, websocket.MessageText, frame))

	select {
	case <-confirmed:
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message never surfaced")
	}

	assert.Eventually(t, func() bool {
		sess, _ := f.sessRepo.GetByID(ctx, "sess-own")
		return sess != nil && sess.UnreadCount == 1 && sess.LastMessageText == "how can I help?"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTypingControllerEmitsOverRelay(t *testing.T) {
	f := newFixture(t, guestIdentity())
	ctx := context.Background()

	server := f.connect(t)
	defer f.svc.Disconnect()

	ctrl := f.svc.NewTypingController("sess-own", typingTestClock{})
	ctrl.Keystroke()
	ctrl.MessageSent()

	var events []string
	for len(events) < 2 {
		readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, data, err := server.Read(readCtx)
		cancel()
		require.NoError(t, err)
		var env wire.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		events = append(events, env.Event)
	}
	assert.Equal(t, []string{wire.EventStartTyping, wire.EventStopTyping}, events)
}

// typingTestClock hands out timers that never fire; the test drives the
// transitions explicitly.
type typingTestClock struct{}

func (typingTestClock) AfterFunc(time.Duration, func()) typing.Timer { return noopTimer{} }

type noopTimer struct{}

func (noopTimer) Reset(time.Duration) bool { return true }
func (noopTimer) Stop() bool               { return true }

func TestGuestIdentityHasNilSenderID(t *testing.T) {
	assert.Nil(t, guestIdentity().SenderID())

	admin := Identity{Role: domain.SenderAdmin, ID: "admin-1", Name: "Support"}
	require.NotNil(t, admin.SenderID())
	assert.Equal(t, "admin-1", *admin.SenderID())
}
