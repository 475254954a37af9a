package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

func newTestStore() (*Store, domain.EventBus) {
	bus := domain.NewEventBus()
	return New(bus), bus
}

func guestSend(st *Store, sessionID, text string) *domain.Message {
	msg := domain.NewPendingMessage(sessionID, domain.SenderGuest, nil, "Guest", text, time.Now())
	st.AddOptimisticMessage(msg)
	return msg
}

func TestInitializeCustomerSessionIsIdempotent(t *testing.T) {
	st, _ := newTestStore()
	sess := domain.NewSession("sess-1", domain.ParticipantGuest, "Guest")

	st.InitializeCustomerSession(sess, []*domain.Message{
		{ID: "1", State: domain.MessageConfirmed, SessionID: "sess-1", SenderType: domain.SenderAdmin, Text: "hi"},
	})
	st.InitializeCustomerSession(sess, nil)

	conv := st.CustomerConversation()
	require.NotNil(t, conv)
	assert.Len(t, conv.Messages, 1)
}

func TestOptimisticSendThenConfirmationKeepsSingleEntry(t *testing.T) {
	st, _ := newTestStore()
	st.InitializeCustomerSession(domain.NewSession("sess-1", domain.ParticipantGuest, "Guest"), nil)

	pending := guestSend(st, "sess-1", "where is my order?")

	conv := st.CustomerConversation()
	require.Len(t, conv.Messages, 1)
	assert.True(t, conv.Messages[0].Pending())

	st.AddMessage(&domain.Message{
		ID:         "42",
		LocalID:    pending.LocalID,
		State:      domain.MessageConfirmed,
		SessionID:  "sess-1",
		SenderType: domain.SenderGuest,
		Text:       "where is my order?",
		CreatedAt:  time.Now(),
	})

	conv = st.CustomerConversation()
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "42", conv.Messages[0].ID)
	assert.False(t, conv.Messages[0].Pending())
}

func TestDuplicateConfirmationLeavesListUnchanged(t *testing.T) {
	st, _ := newTestStore()
	st.InitializeCustomerSession(domain.NewSession("sess-1", domain.ParticipantGuest, "Guest"), nil)

	confirmed := &domain.Message{
		ID: "42", State: domain.MessageConfirmed, SessionID: "sess-1",
		SenderType: domain.SenderGuest, Text: "hello", CreatedAt: time.Now(),
	}
	st.AddMessage(confirmed)
	st.AddMessage(confirmed)

	conv := st.CustomerConversation()
	assert.Len(t, conv.Messages, 1)
}

func TestRevertOptimisticMessage(t *testing.T) {
	st, _ := newTestStore()
	st.InitializeCustomerSession(domain.NewSession("sess-1", domain.ParticipantGuest, "Guest"), nil)

	pending := guestSend(st, "sess-1", "will fail")
	require.Len(t, st.CustomerConversation().Messages, 1)

	removed := st.RevertOptimisticMessage(pending.LocalID, "sess-1")
	assert.True(t, removed)
	assert.Empty(t, st.CustomerConversation().Messages)
}

func TestUnfocusedSessionUpdatesSummaryOnly(t *testing.T) {
	st, bus := newTestStore()

	focused := domain.NewSession("sess-7", domain.ParticipantCustomer, "Alice")
	background := domain.NewSession("sess-9", domain.ParticipantCustomer, "Bob")
	st.SetActiveAdminChat(focused, nil)
	st.UpsertAdminSession(background)

	events := bus.Subscribe([]domain.EventType{domain.EventTypeSessionUpdated})

	st.AddMessage(&domain.Message{
		ID: "100", State: domain.MessageConfirmed, SessionID: "sess-9",
		SenderType: domain.SenderCustomer, SenderName: "Bob",
		Text: "anyone there?", CreatedAt: time.Now(),
	})

	// Focused conversation's message list untouched
	assert.Empty(t, st.ActiveAdminChat().Messages)

	// Background session summary and unread badge updated
	select {
	case evt := <-events:
		upd, ok := evt.(domain.SessionUpdatedEvent)
		require.True(t, ok)
		assert.Equal(t, "sess-9", upd.Session.ID)
		assert.Equal(t, "anyone there?", upd.Session.LastMessageText)
		assert.Equal(t, 1, upd.Session.UnreadCount)
	case <-time.After(time.Second):
		t.Fatal("expected a session update event")
	}
}

func TestFocusedSessionDoesNotIncrementUnread(t *testing.T) {
	st, _ := newTestStore()

	focused := domain.NewSession("sess-7", domain.ParticipantCustomer, "Alice")
	st.SetActiveAdminChat(focused, nil)

	st.AddMessage(&domain.Message{
		ID: "101", State: domain.MessageConfirmed, SessionID: "sess-7",
		SenderType: domain.SenderCustomer, SenderName: "Alice",
		Text: "hi", CreatedAt: time.Now(),
	})

	conv := st.ActiveAdminChat()
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, 0, conv.Session.UnreadCount)
}

func TestAdminSessionsSortedByRecency(t *testing.T) {
	st, _ := newTestStore()
	now := time.Now()

	older := domain.NewSession("sess-1", domain.ParticipantGuest, "Guest A")
	older.LastMessageTime = now.Add(-time.Hour)
	newer := domain.NewSession("sess-2", domain.ParticipantCustomer, "Alice")
	newer.LastMessageTime = now

	st.UpsertAdminSession(older)
	st.UpsertAdminSession(newer)

	sessions := st.AdminSessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "sess-2", sessions[0].ID)
	assert.Equal(t, "sess-1", sessions[1].ID)
}

func TestMarkMessagesReadStampsOnlyMatchingUnread(t *testing.T) {
	st, _ := newTestStore()
	read := time.Now().Add(-time.Hour)
	st.InitializeCustomerSession(domain.NewSession("sess-1", domain.ParticipantGuest, "Guest"), []*domain.Message{
		{ID: "1", State: domain.MessageConfirmed, SessionID: "sess-1", SenderType: domain.SenderAdmin, Text: "a", ReadAt: &read},
		{ID: "2", State: domain.MessageConfirmed, SessionID: "sess-1", SenderType: domain.SenderAdmin, Text: "b"},
		{ID: "3", State: domain.MessageConfirmed, SessionID: "sess-1", SenderType: domain.SenderAdmin, Text: "c"},
	})

	now := time.Now()
	st.MarkMessagesRead("sess-1", []string{"2"}, now)

	msgs := st.CustomerConversation().Messages
	assert.Equal(t, read, *msgs[0].ReadAt)
	require.NotNil(t, msgs[1].ReadAt)
	assert.Equal(t, now, *msgs[1].ReadAt)
	assert.Nil(t, msgs[2].ReadAt)
}

func TestPeerTypingLifecycle(t *testing.T) {
	st, bus := newTestStore()
	events := bus.Subscribe([]domain.EventType{domain.EventTypePeerTyping})

	st.SetPeerTyping("sess-1", "Support Team")
	name, ok := st.PeerTyping("sess-1")
	assert.True(t, ok)
	assert.Equal(t, "Support Team", name)

	st.ClearPeerTyping("sess-1")
	_, ok = st.PeerTyping("sess-1")
	assert.False(t, ok)

	// Clearing an already-clear session publishes nothing
	st.ClearPeerTyping("sess-1")

	var seen []domain.PeerTypingEvent
	for len(seen) < 2 {
		select {
		case evt := <-events:
			seen = append(seen, evt.(domain.PeerTypingEvent))
		case <-time.After(time.Second):
			t.Fatalf("expected 2 typing events, got %d", len(seen))
		}
	}
	assert.True(t, seen[0].Typing)
	assert.False(t, seen[1].Typing)

	select {
	case evt := <-events:
		t.Fatalf("unexpected extra event: %#v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
