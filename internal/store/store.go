// Package store is the single source of truth for chat state visible to the
// surfaces. All mutation goes through named actions; every transition is
// atomic under the store mutex, so a renderer never observes a partially
// updated message list.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

// Conversation pairs a session with its loaded message list.
type Conversation struct {
	Session  *domain.Session
	Messages []*domain.Message
}

// Store holds the guest/customer's own conversation, the admin's observed
// session set with at most one focused conversation, and the typing-peer
// map. It is an injectable instance, created at app start and torn down
// with it; nothing in this package is a package-level singleton.
type Store struct {
	mu  sync.Mutex
	bus domain.EventBus
	now func() time.Time

	customer      *Conversation
	activeAdmin   *Conversation
	adminSessions map[string]*domain.Session
	typing        map[string]domain.TypingIndicator
}

func New(bus domain.EventBus) *Store {
	return &Store{
		bus:           bus,
		now:           time.Now,
		adminSessions: make(map[string]*domain.Session),
		typing:        make(map[string]domain.TypingIndicator),
	}
}

// InitializeCustomerSession seeds the guest/customer's own conversation.
// Called once per connection lifecycle; calling again with the same session
// id is a no-op.
func (s *Store) InitializeCustomerSession(session *domain.Session, history []*domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.customer != nil && s.customer.Session.ID == session.ID {
		return
	}
	s.customer = &Conversation{
		Session:  session,
		Messages: append([]*domain.Message(nil), history...),
	}
}

// CustomerConversation returns a snapshot of the own conversation, or nil
// before initialization.
func (s *Store) CustomerConversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.customer)
}

// SetActiveAdminChat marks the focused session for the admin surface. Only
// the focused session's messages are streamed; everything else updates
// summaries only.
func (s *Store) SetActiveAdminChat(session *domain.Session, messages []*domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adminSessions[session.ID] = session
	s.activeAdmin = &Conversation{
		Session:  session,
		Messages: append([]*domain.Message(nil), messages...),
	}
}

// ClearActiveAdminChat drops focus without touching the session list.
func (s *Store) ClearActiveAdminChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeAdmin = nil
}

// ActiveAdminChat returns a snapshot of the focused conversation, or nil.
func (s *Store) ActiveAdminChat() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.activeAdmin)
}

// UpsertAdminSession merges a session into the admin's observed set.
func (s *Store) UpsertAdminSession(session *domain.Session) {
	s.mu.Lock()
	s.adminSessions[session.ID] = session
	if s.activeAdmin != nil && s.activeAdmin.Session.ID == session.ID {
		s.activeAdmin.Session = session
	}
	s.mu.Unlock()

	s.bus.Publish(domain.SessionUpdatedEvent{Session: session, EventTime: s.now()})
}

// AdminSessions lists the observed sessions, most recently active first.
func (s *Store) AdminSessions() []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Session, 0, len(s.adminSessions))
	for _, sess := range s.adminSessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out
}

// AddOptimisticMessage appends a pending message to every collection its
// session belongs to and returns the temporary id the caller needs for a
// later revert.
func (s *Store) AddOptimisticMessage(msg *domain.Message) string {
	s.mu.Lock()
	if s.customer != nil && s.customer.Session.ID == msg.SessionID {
		s.customer.Messages = append(s.customer.Messages, msg)
	}
	if s.activeAdmin != nil && s.activeAdmin.Session.ID == msg.SessionID {
		s.activeAdmin.Messages = append(s.activeAdmin.Messages, msg)
	}
	s.mu.Unlock()

	s.bus.Publish(domain.MessagePendingEvent{Message: msg, EventTime: s.now()})
	return msg.LocalID
}

// AddMessage is the reconciliation entry point for relay-confirmed
// messages. Each matching collection is reconciled independently; the
// owning session's summary is refreshed regardless of which branch ran.
func (s *Store) AddMessage(confirmed *domain.Message) {
	s.mu.Lock()

	var replaced string
	if s.customer != nil && s.customer.Session.ID == confirmed.SessionID {
		list, rep, changed := Reconcile(s.customer.Messages, confirmed)
		if changed {
			s.customer.Messages = list
			if rep != "" {
				replaced = rep
			}
		}
		s.customer.Session.Touch(confirmed.Text, confirmed.SenderName, confirmed.CreatedAt)
	}
	if s.activeAdmin != nil && s.activeAdmin.Session.ID == confirmed.SessionID {
		list, rep, changed := Reconcile(s.activeAdmin.Messages, confirmed)
		if changed {
			s.activeAdmin.Messages = list
			if rep != "" {
				replaced = rep
			}
		}
	}

	sess := s.adminSessions[confirmed.SessionID]
	if sess != nil {
		sess.Touch(confirmed.Text, confirmed.SenderName, confirmed.CreatedAt)
		if confirmed.SenderType != domain.SenderAdmin {
			if s.activeAdmin == nil || s.activeAdmin.Session.ID != confirmed.SessionID {
				sess.UnreadCount++
			}
		}
	}
	s.mu.Unlock()

	s.bus.Publish(domain.MessageConfirmedEvent{
		Message:       confirmed,
		ReplacedLocal: replaced,
		EventTime:     s.now(),
	})
	if sess != nil {
		s.bus.Publish(domain.SessionUpdatedEvent{Session: sess, EventTime: s.now()})
	}
}

// RevertOptimisticMessage removes a pending message that never received
// relay confirmation.
func (s *Store) RevertOptimisticMessage(localID, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed bool
	if s.customer != nil && s.customer.Session.ID == sessionID {
		list, ok := RemoveLocal(s.customer.Messages, localID)
		if ok {
			s.customer.Messages = list
			removed = true
		}
	}
	if s.activeAdmin != nil && s.activeAdmin.Session.ID == sessionID {
		list, ok := RemoveLocal(s.activeAdmin.Messages, localID)
		if ok {
			s.activeAdmin.Messages = list
			removed = true
		}
	}
	return removed
}

// MarkMessagesRead stamps ReadAt on matching confirmed messages when the
// relay echoes a messages_read frame.
func (s *Store) MarkMessagesRead(sessionID string, messageIDs []string, at time.Time) {
	ids := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = true
	}

	s.mu.Lock()
	for _, conv := range []*Conversation{s.customer, s.activeAdmin} {
		if conv == nil || conv.Session.ID != sessionID {
			continue
		}
		for _, m := range conv.Messages {
			if m.ReadAt == nil && ids[m.ID] {
				t := at
				m.ReadAt = &t
			}
		}
	}
	s.mu.Unlock()

	s.bus.Publish(domain.MessagesReadEvent{SessionID: sessionID, MessageIDs: messageIDs, EventTime: s.now()})
}

func (s *Store) SetPeerTyping(sessionID, name string) {
	s.mu.Lock()
	s.typing[sessionID] = domain.TypingIndicator{SessionID: sessionID, PeerName: name, UpdatedAt: s.now()}
	s.mu.Unlock()

	s.bus.Publish(domain.PeerTypingEvent{SessionID: sessionID, PeerName: name, Typing: true, EventTime: s.now()})
}

func (s *Store) ClearPeerTyping(sessionID string) {
	s.mu.Lock()
	_, present := s.typing[sessionID]
	delete(s.typing, sessionID)
	s.mu.Unlock()

	if present {
		s.bus.Publish(domain.PeerTypingEvent{SessionID: sessionID, Typing: false, EventTime: s.now()})
	}
}

// PeerTyping reports the display name of the peer composing in a session.
func (s *Store) PeerTyping(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ind, ok := s.typing[sessionID]
	return ind.PeerName, ok
}

func snapshot(c *Conversation) *Conversation {
	if c == nil {
		return nil
	}
	cp := *c.Session
	return &Conversation{
		Session:  &cp,
		Messages: append([]*domain.Message(nil), c.Messages...),
	}
}
