package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/api"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/relay"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/repository"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/store"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/typing"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/wire"
)

// Identity is who this bridge instance speaks as on the relay.
type Identity struct {
	Role domain.SenderType
	ID   string
	Name string
}

// SenderID returns the nullable sender id for outgoing messages. Guests
// have none.
func (id Identity) SenderID() *string {
	if id.Role == domain.SenderGuest || id.ID == "" {
		return nil
	}
	v := id.ID
	return &v
}

// ChatService drives the whole sync engine: it binds the inbound wire
// handlers, performs optimistic sends with revert-on-failure, mirrors
// confirmed traffic into the local cache, and fronts the REST
// collaborators for session workflows.
type ChatService struct {
	relay    *relay.Client
	store    *store.Store
	bus      domain.EventBus
	msgRepo  repository.MessageRepository
	sessRepo repository.SessionRepository
	api      *api.Client
	identity Identity
	logger   zerolog.Logger
}

func NewChatService(
	rc *relay.Client,
	st *store.Store,
	bus domain.EventBus,
	msgRepo repository.MessageRepository,
	sessRepo repository.SessionRepository,
	apiClient *api.Client,
	identity Identity,
	logger zerolog.Logger,
) *ChatService {
	return &ChatService{
		relay:    rc,
		store:    st,
		bus:      bus,
		msgRepo:  msgRepo,
		sessRepo: sessRepo,
		api:      apiClient,
		identity: identity,
		logger:   logger,
	}
}

// Connect binds the inbound handlers and dials the relay. The registry is
// reset first so a reconnect never stacks duplicate handlers.
func (s *ChatService) Connect(ctx context.Context) error {
	s.relay.ResetHandlers()
	s.relay.Handle(wire.EventNewCustomerMessage, s.handleNewMessage)
	s.relay.Handle(wire.EventNewAdminMessage, s.handleNewMessage)
	s.relay.Handle(wire.EventNewCustomerSession, s.handleNewSession)
	s.relay.Handle(wire.EventStartTyping, s.handleTyping(true))
	s.relay.Handle(wire.EventStopTyping, s.handleTyping(false))
	s.relay.Handle(wire.EventMessagesRead, s.handleMessagesRead)

	return s.relay.Connect(ctx)
}

func (s *ChatService) Disconnect() {
	s.relay.Disconnect()
}

func (s *ChatService) IsConnected() bool {
	return s.relay.IsConnected()
}

func (s *ChatService) Store() *store.Store {
	return s.store
}

func (s *ChatService) EventBus() domain.EventBus {
	return s.bus
}

// Identity returns who this bridge instance speaks as.
func (s *ChatService) Identity() Identity {
	return s.identity
}

// InitializeCustomerSession resolves the guest/customer's own session from
// the storefront API and seeds the store with its history.
func (s *ChatService) InitializeCustomerSession(ctx context.Context) (*domain.Session, error) {
	session, history, err := s.api.GetOwnSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve own session: %w", err)
	}

	s.store.InitializeCustomerSession(session, history)

	if err := s.sessRepo.Upsert(ctx, session); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache own session")
	}
	for _, m := range history {
		if err := s.msgRepo.CreateOrIgnore(ctx, m); err != nil {
			s.logger.Warn().Err(err).Str("message_id", m.ID).Msg("failed to cache history message")
			break
		}
	}
	return session, nil
}

// RefreshSessions refetches the admin session list from the storefront API
// and merges it into the store and the local cache.
func (s *ChatService) RefreshSessions(ctx context.Context) ([]*domain.Session, error) {
	sessions, err := s.api.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for _, sess := range sessions {
		s.store.UpsertAdminSession(sess)
		if err := s.sessRepo.Upsert(ctx, sess); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to cache session")
		}
	}
	return sessions, nil
}

// FocusSession loads a session's history and marks it as the admin's
// focused conversation. Only the focused session streams messages into the
// surface.
func (s *ChatService) FocusSession(ctx context.Context, sessionID string) (*store.Conversation, error) {
	session, err := s.sessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.api.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history for session %s: %w", sessionID, err)
	}

	session.UnreadCount = 0
	s.store.SetActiveAdminChat(session, history)

	if err := s.sessRepo.UpdateUnreadCount(ctx, sessionID, 0); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to reset cached unread count")
	}
	return s.store.ActiveAdminChat(), nil
}

// SendCustomerMessage performs an optimistic send on the guest/customer's
// own session. While disconnected the send is refused outright: no local
// entry is created and the surface keeps composing disabled.
func (s *ChatService) SendCustomerMessage(ctx context.Context, text string) (string, error) {
	if !s.relay.IsConnected() {
		return "", relay.ErrNotConnected
	}

	conv := s.store.CustomerConversation()
	if conv == nil {
		return "", fmt.Errorf("customer session not initialized")
	}

	msg := domain.NewPendingMessage(conv.Session.ID, s.identity.Role, s.identity.SenderID(), s.identity.Name, text, time.Now())
	if msg == nil {
		return "", fmt.Errorf("message text is empty")
	}

	localID := s.store.AddOptimisticMessage(msg)

	err := s.relay.Emit(ctx, wire.EventCustomerChatMessage, wire.CustomerMessagePayload{
		Text:      msg.Text,
		ClientTag: localID,
	})
	if err != nil {
		// The send is known to have failed; take the optimistic entry
		// back out instead of leaving an orphan.
		s.store.RevertOptimisticMessage(localID, conv.Session.ID)
		return "", err
	}
	return localID, nil
}

// SendAdminReply performs an optimistic send into a specific session.
func (s *ChatService) SendAdminReply(ctx context.Context, sessionID, text string) (string, error) {
	if !s.relay.IsConnected() {
		return "", relay.ErrNotConnected
	}

	msg := domain.NewPendingMessage(sessionID, domain.SenderAdmin, s.identity.SenderID(), s.identity.Name, text, time.Now())
	if msg == nil {
		return "", fmt.Errorf("message text is empty")
	}

	localID := s.store.AddOptimisticMessage(msg)

	err := s.relay.Emit(ctx, wire.EventAdminToCustomerMessage, wire.AdminMessagePayload{
		Text:      msg.Text,
		SessionID: sessionID,
		ClientTag: localID,
	})
	if err != nil {
		s.store.RevertOptimisticMessage(localID, sessionID)
		return "", err
	}
	return localID, nil
}

// MarkAsRead emits the batched read notification and, on success, stamps
// the messages locally and in the cache. A failed emission leaves them
// unread; the next render pass re-attempts.
func (s *ChatService) MarkAsRead(ctx context.Context, sessionID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	err := s.relay.Emit(ctx, wire.EventMessagesRead, wire.MessagesReadPayload{
		SessionID:  sessionID,
		MessageIDs: messageIDs,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	s.store.MarkMessagesRead(sessionID, messageIDs, now)
	if err := s.msgRepo.MarkRead(ctx, messageIDs, now); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to update cached read status")
	}
	return nil
}

// NewTypingController builds the debounced presence controller for one
// composing surface. Emission is fire-and-forget.
func (s *ChatService) NewTypingController(sessionID string, clock typing.Clock) *typing.Controller {
	return typing.NewController(func(active bool) {
		event := wire.EventStopTyping
		if active {
			event = wire.EventStartTyping
		}
		payload := wire.TypingPayload{SessionID: sessionID, UserName: s.identity.Name}
		if err := s.relay.Emit(context.Background(), event, payload); err != nil {
			s.logger.Debug().Err(err).Str("event", event).Msg("typing emit dropped")
		}
	}, clock)
}

// ResolveSession, ArchiveSession and CloseSession front the storefront's
// workflow endpoints and keep the store and cache in step.
func (s *ChatService) ResolveSession(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, "resolve", domain.SessionStatusResolved)
}

func (s *ChatService) ArchiveSession(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, "archive", domain.SessionStatusArchived)
}

func (s *ChatService) CloseSession(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, "close", domain.SessionStatusResolved)
}

func (s *ChatService) transition(ctx context.Context, sessionID, action string, status domain.SessionStatus) error {
	session, err := s.sessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := session.TransitionStatus(status); err != nil {
		return err
	}

	if err := s.api.UpdateStatus(ctx, sessionID, action); err != nil {
		return err
	}

	s.store.UpsertAdminSession(session)
	if err := s.sessRepo.UpdateStatus(ctx, sessionID, status); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to update cached session status")
	}
	return nil
}

func (s *ChatService) sessionByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	for _, sess := range s.store.AdminSessions() {
		if sess.ID == sessionID {
			return sess, nil
		}
	}
	session, err := s.sessRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("unknown session %s", sessionID)
	}
	return session, nil
}

// CachedSessions and CachedMessages serve the offline surfaces from the
// local mirror.
func (s *ChatService) CachedSessions(ctx context.Context, limit, offset int) ([]*domain.Session, error) {
	return s.sessRepo.GetAll(ctx, limit, offset)
}

func (s *ChatService) CachedMessages(ctx context.Context, sessionID string, limit, offset int) ([]*domain.Message, error) {
	return s.msgRepo.GetBySession(ctx, sessionID, limit, offset)
}

func (s *ChatService) SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	return s.msgRepo.Search(ctx, query, limit)
}

func (s *ChatService) handleNewMessage(data json.RawMessage) {
	var payload wire.NewMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Warn().Err(err).Msg("discarding undecodable message frame")
		return
	}

	msg := payload.SavedMessage.ToDomain()
	s.store.AddMessage(msg)

	ctx := context.Background()
	if err := s.msgRepo.CreateOrIgnore(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to cache message")
	}
	if err := s.sessRepo.UpdateLastMessage(ctx, msg.SessionID, msg.Text, msg.SenderName, msg.CreatedAt); err != nil {
		s.logger.Warn().Err(err).Str("session_id", msg.SessionID).Msg("failed to update cached session summary")
	}
	if !msg.OwnedBy(s.identity.Role, s.identity.ID) {
		if err := s.sessRepo.IncrementUnreadCount(ctx, msg.SessionID); err != nil {
			s.logger.Warn().Err(err).Str("session_id", msg.SessionID).Msg("failed to increment cached unread count")
		}
	}
}

func (s *ChatService) handleNewSession(json.RawMessage) {
	s.bus.Publish(domain.SessionsChangedEvent{EventTime: time.Now()})

	// The frame carries no body; the list is refetched from the API.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := s.RefreshSessions(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("session list refetch failed")
		}
	}()
}

func (s *ChatService) handleTyping(start bool) relay.Handler {
	return func(data json.RawMessage) {
		var payload wire.TypingPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			s.logger.Warn().Err(err).Msg("discarding undecodable typing frame")
			return
		}
		if start {
			s.store.SetPeerTyping(payload.SessionID, payload.UserName)
		} else {
			s.store.ClearPeerTyping(payload.SessionID)
		}
	}
}

func (s *ChatService) handleMessagesRead(data json.RawMessage) {
	var payload wire.MessagesReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Warn().Err(err).Msg("discarding undecodable read frame")
		return
	}

	now := time.Now()
	s.store.MarkMessagesRead(payload.SessionID, payload.MessageIDs, now)
	if err := s.msgRepo.MarkRead(context.Background(), payload.MessageIDs, now); err != nil {
		s.logger.Warn().Err(err).Str("session_id", payload.SessionID).Msg("failed to update cached read status")
	}
}
