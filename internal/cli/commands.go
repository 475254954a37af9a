package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/logger"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/receipts"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/service"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/typing"
)

// CommandHandler handles CLI commands
type CommandHandler struct {
	chatSvc *service.ChatService
	reads   *receipts.Tracker

	mu       sync.Mutex
	typists  map[string]*typing.Controller
	rendered *renderObserver
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(chatSvc *service.ChatService) *CommandHandler {
	h := &CommandHandler{
		chatSvc: chatSvc,
		typists: make(map[string]*typing.Controller),
	}

	identity := chatSvc.Identity()
	h.reads = receipts.NewTracker(
		identity.Role,
		identity.ID,
		h.newRenderObserver,
		func(sessionID string, ids []string) error {
			return chatSvc.MarkAsRead(context.Background(), sessionID, ids)
		},
		logger.Module("receipts"),
	)

	return h
}

// renderObserver is the terminal's visibility source: printing a message is
// showing it, so every observed id becomes visible on the next flush.
type renderObserver struct {
	mu        sync.Mutex
	onVisible func([]string)
	pending   []string
	disposed  bool
}

func (o *renderObserver) Observe(id string) {
	o.mu.Lock()
	o.pending = append(o.pending, id)
	o.mu.Unlock()
}

func (o *renderObserver) Unobserve(string) {}

func (o *renderObserver) Dispose() {
	o.mu.Lock()
	o.disposed = true
	o.pending = nil
	o.mu.Unlock()
}

func (o *renderObserver) flush() {
	o.mu.Lock()
	ids := o.pending
	o.pending = nil
	disposed := o.disposed
	o.mu.Unlock()

	if !disposed && len(ids) > 0 {
		o.onVisible(ids)
	}
}

func (h *CommandHandler) newRenderObserver(onVisible func([]string)) receipts.VisibilityObserver {
	o := &renderObserver{onVisible: onVisible}
	h.mu.Lock()
	h.rendered = o
	h.mu.Unlock()
	return o
}

// markVisible syncs the read tracker against a freshly rendered message list
// and reports everything on screen as seen.
func (h *CommandHandler) markVisible(sessionID string, messages []*domain.Message) {
	h.reads.Sync(sessionID, messages)

	h.mu.Lock()
	o := h.rendered
	h.mu.Unlock()
	if o != nil {
		o.flush()
	}
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string (e.g., "/reply 7 On it, one moment")
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	return &Command{Name: name, Args: args}, nil
}

// Execute executes a command and returns the result
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus()
	case "connect", "c":
		return h.cmdConnect(ctx)
	case "disconnect", "d":
		return h.cmdDisconnect()
	case "init":
		return h.cmdInit(ctx)
	case "sessions", "ls":
		return h.cmdSessions(ctx, cmd.Args)
	case "refresh":
		return h.cmdRefresh(ctx)
	case "focus":
		return h.cmdFocus(ctx, cmd.Args)
	case "messages", "msg":
		return h.cmdMessages(ctx, cmd.Args)
	case "send":
		return h.cmdSend(ctx, cmd.Args)
	case "reply":
		return h.cmdReply(ctx, cmd.Args)
	case "typing":
		return h.cmdTyping(cmd.Args)
	case "read":
		return h.cmdRead(ctx, cmd.Args)
	case "resolve":
		return h.cmdResolve(ctx, cmd.Args)
	case "archive":
		return h.cmdArchive(ctx, cmd.Args)
	case "search":
		return h.cmdSearch(ctx, cmd.Args)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

// SubscribeEvents bridges the domain event bus into CLI events.
func (h *CommandHandler) SubscribeEvents(eventTypes []domain.EventType) <-chan Event {
	src := h.chatSvc.EventBus().Subscribe(eventTypes)
	out := make(chan Event, 100)

	go func() {
		defer close(out)
		for evt := range src {
			out <- Event{
				Type:      string(evt.Type()),
				Timestamp: evt.Timestamp(),
				Data:      describeEvent(evt),
			}
		}
	}()

	return out
}

func describeEvent(evt domain.Event) interface{} {
	switch v := evt.(type) {
	case domain.ConnectionStatusEvent:
		return map[string]interface{}{"connected": v.Connected, "reason": v.Reason}
	case domain.MessagePendingEvent:
		return messageToInfo(v.Message)
	case domain.MessageConfirmedEvent:
		return map[string]interface{}{
			"message":        messageToInfo(v.Message),
			"replaced_local": v.ReplacedLocal,
		}
	case domain.MessagesReadEvent:
		return map[string]interface{}{"session_id": v.SessionID, "message_ids": v.MessageIDs}
	case domain.SessionUpdatedEvent:
		return sessionToInfo(v.Session)
	case domain.PeerTypingEvent:
		return map[string]interface{}{"session_id": v.SessionID, "peer": v.PeerName, "typing": v.Typing}
	default:
		return nil
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Connection:
  /status, /s              Show relay connection status
  /connect, /c             Connect to the chat relay
  /disconnect, /d          Disconnect from the chat relay

Customer:
  /init                    Resolve and seed your own support session
  /send <text>             Send a message on your own session
  (bare text also sends when no session is focused)

Admin:
  /sessions, /ls [limit]   List support sessions (local cache)
  /refresh                 Refetch the session list from the storefront API
  /focus <session_id>      Focus a session and stream its messages
  /reply <session_id> <text>  Reply into a session
  /resolve <session_id>    Mark a session resolved
  /archive <session_id>    Archive a session (terminal)

Messages:
  /messages, /msg <session_id> [limit]  Show cached messages
  /typing <session_id>     Register a keystroke (typing presence)
  /read <session_id> <msg_id> [...]     Mark messages as read
  /search <query> [limit]  Search cached messages

Other:
  /help, /h                Show this help
  /quit, /exit, /q         Exit the CLI`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() (interface{}, error) {
	connected := h.chatSvc.IsConnected()

	status := "disconnected"
	if connected {
		status = "connected"
	}

	return ConnectionStatus{
		Connected: connected,
		Status:    status,
	}, nil
}

func (h *CommandHandler) cmdConnect(ctx context.Context) (interface{}, error) {
	if err := h.chatSvc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return map[string]string{"message": "Connected to chat relay"}, nil
}

func (h *CommandHandler) cmdDisconnect() (interface{}, error) {
	h.chatSvc.Disconnect()
	return map[string]string{"message": "Disconnected from chat relay"}, nil
}

func (h *CommandHandler) cmdInit(ctx context.Context) (interface{}, error) {
	session, err := h.chatSvc.InitializeCustomerSession(ctx)
	if err != nil {
		return nil, err
	}

	if conv := h.chatSvc.Store().CustomerConversation(); conv != nil {
		h.markVisible(conv.Session.ID, conv.Messages)
	}
	return sessionToInfo(session), nil
}

func (h *CommandHandler) cmdSessions(ctx context.Context, args []string) (interface{}, error) {
	limit := 20
	if len(args) > 0 {
		if l, err := strconv.Atoi(args[0]); err == nil && l > 0 {
			limit = l
		}
	}

	sessions, err := h.chatSvc.CachedSessions(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	result := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		result[i] = sessionToInfo(sess)
	}

	return map[string]interface{}{"sessions": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdRefresh(ctx context.Context) (interface{}, error) {
	sessions, err := h.chatSvc.RefreshSessions(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": len(sessions)}, nil
}

func (h *CommandHandler) cmdFocus(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /focus <session_id>")
	}

	conv, err := h.chatSvc.FocusSession(ctx, args[0])
	if err != nil {
		return nil, err
	}

	h.markVisible(conv.Session.ID, conv.Messages)

	result := make([]MessageInfo, len(conv.Messages))
	for i, msg := range conv.Messages {
		result[i] = messageToInfo(msg)
	}

	return map[string]interface{}{
		"session":  sessionToInfo(conv.Session),
		"messages": result,
	}, nil
}

func (h *CommandHandler) cmdMessages(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /messages <session_id> [limit]")
	}

	limit := 50
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[1]); err == nil && l > 0 {
			limit = l
		}
	}

	messages, err := h.chatSvc.CachedMessages(ctx, args[0], limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = messageToInfo(msg)
	}

	return map[string]interface{}{"messages": result, "count": len(result)}, nil
}

// Send routes bare text: it becomes a customer send on the own session, or
// an admin reply when a session is focused.
func (h *CommandHandler) Send(ctx context.Context, text string) (interface{}, error) {
	if active := h.chatSvc.Store().ActiveAdminChat(); active != nil {
		return h.cmdReply(ctx, append([]string{active.Session.ID}, text))
	}
	return h.cmdSend(ctx, []string{text})
}

func (h *CommandHandler) cmdSend(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /send <text>")
	}

	text := strings.Join(args, " ")

	conv := h.chatSvc.Store().CustomerConversation()
	if conv != nil {
		h.typist(conv.Session.ID).MessageSent()
	}

	localID, err := h.chatSvc.SendCustomerMessage(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return map[string]string{"local_id": localID}, nil
}

func (h *CommandHandler) cmdReply(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /reply <session_id> <text>")
	}

	sessionID := args[0]
	text := strings.Join(args[1:], " ")

	h.typist(sessionID).MessageSent()

	localID, err := h.chatSvc.SendAdminReply(ctx, sessionID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to send reply: %w", err)
	}

	return map[string]string{"local_id": localID, "session_id": sessionID}, nil
}

func (h *CommandHandler) cmdTyping(args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /typing <session_id>")
	}

	h.typist(args[0]).Keystroke()
	return map[string]string{"session_id": args[0]}, nil
}

func (h *CommandHandler) cmdRead(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /read <session_id> <msg_id> [...]")
	}

	sessionID := args[0]
	messageIDs := args[1:]

	if err := h.chatSvc.MarkAsRead(ctx, sessionID, messageIDs); err != nil {
		return nil, fmt.Errorf("failed to mark as read: %w", err)
	}

	return map[string]interface{}{"session_id": sessionID, "count": len(messageIDs)}, nil
}

func (h *CommandHandler) cmdResolve(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /resolve <session_id>")
	}
	if err := h.chatSvc.ResolveSession(ctx, args[0]); err != nil {
		return nil, err
	}
	return map[string]string{"session_id": args[0], "status": string(domain.SessionStatusResolved)}, nil
}

func (h *CommandHandler) cmdArchive(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /archive <session_id>")
	}
	if err := h.chatSvc.ArchiveSession(ctx, args[0]); err != nil {
		return nil, err
	}
	return map[string]string{"session_id": args[0], "status": string(domain.SessionStatusArchived)}, nil
}

func (h *CommandHandler) cmdSearch(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /search <query> [limit]")
	}

	limit := 20
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[len(args)-1]); err == nil && l > 0 {
			limit = l
			args = args[:len(args)-1]
		}
	}

	query := strings.Join(args, " ")

	messages, err := h.chatSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = messageToInfo(msg)
	}

	return map[string]interface{}{"messages": result, "count": len(result)}, nil
}

// Close disposes the read tracker and the typing controllers without
// emitting stop_typing for sessions this surface no longer renders.
func (h *CommandHandler) Close() {
	h.reads.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.typists {
		t.Close()
	}
	h.typists = make(map[string]*typing.Controller)
}

func (h *CommandHandler) typist(sessionID string) *typing.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.typists[sessionID]
	if !ok {
		t = h.chatSvc.NewTypingController(sessionID, typing.RealClock())
		h.typists[sessionID] = t
	}
	return t
}

func sessionToInfo(sess *domain.Session) SessionInfo {
	return SessionInfo{
		ID:              sess.ID,
		ParticipantKind: string(sess.ParticipantKind),
		ParticipantName: sess.ParticipantName,
		Status:          string(sess.Status),
		UnreadCount:     sess.UnreadCount,
		LastMessageText: sess.LastMessageText,
		LastMessageTime: sess.LastMessageTime,
	}
}

func messageToInfo(msg *domain.Message) MessageInfo {
	return MessageInfo{
		ID:         msg.ID,
		LocalID:    msg.LocalID,
		State:      string(msg.State),
		SessionID:  msg.SessionID,
		SenderType: string(msg.SenderType),
		SenderName: msg.SenderName,
		Text:       msg.Text,
		CreatedAt:  msg.CreatedAt,
		ReadAt:     msg.ReadAt,
	}
}
