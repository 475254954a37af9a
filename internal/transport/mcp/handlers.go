package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}

	sessions, err := s.chatSvc.CachedSessions(ctx, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get sessions: %v", err)), nil
	}

	if len(sessions) == 0 {
		return mcp.NewToolResultText("No support sessions found. Make sure the relay is connected and the list has been refreshed."), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d session(s):\n\n", len(sessions)))

	for i, sess := range sessions {
		result.WriteString(fmt.Sprintf("%d. %s (%s, %s)\n", i+1, sess.ParticipantName, sess.ParticipantKind, sess.Status))
		result.WriteString(fmt.Sprintf("   ID: %s\n", sess.ID))

		if sess.UnreadCount > 0 {
			result.WriteString(fmt.Sprintf("   Unread: %d message(s)\n", sess.UnreadCount))
		}

		if sess.LastMessageText != "" {
			preview := sess.LastMessageText
			if len(preview) > 60 {
				preview = preview[:60] + "..."
			}
			result.WriteString(fmt.Sprintf("   Last: %s\n", preview))
			if !sess.LastMessageTime.IsZero() {
				result.WriteString(fmt.Sprintf("   Time: %s\n", sess.LastMessageTime.Format("2006-01-02 15:04")))
			}
		}
		result.WriteString("\n")
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleGetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	limit := request.GetInt("limit", 50)
	if limit > 200 {
		limit = 200
	}
	if limit <= 0 {
		limit = 50
	}

	messages, err := s.chatSvc.CachedMessages(ctx, sessionID, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get messages: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found in session %s", sessionID)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Messages from session %s (%d):\n\n", sessionID, len(messages)))

	for _, msg := range messages {
		sender := msg.SenderName
		if sender == "" {
			sender = string(msg.SenderType)
		}

		timestamp := msg.CreatedAt.Format("2006-01-02 15:04")
		readStatus := ""
		if msg.ReadAt != nil {
			readStatus = " [read]"
		}

		result.WriteString(fmt.Sprintf("[%s] %s (%s)%s:\n", timestamp, sender, msg.SenderType, readStatus))
		result.WriteString(fmt.Sprintf("  %s\n", msg.Text))
		result.WriteString(fmt.Sprintf("  ID: %s\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleSendReply(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	text := request.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	localID, err := s.chatSvc.SendAdminReply(ctx, sessionID, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send reply: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Reply sent into session %s.\nPending local id: %s (replaced once the relay confirms)", sessionID, localID)), nil
}

func (s *Server) handleMarkRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	messageIDsStr := request.GetString("message_ids", "")

	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	if messageIDsStr == "" {
		return mcp.NewToolResultError("message_ids is required"), nil
	}

	messageIDs := strings.Split(messageIDsStr, ",")
	for i := range messageIDs {
		messageIDs[i] = strings.TrimSpace(messageIDs[i])
	}

	if err := s.chatSvc.MarkAsRead(ctx, sessionID, messageIDs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to mark as read: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Marked %d message(s) as read in session %s", len(messageIDs), sessionID)), nil
}

func (s *Server) handleSearchMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}

	messages, err := s.chatSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found matching '%s'", query)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Search results for '%s' (%d found):\n\n", query, len(messages)))

	for i, msg := range messages {
		sender := msg.SenderName
		if sender == "" {
			sender = string(msg.SenderType)
		}

		result.WriteString(fmt.Sprintf("%d. [%s] %s:\n", i+1, msg.CreatedAt.Format("2006-01-02 15:04"), sender))
		result.WriteString(fmt.Sprintf("   Session: %s\n", msg.SessionID))

		text := msg.Text
		if len(text) > 100 {
			text = text[:100] + "..."
		}
		result.WriteString(fmt.Sprintf("   %s\n", text))
		result.WriteString(fmt.Sprintf("   ID: %s\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleResolveSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if err := s.chatSvc.ResolveSession(ctx, sessionID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve session: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s marked as %s", sessionID, domain.SessionStatusResolved)), nil
}

func (s *Server) handleArchiveSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if err := s.chatSvc.ArchiveSession(ctx, sessionID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to archive session: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s archived. This is terminal; it cannot be reopened.", sessionID)), nil
}

func (s *Server) handleConnectionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	connected := s.chatSvc.IsConnected()

	status := "Disconnected"
	if connected {
		status = "Connected"
	}

	return mcp.NewToolResultText(fmt.Sprintf("Relay Status: %s\nConnected: %v", status, connected)), nil
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.chatSvc.Connect(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to connect: %v", err)), nil
	}
	return mcp.NewToolResultText("Connected to chat relay"), nil
}

func (s *Server) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.chatSvc.Disconnect()
	return mcp.NewToolResultText("Disconnected from chat relay"), nil
}

func (s *Server) handleRefreshSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.chatSvc.RefreshSessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to refresh sessions: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Refreshed %d session(s) from the storefront API", len(sessions))), nil
}
