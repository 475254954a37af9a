package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/service"
)

type ServerConfig struct {
	Address string
}

type Server struct {
	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server
	chatSvc    *service.ChatService
	config     ServerConfig
}

func NewServer(chatSvc *service.ChatService, config ServerConfig) *Server {
	s := &Server{
		chatSvc: chatSvc,
		config:  config,
	}

	s.mcpServer = server.NewMCPServer(
		"support-bridge",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithKeepAliveInterval(30*time.Second),
	)

	return s
}

func (s *Server) registerTools() {
	// List sessions tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_list_sessions",
			mcp.WithDescription("List customer support sessions sorted by most recent activity"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of sessions to return (default 20, max 100)"),
			),
		),
		s.handleListSessions,
	)

	// Get messages tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_get_messages",
			mcp.WithDescription("Get messages from a specific support session"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Identifier of the support session"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of messages to return (default 50, max 200)"),
			),
		),
		s.handleGetMessages,
	)

	// Reply tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_send_reply",
			mcp.WithDescription("Send an admin reply into a support session"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Identifier of the session to reply into"),
			),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Message text to send"),
			),
		),
		s.handleSendReply,
	)

	// Mark as read tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_mark_read",
			mcp.WithDescription("Mark messages as read in a session"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Identifier of the session"),
			),
			mcp.WithString("message_ids",
				mcp.Required(),
				mcp.Description("Comma-separated list of message IDs to mark as read"),
			),
		),
		s.handleMarkRead,
	)

	// Search messages tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_search_messages",
			mcp.WithDescription("Search cached messages across all sessions by text content"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query text"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum results to return (default 20, max 100)"),
			),
		),
		s.handleSearchMessages,
	)

	// Workflow tools
	s.mcpServer.AddTool(
		mcp.NewTool("support_resolve_session",
			mcp.WithDescription("Mark a support session as resolved"),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Identifier of the session"),
			),
		),
		s.handleResolveSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("support_archive_session",
			mcp.WithDescription("Archive a support session. Archiving is terminal; the session cannot be reopened."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Identifier of the session"),
			),
		),
		s.handleArchiveSession,
	)

	// Connection status tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_connection_status",
			mcp.WithDescription("Get current chat relay connection status"),
		),
		s.handleConnectionStatus,
	)

	// Connect tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_connect",
			mcp.WithDescription("Connect to the chat relay"),
		),
		s.handleConnect,
	)

	// Disconnect tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_disconnect",
			mcp.WithDescription("Disconnect from the chat relay"),
		),
		s.handleDisconnect,
	)

	// Refresh tool
	s.mcpServer.AddTool(
		mcp.NewTool("support_refresh_sessions",
			mcp.WithDescription("Refetch the session list from the storefront API"),
		),
		s.handleRefreshSessions,
	)
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.Handle("/sse", s.sseServer.SSEHandler())
	mux.Handle("/message", s.sseServer.MessageHandler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: mux,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
