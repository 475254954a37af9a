package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/api"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/cli"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/config"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/logger"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/relay"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/repository"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/service"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/store"
	mcpTransport "github.com/shopstack-oss/shopstack/support-bridge/internal/transport/mcp"
)

// RunMode defines how the application runs
type RunMode string

const (
	RunModeServer      RunMode = "server"
	RunModeInteractive RunMode = "interactive"
	RunModeHeadless    RunMode = "headless"
)

func main() {
	cfg := config.Load()

	// CLI modes keep the log output quiet so the prompt stays usable
	level := cfg.LogLevel
	if RunMode(cfg.Mode) != RunModeServer && cfg.LogLevel == "info" {
		level = "error"
	}
	logger.Init(level)

	db, err := initDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	msgRepo := repository.NewMessageRepository(db)
	sessRepo := repository.NewSessionRepository(db)

	eventBus := domain.NewEventBus()

	relayClient := relay.NewClient(cfg.RelayURL, eventBus, logger.Module("relay"))
	chatStore := store.New(eventBus)
	apiClient := api.NewClient(cfg.APIBaseURL)

	identity := service.Identity{
		Role: domain.SenderType(cfg.Role),
		ID:   cfg.UserID,
		Name: cfg.UserName,
	}

	chatSvc := service.NewChatService(
		relayClient,
		chatStore,
		eventBus,
		msgRepo,
		sessRepo,
		apiClient,
		identity,
		logger.Module("chat"),
	)

	ctx := context.Background()

	switch RunMode(cfg.Mode) {
	case RunModeInteractive:
		runCLIMode(ctx, chatSvc, false)
	case RunModeHeadless:
		runCLIMode(ctx, chatSvc, true)
	default:
		runServerMode(ctx, cfg, chatSvc)
	}
}

func runServerMode(ctx context.Context, cfg *config.Config, chatSvc *service.ChatService) {
	log.Printf("Support Bridge starting...")
	log.Printf("Relay: %s", cfg.RelayURL)
	log.Printf("Database: %s", cfg.DatabasePath)
	log.Printf("MCP address: %s", cfg.MCPAddress)

	mcpServer := mcpTransport.NewServer(
		chatSvc,
		mcpTransport.ServerConfig{
			Address: cfg.MCPAddress,
		},
	)

	errCh := make(chan error, 1)

	go func() {
		log.Printf("Starting MCP SSE server on %s", cfg.MCPAddress)
		if err := mcpServer.Start(); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	// Auto-connect to the relay; tools can reconnect later on failure
	go func() {
		time.Sleep(1 * time.Second) // Brief delay to let the server start
		if err := chatSvc.Connect(context.Background()); err != nil {
			log.Printf("Auto-connect failed: %v", err)
			return
		}
		log.Printf("Connected to chat relay")

		refreshCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := chatSvc.RefreshSessions(refreshCtx); err != nil {
			log.Printf("Initial session refresh failed: %v", err)
		}
	}()

	// Print ready message for subprocess coordination
	fmt.Println("ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("Disconnecting from relay...")
	chatSvc.Disconnect()

	log.Printf("Stopping MCP server...")
	if err := mcpServer.Stop(shutdownCtx); err != nil {
		log.Printf("MCP server stop error: %v", err)
	}

	log.Printf("Shutdown complete")
}

func runCLIMode(ctx context.Context, chatSvc *service.ChatService, headless bool) {
	handler := cli.NewCommandHandler(chatSvc)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	var err error
	if headless {
		err = cli.NewHeadlessCLI(handler).Run(ctx)
	} else {
		err = cli.NewInteractiveCLI(handler).Run(ctx)
	}
	if err != nil && err != context.Canceled {
		log.Printf("CLI error: %v", err)
	}

	chatSvc.Disconnect()
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	err = db.AutoMigrate(
		&repository.MessageModel{},
		&repository.SessionModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
