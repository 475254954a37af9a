package config

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Mode         string
	RelayURL     string
	APIBaseURL   string
	DatabasePath string
	MCPAddress   string
	LogLevel     string

	// Identity of this bridge instance.
	Role     string
	UserID   string
	UserName string
}

func Load() *Config {
	// Missing .env is fine; plain env vars still apply.
	_ = godotenv.Load()

	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".support-bridge")

	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", "server", "Run mode: server, interactive, or headless")
	flag.StringVar(&cfg.RelayURL, "relay", getEnv("RELAY_URL", "ws://127.0.0.1:4000/chat"), "Chat relay websocket URL")
	flag.StringVar(&cfg.APIBaseURL, "api", getEnv("SUPPORT_API_URL", "http://127.0.0.1:4000/api"), "Storefront REST API base URL")
	flag.StringVar(&cfg.DatabasePath, "db", getEnv("SUPPORT_DB_PATH", filepath.Join(dataDir, "support.db")), "Local cache database path")
	flag.StringVar(&cfg.MCPAddress, "mcp-port", getEnv("SUPPORT_MCP_ADDRESS", "127.0.0.1:8090"), "MCP SSE server address")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("SUPPORT_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.Role, "role", getEnv("SUPPORT_ROLE", "admin"), "Bridge identity: guest, customer, or admin")
	flag.StringVar(&cfg.UserID, "user-id", getEnv("SUPPORT_USER_ID", ""), "Identifier for customer/admin identities (guests have none)")
	flag.StringVar(&cfg.UserName, "user-name", getEnv("SUPPORT_USER_NAME", "support"), "Display name used for typing presence")

	flag.Parse()

	// Ensure the cache directory exists
	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
