package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration.
type Config struct {
	// BackendURL is the ExStem API root, e.g. https://exam.example.sch.id/api/v1.
	BackendURL string
	// ExamID identifies the exam the candidate is sitting.
	ExamID string
	// SessionToken is the student JWT obtained from the login flow.
	SessionToken string
	// EntryToken is the exam entry token. When empty the agent prompts for it
	// on stdin.
	EntryToken string

	// BridgeAddr is the loopback address the exam surface connects to.
	BridgeAddr string
	// BridgeOrigins controls CORS and WebSocket origin validation for the
	// bridge. Empty slice means all origins are permitted (dev default).
	BridgeOrigins []string
	// SurfaceWaitSeconds is how long the agent waits for the exam surface to
	// connect before starting the session anyway (a missing surface then
	// counts as a lockdown violation).
	SurfaceWaitSeconds int

	// DataDir holds the local audit journal.
	DataDir string
	// MaxWarnings is the violation allowance before auto-submission.
	MaxWarnings int

	LogLevel  string
	LogFormat string
	GinMode   string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		BackendURL:         getEnv("BACKEND_URL", "http://localhost:8080/api/v1"),
		ExamID:             getEnv("EXAM_ID", ""),
		SessionToken:       getEnv("SESSION_TOKEN", ""),
		EntryToken:         getEnv("ENTRY_TOKEN", ""),
		BridgeAddr:         getEnv("BRIDGE_ADDR", "127.0.0.1:7310"),
		BridgeOrigins:      parseOrigins(getEnv("BRIDGE_ORIGINS", "")),
		SurfaceWaitSeconds: getEnvInt("SURFACE_WAIT_SECONDS", 30),
		DataDir:            getEnv("DATA_DIR", "./data"),
		MaxWarnings:        getEnvInt("MAX_WARNINGS", 2),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "pretty"),
		GinMode:            getEnv("GIN_MODE", "release"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
