package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the council CLI and stub server.
type Config struct {
	// ServerURL is the council service the CLI talks to.
	ServerURL string

	// Port is where the stub server listens.
	Port int

	Version string

	// DataDir holds the CLI's persistent user id and the memory store's
	// snapshots.
	DataDir string

	// DatabaseURL switches the stub to the Postgres store when set.
	DatabaseURL string

	LogLevel  string
	Telemetry TelemetryConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible
// defaults, after a best-effort .env preload.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerURL:   envStr("COUNCIL_SERVER_URL", "http://localhost:8001"),
		Port:        envInt("COUNCIL_PORT", 8001),
		Version:     envStr("COUNCIL_VERSION", "0.1.0"),
		DataDir:     envStr("COUNCIL_DATA_DIR", defaultDataDir()),
		DatabaseURL: envStr("COUNCIL_DATABASE_URL", ""),
		LogLevel:    envStr("COUNCIL_LOG_LEVEL", "info"),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "councilgo"),
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".councilgo")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
