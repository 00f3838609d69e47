// Council stub server: a deterministic stand-in for the hosted LLM
// council service.
//
// It speaks the same HTTP and SSE surface as the real backend:
//   - Conversation CRUD (list, create, get, delete)
//   - Plain council turns (all stages in one response)
//   - Streaming council turns (stage events over SSE)
//
// Council answers come from a fixed script, so the stub needs no model
// provider credentials and behaves identically on every run.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/llmcouncil/councilgo/internal/config"
	"github.com/llmcouncil/councilgo/internal/store"
	"github.com/llmcouncil/councilgo/internal/stub"
	"github.com/llmcouncil/councilgo/internal/telemetry"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	log.Info().Msg("🏛️ Council stub starting...")

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdownTelemetry(ctx)

	dataStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer dataStore.Close()

	h := stub.New(dataStore, stub.DefaultScript())
	router := stub.NewRouter(h, cfg)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("🛑 Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("🏛️ Council stub is ready")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// newStore picks PostgreSQL when a database URL is configured, otherwise a
// snapshot-backed in-memory store under the data dir.
func newStore(ctx context.Context, cfg *config.Config) (store.ConversationStore, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	s := store.NewMemoryStore(filepath.Join(cfg.DataDir, "conversations"))
	log.Info().Msg("✅ In-memory store initialized")
	return s, nil
}
