// Package store provides conversation persistence for the stub council
// server: one interface with an in-memory implementation (local dev,
// tests) and a PostgreSQL implementation (shared deployments).
package store

import (
	"context"

	"github.com/llmcouncil/councilgo/pkg/models"
)

// ConversationStore is what the stub server's handlers depend on. All
// identifiers are opaque strings chosen by the caller.
type ConversationStore interface {
	// List returns conversation metadata, newest first. An empty userID
	// lists every conversation.
	List(ctx context.Context, userID string) ([]models.ConversationSummary, error)

	// Create stores a new conversation. Missing title and creation time
	// are filled with defaults.
	Create(ctx context.Context, conv *models.Conversation) error

	// Get returns one conversation with all messages.
	Get(ctx context.Context, id string) (*models.Conversation, error)

	// Delete removes a conversation permanently.
	Delete(ctx context.Context, id string) error

	// AppendMessage adds one message to the end of a conversation.
	AppendMessage(ctx context.Context, id string, msg models.Message) error

	// SetTitle replaces a conversation's title.
	SetTitle(ctx context.Context, id, title string) error

	// Ping checks the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}
