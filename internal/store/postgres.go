package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/llmcouncil/councilgo/pkg/models"
)

// PostgresStore implements ConversationStore on PostgreSQL. Messages live
// as a JSONB array on the conversation row, matching the service's own
// storage layout. Connection URL comes from COUNCIL_DATABASE_URL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings, and creates the schema if needed.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("Postgres store initialized")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL DEFAULT 'default',
			title      TEXT NOT NULL DEFAULT 'New Conversation',
			messages   JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, created_at DESC);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	query := `SELECT id, user_id, title, jsonb_array_length(messages), created_at
		FROM conversations`
	args := []interface{}{}
	if userID != "" {
		query += " WHERE user_id = $1"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres list: %w", err)
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var cs models.ConversationSummary
		if err := rows.Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.MessageCount, &cs.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, conv *models.Conversation) error {
	title := conv.Title
	if title == "" {
		title = models.DefaultTitle
	}
	messages := conv.Messages
	if messages == nil {
		messages = []models.Message{}
	}
	createdAt := conv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT INTO conversations (id, user_id, title, messages, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, query, conv.ID, conv.UserID, title, messages, createdAt)
	if err != nil {
		return fmt.Errorf("postgres create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, messages, created_at FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.Messages, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "conversation", Key: id}
		}
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	return nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, id string, msg models.Message) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE conversations SET messages = messages || $2 WHERE id = $1`, id, msg)
	if err != nil {
		return fmt.Errorf("postgres append: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	return nil
}

func (s *PostgresStore) SetTitle(ctx context.Context, id, title string) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $2 WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("postgres title: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
