package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/llmcouncil/councilgo/pkg/models"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Conversations map[string]*models.Conversation `json:"conversations"`
}

// MemoryStore implements ConversationStore with an in-memory map. Used
// when no database is configured (local dev, tests). With a data dir it
// snapshots to a JSON file so a dev stub survives restarts.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation // key: id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save goroutine to stop
}

// NewMemoryStore creates an in-memory store. If dataDir is non-empty,
// conversations are persisted to a JSON file in that directory and loaded
// back on the next start.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		saveCh:        make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "conversations.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

func (m *MemoryStore) List(_ context.Context, userID string) ([]models.ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]models.ConversationSummary, 0, len(m.conversations))
	for _, c := range m.conversations {
		if userID != "" && c.UserID != userID {
			continue
		}
		summaries = append(summaries, models.ConversationSummary{
			ID:           c.ID,
			UserID:       c.UserID,
			Title:        c.Title,
			MessageCount: len(c.Messages),
			CreatedAt:    c.CreatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (m *MemoryStore) Create(_ context.Context, conv *models.Conversation) error {
	cp := *conv
	if cp.Title == "" {
		cp.Title = models.DefaultTitle
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	if cp.Messages == nil {
		cp.Messages = []models.Message{}
	}

	m.mu.Lock()
	m.conversations[cp.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "conversation", Key: id}
	}
	cp := *c
	cp.Messages = append([]models.Message(nil), c.Messages...)
	return &cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.conversations[id]
	if ok {
		delete(m.conversations, id)
	}
	m.mu.Unlock()
	if !ok {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	m.requestSave()
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, id string, msg models.Message) error {
	m.mu.Lock()
	c, ok := m.conversations[id]
	if ok {
		c.Messages = append(c.Messages, msg)
	}
	m.mu.Unlock()
	if !ok {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	m.requestSave()
	return nil
}

func (m *MemoryStore) SetTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	c, ok := m.conversations[id]
	if ok {
		c.Title = title
	}
	m.mu.Unlock()
	if !ok {
		return &ErrNotFound{Entity: "conversation", Key: id}
	}
	m.requestSave()
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the save goroutine and flushes a final snapshot so no
// in-flight data is lost.
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		// Already closed
		return nil
	default:
		close(m.doneCh)
	}

	if m.snapshotPath != "" {
		m.saveSnapshot()
	}
	return nil
}

// ── Persistence ─────────────────────────────────────────────

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop debounces save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond)
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	data, err := json.MarshalIndent(snapshot{Conversations: m.conversations}, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Conversations != nil {
		m.conversations = snap.Conversations
	}

	log.Info().
		Int("conversations", len(m.conversations)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}
