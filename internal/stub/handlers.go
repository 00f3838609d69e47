// Package stub implements a self-contained council server that speaks the
// same HTTP and SSE surface as the hosted service but answers from a
// deterministic script. It backs local development, demos, and the client
// test suite.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/llmcouncil/councilgo/internal/store"
	"github.com/llmcouncil/councilgo/pkg/models"
)

// Handlers holds the stub server's handler dependencies.
type Handlers struct {
	Store  store.ConversationStore
	Script *Script
}

// New creates a Handlers instance around the given store and script.
func New(s store.ConversationStore, script *Script) *Handlers {
	if script == nil {
		script = DefaultScript()
	}
	return &Handlers{Store: s, Script: script}
}

// ── Conversation CRUD ────────────────────────────────────────

// ListConversations returns metadata for a user's conversations, newest
// first.
// GET /api/conversations?user_id=...
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	summaries, err := h.Store.List(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	respondJSON(w, http.StatusOK, summaries)
}

// CreateConversation opens a new empty conversation.
// POST /api/conversations
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	conv := models.Conversation{
		ID:     uuid.NewString(),
		UserID: req.UserID,
	}
	if err := h.Store.Create(r.Context(), &conv); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("conversation", conv.ID).Str("user", conv.UserID).Msg("conversation created")
	respondJSON(w, http.StatusOK, conv)
}

// GetConversation returns one conversation with all its messages.
// GET /api/conversations/{conversationID}
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	conv, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if _, ok := err.(*store.ErrNotFound); ok {
			respondError(w, http.StatusNotFound, "Conversation not found")
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

// DeleteConversation removes a conversation permanently.
// DELETE /api/conversations/{conversationID}
func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	if err := h.Store.Delete(r.Context(), id); err != nil {
		if _, ok := err.(*store.ErrNotFound); ok {
			respondError(w, http.StatusNotFound, "Conversation not found")
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted"})
}

// ── Council turns ────────────────────────────────────────────

// SendMessage runs a full scripted council turn and returns every stage in
// one body.
// POST /api/conversations/{conversationID}/message
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if _, ok := err.(*store.ErrNotFound); ok {
			respondError(w, http.StatusNotFound, "Conversation not found")
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	isFirst := len(conv.Messages) == 0

	if err := h.Store.AppendMessage(r.Context(), id, models.NewUserMessage(req.Content, req.Attachments)); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stage1 := h.Script.Stage1(req.Content)
	stage2, meta := h.Script.Stage2(req.Content, stage1)
	stage3 := h.Script.Stage3(req.Content, stage1)

	if isFirst {
		h.setTitle(r.Context(), id, &req)
	}
	if err := h.Store.AppendMessage(r.Context(), id, models.NewAssistantMessage(stage1, stage2, &stage3)); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.TurnResponse{
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   &stage3,
		Metadata: &meta,
	})
}

// StreamMessage runs a scripted council turn and streams each stage as a
// Server-Sent Event. The stage3 event is always the last frame of a
// successful run.
// POST /api/conversations/{conversationID}/message/stream
func (h *Handlers) StreamMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if _, ok := err.(*store.ErrNotFound); ok {
			respondError(w, http.StatusNotFound, "Conversation not found")
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	isFirst := len(conv.Messages) == 0

	if err := h.Store.AppendMessage(r.Context(), id, models.NewUserMessage(req.Content, req.Attachments)); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	emit := func(ev models.StreamEvent) bool {
		data, _ := json.Marshal(ev)
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !h.pause(ctx) || !emit(models.StreamEvent{Type: models.EventStage1Start}) {
		return
	}
	stage1 := h.Script.Stage1(req.Content)
	if !emit(event(models.EventStage1, stage1)) {
		return
	}

	if !h.pause(ctx) || !emit(models.StreamEvent{Type: models.EventStage2Start}) {
		return
	}
	stage2, meta := h.Script.Stage2(req.Content, stage1)
	ev := event(models.EventStage2, stage2)
	ev.Metadata, _ = json.Marshal(meta)
	if !emit(ev) {
		return
	}

	if !h.pause(ctx) || !emit(models.StreamEvent{Type: models.EventStage3Start}) {
		return
	}
	stage3 := h.Script.Stage3(req.Content, stage1)

	if isFirst {
		h.setTitle(ctx, id, &req)
	}
	if err := h.Store.AppendMessage(ctx, id, models.NewAssistantMessage(stage1, stage2, &stage3)); err != nil {
		emit(models.StreamEvent{Type: models.EventError, Message: err.Error()})
		return
	}

	emit(event(models.EventStage3, stage3))
}

// setTitle derives and stores the conversation title from the first turn.
// Failures are logged, not fatal; the turn itself already succeeded.
func (h *Handlers) setTitle(ctx context.Context, id string, req *models.TurnRequest) {
	content := req.Content
	if content == "" && len(req.Attachments) > 0 {
		content = "Analysis of " + req.Attachments[0].Name
	}
	if err := h.Store.SetTitle(ctx, id, h.Script.Title(content)); err != nil {
		log.Warn().Err(err).Str("conversation", id).Msg("failed to set conversation title")
	}
}

// pause waits the scripted inter-stage delay, bailing out early when the
// client has gone away.
func (h *Handlers) pause(ctx context.Context) bool {
	if h.Script.Delay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(h.Script.Delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func event(t models.EventType, payload interface{}) models.StreamEvent {
	data, _ := json.Marshal(payload)
	return models.StreamEvent{Type: t, Data: data}
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
