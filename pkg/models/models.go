// Package models defines the wire and domain types shared by the council
// client, the stub server, and the storage layer. JSON field names follow
// the council service API and must not change independently of it.
package models

import (
	"encoding/json"
	"time"
)

// ── Attachments ──────────────────────────────────────────────

// AttachmentKind classifies what a file attachment carries.
type AttachmentKind string

const (
	KindImage    AttachmentKind = "image"
	KindDocument AttachmentKind = "document"
)

// Attachment is the wire form of an encoded file attachment. Data holds the
// full contents as a data: URI (base64), so a record is self-contained and
// immutable once built.
type Attachment struct {
	Name     string         `json:"name"`
	Type     AttachmentKind `json:"type"`
	MimeType string         `json:"mimeType"`
	Size     int64          `json:"size"`
	Data     string         `json:"data"`
}

// ── Turn submission ──────────────────────────────────────────

// TurnRequest is the outbound body for both the plain and the streaming
// message endpoints. Attachments is always present, empty when none.
type TurnRequest struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
}

// TurnResponse is the plain (non-streaming) endpoint's reply: every stage
// of the finished exchange in one body.
type TurnResponse struct {
	Stage1   []Stage1Response `json:"stage1"`
	Stage2   []Stage2Ranking  `json:"stage2"`
	Stage3   *Stage3Response  `json:"stage3"`
	Metadata *RankingMetadata `json:"metadata,omitempty"`
}

// ── Council stages ───────────────────────────────────────────

// Stage1Response is one model's independent answer to the user's prompt.
type Stage1Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Stage2Ranking is one model's evaluation of the anonymized stage-1
// answers. Ranking is the model's free-text reasoning; ParsedRanking holds
// the extracted response labels in rank order.
type Stage2Ranking struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking,omitempty"`
}

// Stage3Response is the chairman model's synthesized final answer.
type Stage3Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// AggregateRanking is one model's standing across all stage-2 ballots.
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// RankingMetadata accompanies stage-2 data: the label→model mapping used to
// de-anonymize ballots, and the aggregate standings computed from them.
type RankingMetadata struct {
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
}

// ── Stream events ────────────────────────────────────────────

// EventType tags one frame of the streaming endpoint. The spellings are a
// contract with the service and round-trip unchanged.
type EventType string

const (
	EventStage1Start EventType = "stage1_start"
	EventStage1      EventType = "stage1"
	EventStage2Start EventType = "stage2_start"
	EventStage2      EventType = "stage2"
	EventStage3Start EventType = "stage3_start"
	EventStage3      EventType = "stage3"
	EventError       EventType = "error"
)

// Known reports whether the tag belongs to the recognized event set.
func (t EventType) Known() bool {
	switch t {
	case EventStage1Start, EventStage1, EventStage2Start, EventStage2,
		EventStage3Start, EventStage3, EventError:
		return true
	}
	return false
}

// StreamEvent is one decoded frame. Data and Metadata stay raw here; the
// turn state machine types them per tag. Error frames carry Message only.
type StreamEvent struct {
	Type     EventType       `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// ── Conversations ────────────────────────────────────────────

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation. User messages carry content and
// optional attachments; assistant messages carry the three stage results.
type Message struct {
	Role        Role             `json:"role"`
	Content     string           `json:"content,omitempty"`
	Attachments []Attachment     `json:"attachments,omitempty"`
	Stage1      []Stage1Response `json:"stage1,omitempty"`
	Stage2      []Stage2Ranking  `json:"stage2,omitempty"`
	Stage3      *Stage3Response  `json:"stage3,omitempty"`
}

// Conversation is the full record with every message.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is the list-view projection: metadata only, no
// message bodies.
type ConversationSummary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateConversationRequest opens a new conversation for a user.
type CreateConversationRequest struct {
	UserID string `json:"user_id"`
}

// DefaultTitle is the title a conversation carries until its first
// exchange produces a better one.
const DefaultTitle = "New Conversation"

// NewUserMessage builds the stored form of a user turn.
func NewUserMessage(content string, attachments []Attachment) Message {
	return Message{Role: RoleUser, Content: content, Attachments: attachments}
}

// NewAssistantMessage builds the stored form of a completed council turn.
func NewAssistantMessage(stage1 []Stage1Response, stage2 []Stage2Ranking, stage3 *Stage3Response) Message {
	return Message{Role: RoleAssistant, Stage1: stage1, Stage2: stage2, Stage3: stage3}
}
