// Package client is the Go client for the council service. It covers the
// conversation CRUD surface, the plain message endpoint, and the streaming
// endpoint, which it exposes as an ordered sequence of turn state
// snapshots.
//
// Conversation and user identifiers are opaque strings throughout; the
// client never inspects their format.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/llmcouncil/councilgo/pkg/models"
)

// defaultTimeout bounds the fast CRUD calls. Message submission is exempt:
// a council run can legitimately take minutes.
const defaultTimeout = 30 * time.Second

// Client talks to one council server.
type Client struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the transport, e.g. for tests or proxies.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTimeout overrides the CRUD call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListConversations returns the metadata of a user's conversations, newest
// first. An empty userID lists all.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	u := c.baseURL + "/api/conversations"
	if userID != "" {
		u += "?user_id=" + url.QueryEscape(userID)
	}

	ctx, cancel := c.crudContext(ctx)
	defer cancel()

	var out []models.ConversationSummary
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.ConversationSummary{}
	}
	return out, nil
}

// CreateConversation opens a new conversation for the user.
func (c *Client) CreateConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	ctx, cancel := c.crudContext(ctx)
	defer cancel()

	var out models.Conversation
	body := models.CreateConversationRequest{UserID: userID}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/conversations", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches one conversation with all its messages.
func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	ctx, cancel := c.crudContext(ctx)
	defer cancel()

	var out models.Conversation
	if err := c.do(ctx, http.MethodGet, c.conversationURL(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation permanently.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	ctx, cancel := c.crudContext(ctx)
	defer cancel()

	return c.do(ctx, http.MethodDelete, c.conversationURL(id), nil, nil)
}

// SendMessage submits a turn over the plain endpoint and blocks until the
// full three-stage response is ready. No timeout is applied beyond the
// caller's context; council runs are slow.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req *models.TurnRequest) (*models.TurnResponse, error) {
	var out models.TurnResponse
	if err := c.do(ctx, http.MethodPost, c.conversationURL(conversationID)+"/message", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) conversationURL(id string) string {
	return c.baseURL + "/api/conversations/" + url.PathEscape(id)
}

func (c *Client) crudContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do performs one JSON request/response exchange, propagating any active
// trace context on the outbound headers.
func (c *Client) do(ctx context.Context, method, u string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// ── Errors ───────────────────────────────────────────────────

// APIError is a non-2xx reply from the server on the CRUD surface.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// NotFound reports whether the server said the resource does not exist.
func (e *APIError) NotFound() bool { return e.Status == http.StatusNotFound }

func newAPIError(resp *http.Response) *APIError {
	return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
}

// readErrorMessage extracts the server's {"error": ...} message, falling
// back to the raw body, capped so a broken server cannot flood memory.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
