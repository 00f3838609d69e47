package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/llmcouncil/councilgo/pkg/models"
	"github.com/llmcouncil/councilgo/pkg/sse"
	"github.com/llmcouncil/councilgo/pkg/turn"
)

// readBufferSize is the chunk size for draining the stream body.
const readBufferSize = 32 * 1024

// TransportError is a network-level streaming failure: a non-success
// status when opening the exchange, or the connection dropping mid-stream.
type TransportError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("council stream: %v", e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("council stream: unexpected status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("council stream: unexpected status %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StreamMessage submits a turn over the streaming endpoint and returns an
// ordered, finite sequence of turn state snapshots: one after every event
// that mutates the state, beginning with the in-progress state at
// submission. The channel is unbuffered, so a slow consumer applies
// backpressure all the way down to the transport, and closes when the turn
// reaches a terminal state or the transport ends.
//
// The stream is processed strictly sequentially and is not restartable; a
// dropped transport yields a failed terminal snapshot and a fresh turn
// must be submitted. Cancelling ctx releases the transport and stops
// delivery without forcing the state to failed.
//
// A non-success status or connection failure on open is reported as a
// *TransportError before any snapshot flows.
func (c *Client) StreamMessage(ctx context.Context, conversationID string, req *models.TurnRequest) (<-chan turn.State, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conversationURL(conversationID)+"/message/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "text/event-stream")
	hreq.Header.Set("Cache-Control", "no-cache")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(hreq.Header))

	resp, err := c.httpc.Do(hreq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		resp.Body.Close()
		return nil, &TransportError{Status: resp.StatusCode, Message: msg}
	}

	log.Debug().Str("conversation", conversationID).Msg("Council stream opened")

	ch := make(chan turn.State)
	go pump(ctx, resp.Body, ch)
	return ch, nil
}

// pump drains the response body, folds decoded events into the turn state,
// and publishes each mutated snapshot. It owns the body and always closes
// it on the way out.
func pump(ctx context.Context, body io.ReadCloser, ch chan<- turn.State) {
	defer close(ch)
	defer body.Close()

	st, _ := turn.New().Begin()
	if !send(ctx, ch, st) {
		return
	}

	dec := sse.NewDecoder()
	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				next, changed := st.Apply(ev)
				if !changed {
					continue
				}
				st = next
				if !send(ctx, ch, st) {
					return
				}
				if st.Terminal() {
					return
				}
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				if next, changed := st.Finish(); changed {
					send(ctx, ch, next)
				}
			case ctx.Err() != nil:
				// Cancelled by the caller: stop delivering, leave the
				// state wherever it last was.
			default:
				if next, changed := st.Fail(&TransportError{Err: err}); changed {
					send(ctx, ch, next)
				}
			}
			return
		}
	}
}

func send(ctx context.Context, ch chan<- turn.State, st turn.State) bool {
	select {
	case ch <- st:
		return true
	case <-ctx.Done():
		return false
	}
}
