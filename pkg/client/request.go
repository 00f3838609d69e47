package client

import (
	"context"
	"errors"
	"strings"

	"github.com/llmcouncil/councilgo/pkg/attachment"
	"github.com/llmcouncil/councilgo/pkg/models"
)

// ErrEmptyTurn rejects a turn with neither content nor attachments.
var ErrEmptyTurn = errors.New("turn needs content or at least one attachment")

// BuildTurn assembles the outbound turn payload: content as typed plus
// every attachment encoded in input order. A turn is valid when it carries
// non-whitespace content, at least one attachment, or both.
//
// Attachment encoding fans out concurrently and joins before the request
// exists. If any attachment fails to encode the build fails with an
// *attachment.EncodingError naming every offender; a turn is never sent
// with part of its context silently missing.
func BuildTurn(ctx context.Context, content string, atts []*attachment.Attachment) (*models.TurnRequest, error) {
	if strings.TrimSpace(content) == "" && len(atts) == 0 {
		return nil, ErrEmptyTurn
	}

	encoded, err := attachment.EncodeAll(ctx, atts)
	if err != nil {
		return nil, err
	}

	return &models.TurnRequest{Content: content, Attachments: encoded}, nil
}
