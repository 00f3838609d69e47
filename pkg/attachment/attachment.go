// Package attachment turns user-selected files into the council wire form:
// contents read once, base64-encoded, and wrapped in a data: URI together
// with the file's name, kind, MIME type, and size.
//
// Validation happens at construction so nothing downstream ever holds an
// oversized or unsupported attachment. Encoding happens exactly once, at
// submission time.
package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/llmcouncil/councilgo/pkg/models"
)

// MaxSize is the largest file the service accepts, in bytes.
const MaxSize = 10 << 20 // 10 MiB

// maxConcurrentReads bounds the encode fan-out so a turn with many large
// attachments does not hold every file open at once.
const maxConcurrentReads = 4

var (
	// ErrTooLarge marks files above MaxSize.
	ErrTooLarge = errors.New("attachment exceeds size limit")
	// ErrUnsupportedType marks files whose MIME type is outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported attachment type")
)

// mimeByExt maps recognized file extensions to their MIME type. Anything
// absent here is rejected at construction.
var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
}

// kindByMIME classifies each allowed MIME type as image or document.
var kindByMIME = map[string]models.AttachmentKind{
	"image/png":       models.KindImage,
	"image/jpeg":      models.KindImage,
	"image/gif":       models.KindImage,
	"image/webp":      models.KindImage,
	"application/pdf": models.KindDocument,
	"text/plain":      models.KindDocument,
	"text/markdown":   models.KindDocument,
	"text/csv":        models.KindDocument,
}

// Attachment is a validated, not-yet-encoded file selection.
type Attachment struct {
	Name     string
	Size     int64
	MimeType string
	Kind     models.AttachmentKind

	path string
}

// New validates the file at path and returns an Attachment ready for
// encoding. The display name defaults to the file's base name.
func New(path string) (*Attachment, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &ReadError{Name: filepath.Base(path), Err: err}
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s: is a directory: %w", path, ErrUnsupportedType)
	}

	ext := strings.ToLower(filepath.Ext(path))
	mime, ok := mimeByExt[ext]
	if !ok {
		return nil, fmt.Errorf("%s: extension %q: %w", path, ext, ErrUnsupportedType)
	}
	if fi.Size() > MaxSize {
		return nil, fmt.Errorf("%s: %d bytes over the %d byte limit: %w", path, fi.Size(), MaxSize, ErrTooLarge)
	}

	return &Attachment{
		Name:     filepath.Base(path),
		Size:     fi.Size(),
		MimeType: mime,
		Kind:     kindByMIME[mime],
		path:     path,
	}, nil
}

// Encode reads the file's full contents and produces the wire record. The
// returned record is self-contained; the file on disk is no longer needed.
func (a *Attachment) Encode() (models.Attachment, error) {
	raw, err := os.ReadFile(a.path)
	if err != nil {
		return models.Attachment{}, &ReadError{Name: a.Name, Err: err}
	}

	return models.Attachment{
		Name:     a.Name,
		Type:     a.Kind,
		MimeType: a.MimeType,
		Size:     int64(len(raw)),
		Data:     fmt.Sprintf("data:%s;base64,%s", a.MimeType, base64.StdEncoding.EncodeToString(raw)),
	}, nil
}

// EncodeAll encodes every attachment concurrently and joins the results in
// input order. One attachment's failure does not disturb the others; if any
// fail, the whole call fails with an *EncodingError naming every offender,
// so no partial set is ever handed to a request.
func EncodeAll(ctx context.Context, atts []*Attachment) ([]models.Attachment, error) {
	if len(atts) == 0 {
		return []models.Attachment{}, nil
	}

	encoded := make([]models.Attachment, len(atts))
	errs := make([]error, len(atts))

	var g errgroup.Group
	g.SetLimit(maxConcurrentReads)
	for i, a := range atts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			enc, err := a.Encode()
			if err != nil {
				errs[i] = err
				return nil
			}
			encoded[i] = enc
			return nil
		})
	}
	g.Wait()

	var failed []EncodeFailure
	for i, err := range errs {
		if err != nil {
			failed = append(failed, EncodeFailure{Name: atts[i].Name, Err: err})
		}
	}
	if len(failed) > 0 {
		return nil, &EncodingError{Failures: failed}
	}
	return encoded, nil
}

// ── Errors ───────────────────────────────────────────────────

// ReadError reports a file whose bytes could not be read, a local fault
// such as the file disappearing between selection and send.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read attachment %q: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// EncodeFailure pairs a failed attachment's name with its cause.
type EncodeFailure struct {
	Name string
	Err  error
}

// EncodingError reports every attachment that failed to encode during one
// build, in input order.
type EncodingError struct {
	Failures []EncodeFailure
}

func (e *EncodingError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Name
	}
	return fmt.Sprintf("failed to encode %d attachment(s): %s", len(e.Failures), strings.Join(names, ", "))
}
