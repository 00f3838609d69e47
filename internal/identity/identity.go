// Package identity supplies the stable per-user identifier the council
// service scopes conversations by. Consumers treat it as an opaque string.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Provider yields the current user's identifier.
type Provider interface {
	UserID() (string, error)
}

// FileProvider persists one generated identifier under the data dir and
// returns the same value on every subsequent call, so a user keeps their
// conversations across CLI invocations.
type FileProvider struct {
	path string
}

// NewFileProvider stores the identifier as a plain file in dataDir.
func NewFileProvider(dataDir string) *FileProvider {
	return &FileProvider{path: filepath.Join(dataDir, "user_id")}
}

func (p *FileProvider) UserID() (string, error) {
	data, err := os.ReadFile(p.path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read user id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(id+"\n"), 0644); err != nil {
		return "", fmt.Errorf("persist user id: %w", err)
	}
	return id, nil
}

// Static is a fixed identifier, for tests and scripting.
type Static string

func (s Static) UserID() (string, error) { return string(s), nil }
