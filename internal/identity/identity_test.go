package identity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/llmcouncil/councilgo/internal/identity"
)

func TestFileProviderStable(t *testing.T) {
	dir := t.TempDir()
	p := identity.NewFileProvider(dir)

	first, err := p.UserID()
	if err != nil {
		t.Fatalf("UserID() error = %v", err)
	}
	if first == "" {
		t.Fatal("UserID() returned empty id")
	}

	second, err := p.UserID()
	if err != nil {
		t.Fatalf("UserID() second call error = %v", err)
	}
	if second != first {
		t.Errorf("UserID() = %q on second call, want %q", second, first)
	}

	// A fresh provider over the same dir must see the persisted id.
	third, err := identity.NewFileProvider(dir).UserID()
	if err != nil {
		t.Fatalf("UserID() from fresh provider error = %v", err)
	}
	if third != first {
		t.Errorf("fresh provider UserID() = %q, want %q", third, first)
	}
}

func TestFileProviderCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deeper")

	id, err := identity.NewFileProvider(dir).UserID()
	if err != nil {
		t.Fatalf("UserID() error = %v", err)
	}
	if id == "" {
		t.Fatal("UserID() returned empty id")
	}
	if _, err := os.Stat(filepath.Join(dir, "user_id")); err != nil {
		t.Errorf("user_id file not written: %v", err)
	}
}

func TestFileProviderIgnoresBlankFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "user_id"), []byte("  \n"), 0644); err != nil {
		t.Fatalf("seed blank file: %v", err)
	}

	id, err := identity.NewFileProvider(dir).UserID()
	if err != nil {
		t.Fatalf("UserID() error = %v", err)
	}
	if id == "" {
		t.Error("UserID() should regenerate over a blank file")
	}
}

func TestStatic(t *testing.T) {
	id, err := identity.Static("fixed-user").UserID()
	if err != nil {
		t.Fatalf("UserID() error = %v", err)
	}
	if id != "fixed-user" {
		t.Errorf("UserID() = %q, want %q", id, "fixed-user")
	}
}
