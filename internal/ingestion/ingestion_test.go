// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	content := []byte("hello ingestion pipeline")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	got, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile returned error: %v", err)
	}

	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])
	if got != want {
		t.Fatalf("expected hash %q, got %q", want, got)
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := hashFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestMimeType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"report.pdf", "application/pdf"},
		{"notes.md", "text/markdown"},
		{"essay.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"unknown.xyz", "text/plain"},
	}

	for _, tt := range tests {
		if got := mimeType(tt.path); got != tt.want {
			t.Errorf("mimeType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
