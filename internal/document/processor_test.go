// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/models"
)

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.txt")
	if err := ValidateFile(missing); err == nil {
		t.Error("expected an error for a missing file")
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("writing empty file: %v", err)
	}
	if err := ValidateFile(empty); err == nil {
		t.Error("expected an error for an empty file")
	}

	ok := filepath.Join(dir, "ok.txt")
	if err := os.WriteFile(ok, []byte("some content"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if err := ValidateFile(ok); err != nil {
		t.Errorf("expected no error for a valid file, got %v", err)
	}

	oversized := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(oversized, make([]byte, models.MaxFileSize+1), 0o644); err != nil {
		t.Fatalf("writing oversized file: %v", err)
	}
	if err := ValidateFile(oversized); err == nil {
		t.Error("expected an error for a file over the size limit")
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("notes.md") {
		t.Error("expected .md to be supported")
	}
	if IsSupported("photo.png") {
		t.Error("expected .png to be unsupported")
	}
}

func TestClean(t *testing.T) {
	in := "line one   with   spaces  \n\n  \nline two\t\ttabbed\n"
	got := Clean(in)
	want := "line one with spaces\nline two tabbed"
	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Errorf("expected 0 tokens for empty text")
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("EstimateTokens(4 chars) = %d, want 1", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("EstimateTokens(5 chars) = %d, want 2", got)
	}
}

func TestChunkRespectsTokenBudget(t *testing.T) {
	p := WithChunkSettings(20, 5)
	sentence := "This is one sentence of moderate length. "
	content := strings.Repeat(sentence, 10)

	spans, err := p.Chunk(content)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}
	if len(spans) < 2 {
		t.Fatalf("expected multiple chunks from a long document, got %d", len(spans))
	}
	for _, s := range spans {
		if strings.TrimSpace(s.content) == "" {
			t.Error("expected no blank chunk spans")
		}
	}
}

func TestChunkEmptyContentErrors(t *testing.T) {
	p := New()
	_, err := p.Chunk("")
	if err == nil {
		t.Fatal("expected an error chunking empty content")
	}
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.KindChunking {
		t.Fatalf("expected a chunking error, got %v", err)
	}
}

func TestChunkFallsBackToLineGroupingWithoutSentencePunctuation(t *testing.T) {
	p := New()
	content := strings.Repeat("item in a bulleted list with no terminal punctuation\n", 5)

	spans, err := p.Chunk(content)
	if err != nil {
		t.Fatalf("Chunk returned error: %v", err)
	}
	if len(spans) == 0 {
		t.Fatal("expected at least one chunk from line-grouped content")
	}
}

func TestBuildChunksAssignsSequentialIndices(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	sentence := "This is a reasonably long sentence used for chunk testing. "
	content := strings.Repeat(sentence, 50)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	p := WithChunkSettings(50, 10)
	chunks, cleaned, err := p.BuildChunks(path, "doc-1")
	if err != nil {
		t.Fatalf("BuildChunks returned error: %v", err)
	}
	if cleaned == "" {
		t.Error("expected non-empty cleaned text")
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has ChunkIndex %d, want %d", i, c.ChunkIndex, i)
		}
		if c.DocumentID != "doc-1" {
			t.Errorf("chunk %d has DocumentID %q, want %q", i, c.DocumentID, "doc-1")
		}
	}
}
