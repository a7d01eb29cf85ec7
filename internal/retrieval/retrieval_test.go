// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package retrieval

import (
	"testing"

	"github.com/northbound/kbengine/internal/storage"
)

func TestToChunks(t *testing.T) {
	hits := []storage.Hit{
		{
			DocumentID: "doc-1",
			Content:    "first chunk",
			Score:      0.92,
			Metadata:   map[string]string{"filename": "report.pdf"},
		},
		{
			DocumentID: "doc-2",
			Content:    "second chunk",
			Score:      0.41,
			Metadata:   map[string]string{},
		},
	}

	got := toChunks(hits)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].DocumentID != "doc-1" || got[0].Filename != "report.pdf" || got[0].RelevanceScore != 0.92 {
		t.Errorf("unexpected first chunk: %+v", got[0])
	}
	if got[1].Filename != "" {
		t.Errorf("expected empty filename when metadata is missing it, got %q", got[1].Filename)
	}
}

func TestToChunksEmpty(t *testing.T) {
	got := toChunks(nil)
	if len(got) != 0 {
		t.Fatalf("expected an empty slice, got %d entries", len(got))
	}
}
