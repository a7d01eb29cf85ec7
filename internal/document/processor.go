// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package document implements the Document Processor: extract -> clean ->
// sentence-split -> chunk, the pipeline described in SPEC_FULL.md §4.4.
//
// Grounded directly on
// original_source/src-tauri/src/services/document_processor.rs:
// clean_text's per-line whitespace collapse, create_chunks/
// split_into_sentences' greedy sentence-accumulation with a token-estimate
// budget, create_overlap_content/calculate_overlap_start's word-based
// overlap carry, and estimate_token_count's chars/4 approximation. File
// extraction itself is delegated to internal/parser (the teacher's
// per-format parsers), generalized here to also accept the extended
// formats (html/xlsx/eml) alongside the spec's original set
// (txt/md/markdown/pdf/doc/docx/rtf).
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/models"
	"github.com/northbound/kbengine/internal/parser"
)

const (
	defaultMaxChunkTokens = 1000
	defaultOverlapTokens  = 100
	minChunkChars         = 40
)

var collapseWhitespace = regexp.MustCompile(`[ \t]+`)

// Processor extracts, cleans, and chunks document content.
type Processor struct {
	maxChunkTokens int
	overlapTokens  int
}

// New builds a Processor with the default chunk budget (1000 token cap,
// 100 token overlap), matching the teacher's DocumentProcessor::new.
func New() *Processor {
	return &Processor{maxChunkTokens: defaultMaxChunkTokens, overlapTokens: defaultOverlapTokens}
}

// WithChunkSettings overrides the chunk size and overlap, matching
// DocumentProcessor::with_chunk_settings.
func WithChunkSettings(maxChunkTokens, overlapTokens int) *Processor {
	return &Processor{maxChunkTokens: maxChunkTokens, overlapTokens: overlapTokens}
}

// ValidateFile enforces the existence/regular-file/size-bounds checks from
// models.MaxFileSize before any extraction is attempted.
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.Stage(apperrors.KindExtraction, "validating", "file does not exist", err)
	}
	if !info.Mode().IsRegular() {
		return apperrors.Stage(apperrors.KindExtraction, "validating", fmt.Sprintf("%s is not a regular file", path), nil)
	}
	if info.Size() == 0 {
		return apperrors.Stage(apperrors.KindExtraction, "validating", "file is empty", nil)
	}
	if info.Size() > models.MaxFileSize {
		return apperrors.Stage(apperrors.KindExtraction, "validating",
			fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), models.MaxFileSize), nil)
	}
	return nil
}

// IsSupported reports whether the file's extension has a parser.
func IsSupported(path string) bool {
	return parser.IsSupportedFile(path)
}

// Extract pulls raw text out of the file at path, delegating to the
// format-specific parser chosen by extension.
func (p *Processor) Extract(path string) (string, error) {
	text, err := parser.ParseFile(path)
	if err != nil {
		return "", apperrors.Stage(apperrors.KindExtraction, "extracting", filepath.Base(path), err)
	}
	return text, nil
}

// Clean collapses intra-line whitespace and drops blank lines while
// preserving line structure, exactly as clean_text does (important for
// markdown tables and similar line-structured content).
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := collapseWhitespace.ReplaceAllString(strings.TrimSpace(line), " ")
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}

// EstimateTokens approximates token count as ceil(chars/4).
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// chunkSpan is an interim chunk before a models.DocumentChunk gets an ID.
type chunkSpan struct {
	content string
	start   int
	end     int
}

// Chunk splits cleaned content into token-bounded, sentence-aware,
// overlapping spans. Mirrors create_chunks/split_into_sentences/
// create_overlap_content/calculate_overlap_start.
func (p *Processor) Chunk(content string) ([]chunkSpan, error) {
	sentences := splitIntoSentences(content)

	var spans []chunkSpan
	var currentChunk strings.Builder
	currentStart := 0
	currentOffset := 0

	flush := func(end int) {
		text := strings.TrimSpace(currentChunk.String())
		if text != "" {
			spans = append(spans, chunkSpan{content: text, start: currentStart, end: end})
		}
	}

	for _, sentence := range sentences {
		sentenceTokens := EstimateTokens(sentence)
		currentTokens := EstimateTokens(currentChunk.String())

		if currentTokens+sentenceTokens > p.maxChunkTokens && currentChunk.Len() > 0 {
			flush(currentOffset)

			overlap := overlapContent(currentChunk.String(), sentence, p.overlapTokens)
			currentStart = overlapStart(currentOffset, overlap)
			currentChunk.Reset()
			currentChunk.WriteString(overlap)
		} else {
			if currentChunk.Len() == 0 {
				currentStart = currentOffset
			}
			currentChunk.WriteString(sentence)
			currentChunk.WriteByte(' ')
		}

		currentOffset += len(sentence) + 1
	}

	flush(currentOffset)

	if len(spans) == 0 {
		return nil, apperrors.Chunking("no valid chunks could be created from document")
	}
	return spans, nil
}

// splitIntoSentences scans for ., !, ? boundaries with a minimum length,
// falling back to line-grouping when no sentence punctuation is found
// (e.g. tabular or list-only content).
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			trimmed := strings.TrimSpace(current.String())
			if len(trimmed) > 3 {
				sentences = append(sentences, trimmed)
				current.Reset()
			}
		}
	}
	if len(sentences) > 0 {
		if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
		return sentences
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	if len(lines) == 0 {
		return sentences
	}

	var group strings.Builder
	for _, line := range lines {
		if group.Len() == 0 {
			group.WriteString(line)
		} else {
			group.WriteByte('\n')
			group.WriteString(line)
		}
		if group.Len() >= minChunkChars {
			sentences = append(sentences, group.String())
			group.Reset()
		}
	}
	if group.Len() > 0 {
		if group.Len() < minChunkChars && len(sentences) > 0 {
			sentences[len(sentences)-1] = sentences[len(sentences)-1] + "\n" + group.String()
		} else {
			sentences = append(sentences, group.String())
		}
	}
	return sentences
}

// overlapContent carries the last overlapTokens words of the previous
// chunk forward into the next one.
func overlapContent(previousChunk, newSentence string, overlapTokens int) string {
	words := strings.Fields(previousChunk)
	if len(words) > overlapTokens {
		overlap := strings.Join(words[len(words)-overlapTokens:], " ")
		return overlap + " " + newSentence
	}
	return newSentence
}

func overlapStart(currentOffset int, overlapContent string) int {
	n := len(overlapContent)
	if currentOffset >= n {
		return currentOffset - n
	}
	return 0
}

// BuildChunks runs Extract -> Clean -> Chunk and returns models.DocumentChunk
// values with chunk_index assigned in order, ready for embedding.
func (p *Processor) BuildChunks(path, documentID string) ([]models.DocumentChunk, string, error) {
	if err := ValidateFile(path); err != nil {
		return nil, "", err
	}

	raw, err := p.Extract(path)
	if err != nil {
		return nil, "", err
	}

	cleaned := Clean(raw)
	if cleaned == "" {
		return nil, "", apperrors.Stage(apperrors.KindExtraction, "cleaning", "no content after cleaning", nil)
	}

	spans, err := p.Chunk(cleaned)
	if err != nil {
		return nil, "", err
	}

	chunks := make([]models.DocumentChunk, 0, len(spans))
	for i, span := range spans {
		tokens := EstimateTokens(span.content)
		if tokens < models.MinChunkTokens {
			tokens = models.MinChunkTokens
		}
		chunks = append(chunks, models.DocumentChunk{
			DocumentID: documentID,
			ChunkIndex: i,
			Content:    span.content,
			TokenCount: tokens,
			StartOffset: span.start,
			EndOffset:   span.end,
		})
	}
	return chunks, cleaned, nil
}
