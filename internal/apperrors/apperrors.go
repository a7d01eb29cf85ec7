// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package apperrors implements the engine's error taxonomy: every failure
// surfaced across package boundaries is one of these kinds, so callers can
// branch on Kind without parsing message strings.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy of error categories the engine distinguishes.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindNotFound   Kind = "NotFound"
	KindStorage    Kind = "StorageError"
	KindEmbedding  Kind = "EmbeddingError"
	KindLLM        Kind = "LLMError"
	KindExtraction Kind = "ExtractionError"
	KindChunking   Kind = "ChunkingError"
	KindRuntime    Kind = "RuntimeError"
)

// Error is a taxonomy-tagged error, optionally stage-tagged for ingestion
// failures (validation / reading / extraction / chunking / indexing).
type Error struct {
	Kind  Kind
	Stage string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Stage, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Stage, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, apperrors.Validation("")) style checks against a kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Stage(kind Kind, stage, msg string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Msg: msg, Err: err}
}

func Validation(msg string) *Error { return New(KindValidation, msg) }
func NotFound(msg string) *Error   { return New(KindNotFound, msg) }
func Storage(msg string, err error) *Error  { return Wrap(KindStorage, msg, err) }
func Embedding(msg string, err error) *Error { return Wrap(KindEmbedding, msg, err) }
func LLM(msg string, err error) *Error       { return Wrap(KindLLM, msg, err) }
func Extraction(stage, msg string, err error) *Error { return Stage(KindExtraction, stage, msg, err) }
func Chunking(msg string) *Error   { return New(KindChunking, msg) }
func Runtime(msg string, err error) *Error { return Wrap(KindRuntime, msg, err) }

// KindOf extracts the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
