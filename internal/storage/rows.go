// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Row-decoding helpers: the bridge returns untyped []interface{} rows
// (the wire protocol only carries JSON scalars), so each load path
// defensively converts and skips a row rather than failing the whole
// query on a single bad value, matching seekdb_adapter.rs's parsing
// style.
package storage

import (
	"encoding/json"
	"time"

	"github.com/northbound/kbengine/internal/models"
)

func parseProjectRow(row []interface{}) (models.Project, bool) {
	if len(row) < 7 {
		return models.Project{}, false
	}
	createdAt, ok1 := asTime(row[5])
	updatedAt, ok2 := asTime(row[6])
	if !ok1 || !ok2 {
		return models.Project{}, false
	}
	return models.Project{
		ID:            asString(row[0]),
		Name:          asString(row[1]),
		Description:   asString(row[2]),
		Status:        models.ProjectStatus(asString(row[3])),
		DocumentCount: asInt(row[4]),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, true
}

func parseConversationRow(row []interface{}) (models.Conversation, bool) {
	if len(row) < 6 {
		return models.Conversation{}, false
	}
	createdAt, ok1 := asTime(row[3])
	updatedAt, ok2 := asTime(row[4])
	if !ok1 || !ok2 {
		return models.Conversation{}, false
	}
	return models.Conversation{
		ID:           asString(row[0]),
		ProjectID:    asString(row[1]),
		Title:        asString(row[2]),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		MessageCount: asInt(row[5]),
	}, true
}

func parseMessageRow(row []interface{}) (models.Message, bool) {
	if len(row) < 6 {
		return models.Message{}, false
	}
	timestamp, ok := asTime(row[4])
	if !ok {
		return models.Message{}, false
	}
	role, ok := models.ParseRole(asString(row[2]))
	if !ok {
		return models.Message{}, false
	}

	m := models.Message{
		ID:             asString(row[0]),
		ConversationID: asString(row[1]),
		Role:           role,
		Content:        asString(row[3]),
		Timestamp:      timestamp,
	}
	if sourcesRaw := asString(row[5]); sourcesRaw != "" {
		var sources []models.Source
		if err := json.Unmarshal([]byte(sourcesRaw), &sources); err == nil {
			m.Sources = sources
		}
	}
	return m, true
}

func parseDocumentRow(row []interface{}) (models.Document, bool) {
	if len(row) < 12 {
		return models.Document{}, false
	}
	createdAt, ok := asTime(row[10])
	if !ok {
		return models.Document{}, false
	}
	d := models.Document{
		ID:               asString(row[0]),
		ProjectID:        asString(row[1]),
		Filename:         asString(row[2]),
		FilePath:         asString(row[3]),
		FileSize:         int64(asInt(row[4])),
		MimeType:         asString(row[5]),
		ContentHash:      asString(row[6]),
		ChunkCount:       asInt(row[7]),
		ProcessingStatus: models.DocumentProcessingStatus(asString(row[8])),
		ErrorMessage:     asString(row[9]),
		CreatedAt:        createdAt,
	}
	if processedAt, ok := asTime(row[11]); ok {
		d.ProcessedAt = &processedAt
	}
	return d, true
}

func firstOrNil(row []interface{}) interface{} {
	if len(row) == 0 {
		return nil
	}
	return row[0]
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asTime(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
