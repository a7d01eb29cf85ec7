// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/northbound/kbengine/internal/bridgeproto"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id VARCHAR(36) PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL,
	document_count INTEGER DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id VARCHAR(36) PRIMARY KEY,
	project_id VARCHAR(36) NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	message_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
	id VARCHAR(36) PRIMARY KEY,
	conversation_id VARCHAR(36) NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	sources TEXT
);

CREATE TABLE IF NOT EXISTS documents (
	id VARCHAR(36) PRIMARY KEY,
	project_id VARCHAR(36) NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	mime_type TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	chunk_count INTEGER DEFAULT 0,
	processing_status TEXT NOT NULL,
	error_message TEXT,
	created_at DATETIME NOT NULL,
	processed_at DATETIME
);

CREATE TABLE IF NOT EXISTS vector_documents (
	id VARCHAR(36) PRIMARY KEY,
	project_id VARCHAR(36) NOT NULL,
	document_id VARCHAR(36) NOT NULL,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB NOT NULL,
	metadata TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(document_id, chunk_index)
);

CREATE VIRTUAL TABLE IF NOT EXISTS vector_documents_fts USING fts5(
	content, content='vector_documents', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS vector_documents_ai AFTER INSERT ON vector_documents BEGIN
	INSERT INTO vector_documents_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS vector_documents_ad AFTER DELETE ON vector_documents BEGIN
	INSERT INTO vector_documents_fts(vector_documents_fts, rowid, content) VALUES('delete', old.rowid, old.content);
END;

CREATE TRIGGER IF NOT EXISTS vector_documents_au AFTER UPDATE ON vector_documents BEGIN
	INSERT INTO vector_documents_fts(vector_documents_fts, rowid, content) VALUES('delete', old.rowid, old.content);
	INSERT INTO vector_documents_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE INDEX IF NOT EXISTS idx_document_project_id ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_project_id ON vector_documents(project_id);
CREATE INDEX IF NOT EXISTS idx_document_id ON vector_documents(document_id);
CREATE INDEX IF NOT EXISTS idx_conversation_project_id ON conversations(project_id);
CREATE INDEX IF NOT EXISTS idx_message_conversation_id ON messages(conversation_id);
`

func (s *server) handleInit(p bridgeproto.InitParams) error {
	if s.db != nil {
		_ = s.db.Close()
	}

	if p.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	dsn := p.DBPath
	if p.DBName != "" {
		dsn = filepath.Join(p.DBPath, p.DBName)
	}

	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // serialize access; the parent already mutexes requests

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("applying schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *server) handleExecute(p bridgeproto.ExecuteParams) (json.RawMessage, error) {
	if s.db == nil {
		return nil, fmt.Errorf("not initialized")
	}
	result, err := s.db.Exec(p.SQL, p.Values...)
	if err != nil {
		return nil, err
	}
	affected, _ := result.RowsAffected()
	return json.Marshal(bridgeproto.ExecuteData{RowsAffected: affected})
}

func (s *server) handleQuery(p bridgeproto.QueryParams) (json.RawMessage, error) {
	if s.db == nil {
		return nil, fmt.Errorf("not initialized")
	}
	rows, err := s.db.Query(p.SQL, p.Values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	return json.Marshal(bridgeproto.QueryData{Rows: all})
}

func (s *server) handleQueryOne(p bridgeproto.QueryParams) (json.RawMessage, error) {
	if s.db == nil {
		return nil, fmt.Errorf("not initialized")
	}
	rows, err := s.db.Query(p.SQL, p.Values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return json.Marshal(bridgeproto.QueryOneData{})
	}
	return json.Marshal(bridgeproto.QueryOneData{Row: all[0]})
}

func scanRows(rows *sql.Rows) ([][]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result [][]interface{}
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make([]interface{}, len(cols))
		for i, v := range raw {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
