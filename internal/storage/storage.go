// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package storage implements the Storage Adapter: a typed DAO over the DB
// Bridge, responsible for schema bootstrap (delegated to the bridge's
// init command), CRUD on projects/conversations/messages, and the
// hybrid/similarity search entry points.
//
// Grounded directly on
// original_source/src-tauri/src/services/seekdb_adapter.rs: the upsert
// discipline (ON CONFLICT(id) DO UPDATE, matching its ON DUPLICATE KEY
// UPDATE), in-memory sort-after-load for listings, defensive per-row
// parsing that skips malformed rows instead of failing a whole query.
// Similarity scores are the bridge's cosine similarity; no
// 1/(1+distance) conversion of an L2 distance is applied.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/northbound/kbengine/internal/apperrors"
	"github.com/northbound/kbengine/internal/bridge"
	"github.com/northbound/kbengine/internal/bridgeproto"
	"github.com/northbound/kbengine/internal/models"
)

// Adapter is the Storage Adapter: every call to the DB Bridge goes through
// here, so no other package ever touches bridge.Client directly.
type Adapter struct {
	client *bridge.Client
}

func New(client *bridge.Client) *Adapter {
	return &Adapter{client: client}
}

// Init establishes the backing database file; the bridge applies its own
// schema on receiving this command.
func (a *Adapter) Init(ctx context.Context, dbPath, dbName string) error {
	if err := a.client.Init(ctx, dbPath, dbName); err != nil {
		return apperrors.Storage("initializing database", err)
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.client.Ping(ctx); err != nil {
		return apperrors.Storage("bridge health check failed", err)
	}
	return nil
}

// --- Projects ---------------------------------------------------------

func (a *Adapter) SaveProject(ctx context.Context, p models.Project) error {
	_, err := a.client.Execute(ctx, `
		INSERT INTO projects (id, name, description, status, document_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			document_count = excluded.document_count,
			updated_at = excluded.updated_at`,
		[]interface{}{p.ID, p.Name, p.Description, string(p.Status), p.DocumentCount, p.CreatedAt, p.UpdatedAt})
	if err != nil {
		return apperrors.Storage("saving project", err)
	}
	return nil
}

func (a *Adapter) LoadAllProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := a.client.Query(ctx, `SELECT id, name, description, status, document_count, created_at, updated_at FROM projects`, nil)
	if err != nil {
		return nil, apperrors.Storage("loading projects", err)
	}

	var projects []models.Project
	for _, row := range rows {
		p, ok := parseProjectRow(row)
		if !ok {
			continue // defensive: skip malformed rows rather than fail the whole listing
		}
		projects = append(projects, p)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })
	return projects, nil
}

func (a *Adapter) DeleteProjectByID(ctx context.Context, id string) (int64, error) {
	n, err := a.client.Execute(ctx, `DELETE FROM projects WHERE id = ?`, []interface{}{id})
	if err != nil {
		return 0, apperrors.Storage("deleting project", err)
	}
	return n, nil
}

// CountProjectDocuments recomputes the authoritative document count from
// the chunk store, since Project.DocumentCount is only a cache.
func (a *Adapter) CountProjectDocuments(ctx context.Context, projectID string) (int, error) {
	row, err := a.client.QueryOne(ctx, `SELECT COUNT(DISTINCT document_id) FROM vector_documents WHERE project_id = ?`, []interface{}{projectID})
	if err != nil {
		return 0, apperrors.Storage("counting project documents", err)
	}
	return asInt(firstOrNil(row)), nil
}

// --- Conversations ------------------------------------------------------

func (a *Adapter) SaveConversation(ctx context.Context, c models.Conversation) error {
	_, err := a.client.Execute(ctx, `
		INSERT INTO conversations (id, project_id, title, created_at, updated_at, message_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count`,
		[]interface{}{c.ID, c.ProjectID, c.Title, c.CreatedAt, c.UpdatedAt, c.MessageCount})
	if err != nil {
		return apperrors.Storage("saving conversation", err)
	}
	return nil
}

func (a *Adapter) LoadConversationsByProject(ctx context.Context, projectID string) ([]models.Conversation, error) {
	rows, err := a.client.Query(ctx,
		`SELECT id, project_id, title, created_at, updated_at, message_count FROM conversations WHERE project_id = ?`,
		[]interface{}{projectID})
	if err != nil {
		return nil, apperrors.Storage("loading conversations", err)
	}
	return parseConversationRows(rows), nil
}

func (a *Adapter) LoadAllConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := a.client.Query(ctx, `SELECT id, project_id, title, created_at, updated_at, message_count FROM conversations`, nil)
	if err != nil {
		return nil, apperrors.Storage("loading conversations", err)
	}
	return parseConversationRows(rows), nil
}

func (a *Adapter) DeleteConversationByID(ctx context.Context, id string) (int64, error) {
	n, err := a.client.Execute(ctx, `DELETE FROM conversations WHERE id = ?`, []interface{}{id})
	if err != nil {
		return 0, apperrors.Storage("deleting conversation", err)
	}
	return n, nil
}

func parseConversationRows(rows [][]interface{}) []models.Conversation {
	var out []models.Conversation
	for _, row := range rows {
		c, ok := parseConversationRow(row)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// --- Messages -----------------------------------------------------------

func (a *Adapter) SaveMessage(ctx context.Context, m models.Message) error {
	var sourcesJSON interface{}
	if len(m.Sources) > 0 {
		data, err := json.Marshal(m.Sources)
		if err != nil {
			return apperrors.Storage("encoding message sources", err)
		}
		sourcesJSON = string(data)
	}

	_, err := a.client.Execute(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at, sources)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			sources = excluded.sources`,
		[]interface{}{m.ID, m.ConversationID, string(m.Role), m.Content, m.Timestamp, sourcesJSON})
	if err != nil {
		return apperrors.Storage("saving message", err)
	}
	return nil
}

// LoadMessagesByConversation returns every message including System
// messages, so prompt assembly sees the full history (spec.md §9 Open
// Question b — only the message_count field excludes System).
func (a *Adapter) LoadMessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := a.client.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at, sources FROM messages WHERE conversation_id = ?`,
		[]interface{}{conversationID})
	if err != nil {
		return nil, apperrors.Storage("loading messages", err)
	}

	var out []models.Message
	for _, row := range rows {
		m, ok := parseMessageRow(row)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (a *Adapter) DeleteMessageByID(ctx context.Context, id string) (int64, error) {
	n, err := a.client.Execute(ctx, `DELETE FROM messages WHERE id = ?`, []interface{}{id})
	if err != nil {
		return 0, apperrors.Storage("deleting message", err)
	}
	return n, nil
}

func (a *Adapter) DeleteMessagesByConversation(ctx context.Context, conversationID string) (int64, error) {
	n, err := a.client.Execute(ctx, `DELETE FROM messages WHERE conversation_id = ?`, []interface{}{conversationID})
	if err != nil {
		return 0, apperrors.Storage("deleting messages", err)
	}
	return n, nil
}

// CountNonSystemMessages implements the message_count denormalisation
// rule: count everything except Role=System.
func (a *Adapter) CountNonSystemMessages(ctx context.Context, conversationID string) (int, error) {
	row, err := a.client.QueryOne(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND role != ?`,
		[]interface{}{conversationID, string(models.RoleSystem)})
	if err != nil {
		return 0, apperrors.Storage("counting messages", err)
	}
	return asInt(firstOrNil(row)), nil
}

// --- Documents ------------------------------------------------------------

func (a *Adapter) SaveDocument(ctx context.Context, d models.Document) error {
	var processedAt interface{}
	if d.ProcessedAt != nil {
		processedAt = *d.ProcessedAt
	}
	_, err := a.client.Execute(ctx, `
		INSERT INTO documents (id, project_id, filename, file_path, file_size, mime_type, content_hash, chunk_count, processing_status, error_message, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chunk_count = excluded.chunk_count,
			processing_status = excluded.processing_status,
			error_message = excluded.error_message,
			processed_at = excluded.processed_at`,
		[]interface{}{d.ID, d.ProjectID, d.Filename, d.FilePath, d.FileSize, d.MimeType, d.ContentHash, d.ChunkCount, string(d.ProcessingStatus), d.ErrorMessage, d.CreatedAt, processedAt})
	if err != nil {
		return apperrors.Storage("saving document", err)
	}
	return nil
}

func (a *Adapter) LoadDocumentsByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	rows, err := a.client.Query(ctx,
		`SELECT id, project_id, filename, file_path, file_size, mime_type, content_hash, chunk_count, processing_status, error_message, created_at, processed_at FROM documents WHERE project_id = ?`,
		[]interface{}{projectID})
	if err != nil {
		return nil, apperrors.Storage("loading documents", err)
	}

	var out []models.Document
	for _, row := range rows {
		d, ok := parseDocumentRow(row)
		if !ok {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (a *Adapter) LoadDocumentByID(ctx context.Context, id string) (models.Document, bool, error) {
	row, err := a.client.QueryOne(ctx,
		`SELECT id, project_id, filename, file_path, file_size, mime_type, content_hash, chunk_count, processing_status, error_message, created_at, processed_at FROM documents WHERE id = ?`,
		[]interface{}{id})
	if err != nil {
		return models.Document{}, false, apperrors.Storage("loading document", err)
	}
	if len(row) == 0 {
		return models.Document{}, false, nil
	}
	d, ok := parseDocumentRow(row)
	return d, ok, nil
}

func (a *Adapter) DeleteDocumentByID(ctx context.Context, id string) (int64, error) {
	n, err := a.client.Execute(ctx, `DELETE FROM documents WHERE id = ?`, []interface{}{id})
	if err != nil {
		return 0, apperrors.Storage("deleting document", err)
	}
	return n, nil
}

// --- Vector rows / chunks -------------------------------------------------

// AddDocuments upserts a batch of chunks into the vector store, keyed by
// (document_id, chunk_index).
func (a *Adapter) AddDocuments(ctx context.Context, rows []models.VectorRow) error {
	for _, row := range rows {
		metadataJSON, err := json.Marshal(row.Metadata)
		if err != nil {
			return apperrors.Storage("encoding chunk metadata", err)
		}

		_, err = a.client.Execute(ctx, `
			INSERT INTO vector_documents (id, project_id, document_id, chunk_index, content, embedding, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(document_id, chunk_index) DO UPDATE SET
				content = excluded.content,
				embedding = excluded.embedding,
				metadata = excluded.metadata`,
			[]interface{}{row.ID, row.ProjectID, row.DocumentID, row.ChunkIndex, row.Content, encodeEmbedding(row.Embedding), string(metadataJSON), time.Now()})
		if err != nil {
			return apperrors.Storage(fmt.Sprintf("adding chunk %s[%d]", row.DocumentID, row.ChunkIndex), err)
		}
	}
	return a.client.Commit(ctx)
}

// DeleteChunksByDocument removes all chunks for a document, required
// before a reprocess (spec.md §9 Open Question a).
func (a *Adapter) DeleteChunksByDocument(ctx context.Context, documentID string) (int64, error) {
	n, err := a.client.Execute(ctx, `DELETE FROM vector_documents WHERE document_id = ?`, []interface{}{documentID})
	if err != nil {
		return 0, apperrors.Storage("deleting chunks", err)
	}
	return n, nil
}

func (a *Adapter) DeleteChunksByProject(ctx context.Context, projectID string) (int64, error) {
	n, err := a.client.Execute(ctx, `DELETE FROM vector_documents WHERE project_id = ?`, []interface{}{projectID})
	if err != nil {
		return 0, apperrors.Storage("deleting project chunks", err)
	}
	return n, nil
}

// HybridSearchParams is the pre-envelope request the Retrieval Service
// builds; Adapter is responsible for shaping it into the wire envelope.
type HybridSearchParams struct {
	ProjectID     string
	QueryText     string
	QueryVector   []float32
	K             int
	NumCandidates int
	SemanticBoost float64
}

type Hit struct {
	DocumentID string
	ChunkIndex int
	Content    string
	Metadata   map[string]string
	Score      float64
}

func (a *Adapter) HybridSearch(ctx context.Context, p HybridSearchParams) ([]Hit, error) {
	env := buildEnvelope(p.ProjectID, p.QueryText, p.QueryVector, p.K, p.NumCandidates, p.SemanticBoost)
	hits, err := a.client.HybridSearch(ctx, env)
	if err != nil {
		return nil, apperrors.Storage("hybrid search", err)
	}
	return toHits(hits), nil
}

// SimilaritySearchParams supports the pure-vector fallback path.
type SimilaritySearchParams struct {
	ProjectID   string
	QueryVector []float32
	K           int
	Threshold   float64
}

func (a *Adapter) SimilaritySearch(ctx context.Context, p SimilaritySearchParams) ([]Hit, error) {
	env := buildEnvelope(p.ProjectID, "", p.QueryVector, p.K, p.K*2, 1.0)
	hits, err := a.client.SimilaritySearch(ctx, env)
	if err != nil {
		return nil, apperrors.Storage("similarity search", err)
	}
	filtered := hits[:0]
	for _, h := range hits {
		// the bridge scores by cosine similarity (range [-1,1]); apply the
		// threshold floor here.
		if h.Score >= p.Threshold {
			filtered = append(filtered, h)
		}
	}
	return toHits(filtered), nil
}

func buildEnvelope(projectID, queryText string, vector []float32, k, numCandidates int, boost float64) json.RawMessage {
	vec := make([]float64, len(vector))
	for i, v := range vector {
		vec[i] = float64(v)
	}

	type matchClause struct {
		Match struct {
			Content string `json:"content"`
		} `json:"match"`
	}
	env := struct {
		Query struct {
			Bool struct {
				Must []matchClause `json:"must"`
			} `json:"bool"`
		} `json:"query"`
		KNN struct {
			Field         string    `json:"field"`
			K             int       `json:"k"`
			NumCandidates int       `json:"num_candidates"`
			QueryVector   []float64 `json:"query_vector"`
			Boost         float64   `json:"boost"`
		} `json:"knn"`
		Filter *struct {
			Term map[string]string `json:"term"`
		} `json:"filter,omitempty"`
		Source []string `json:"_source"`
	}{}

	if queryText != "" {
		var m matchClause
		m.Match.Content = queryText
		env.Query.Bool.Must = []matchClause{m}
	}
	env.KNN.Field = "embedding"
	env.KNN.K = k
	env.KNN.NumCandidates = numCandidates
	env.KNN.QueryVector = vec
	env.KNN.Boost = boost
	if projectID != "" {
		env.Filter = &struct {
			Term map[string]string `json:"term"`
		}{Term: map[string]string{"project_id": projectID}}
	}
	env.Source = []string{"id", "project_id", "document_id", "chunk_index", "content", "metadata", "_keyword_score", "_semantic_score"}

	data, _ := json.Marshal(env)
	return data
}

func toHits(in []bridgeproto.HybridHit) []Hit {
	out := make([]Hit, 0, len(in))
	for _, h := range in {
		out = append(out, Hit{
			DocumentID: h.DocumentID,
			ChunkIndex: h.ChunkIndex,
			Content:    h.Content,
			Metadata:   h.Metadata,
			Score:      h.Score,
		})
	}
	return out
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		bits := math.Float32bits(v)
		buf[i*4+0] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}
