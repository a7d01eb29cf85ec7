// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Hybrid-search approximation, grounded in SPEC_FULL.md §4.3.1: the
// envelope shape from spec.md §6 is preserved exactly (the parent-side
// Storage Adapter never needs to know this is SQLite underneath), but
// instead of a native engine call the bridge scores candidates itself —
// FTS5 bm25() for the lexical half, brute-force cosine over the stored
// float32 blobs for the semantic half, blended by the envelope's
// knn.boost (semantic_boost).
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/northbound/kbengine/internal/bridgeproto"
)

// envelope mirrors the JSON shape in spec.md §6.
type envelope struct {
	Query struct {
		Bool struct {
			Must []struct {
				Match struct {
					Content string `json:"content"`
				} `json:"match"`
			} `json:"must"`
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
}

type candidate struct {
	id, projectID, documentID, content, metadataJSON string
	chunkIndex                                       int
	embedding                                        []byte
	bm25                                              float64
	hasBM25                                           bool
}

func (s *server) handleHybridSearch(p bridgeproto.HybridSearchParams) (json.RawMessage, error) {
	env, err := parseEnvelope(p.Envelope)
	if err != nil {
		return nil, err
	}

	queryText := ""
	if len(env.Query.Bool.Must) > 0 {
		queryText = env.Query.Bool.Must[0].Match.Content
	}

	projectID := ""
	if env.Filter != nil {
		projectID = env.Filter.Term["project_id"]
	}

	candidates, err := s.loadCandidates(projectID, queryText, env.KNN.NumCandidates)
	if err != nil {
		return nil, err
	}

	queryVec := toFloat32(env.KNN.QueryVector)
	hits := scoreCandidates(candidates, queryVec, env.KNN.Boost)
	return marshalHits(hits, env.KNN.K)
}

func (s *server) handleSimilaritySearch(p bridgeproto.HybridSearchParams) (json.RawMessage, error) {
	env, err := parseEnvelope(p.Envelope)
	if err != nil {
		return nil, err
	}

	projectID := ""
	if env.Filter != nil {
		projectID = env.Filter.Term["project_id"]
	}

	candidates, err := s.loadCandidates(projectID, "", env.KNN.NumCandidates)
	if err != nil {
		return nil, err
	}

	queryVec := toFloat32(env.KNN.QueryVector)
	hits := scoreCandidates(candidates, queryVec, 1.0) // pure-vector: semantic only
	return marshalHits(hits, env.KNN.K)
}

func parseEnvelope(raw json.RawMessage) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("invalid search envelope: %w", err)
	}
	return env, nil
}

// loadCandidates fetches up to limit rows, scoped by project when given. A
// non-empty queryText also pulls the FTS5 bm25()-ranked lexical matches and
// unions them with the plain project-scoped fetch (keyed by id), so a query
// whose terms appear in no document still gets the full semantic candidate
// pool to rescore by cosine similarity rather than an empty set — only the
// bm25 component is restricted to lexical matches, not the candidate pool
// the knn leg scores.
func (s *server) loadCandidates(projectID, queryText string, limit int) ([]candidate, error) {
	if s.db == nil {
		return nil, fmt.Errorf("not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	byID := make(map[string]candidate)

	vectorRows, err := s.loadVectorCandidates(projectID, limit)
	if err != nil {
		return nil, err
	}
	for _, c := range vectorRows {
		byID[c.id] = c
	}

	if queryText != "" {
		ftsRows, err := s.loadFTSCandidates(projectID, queryText, limit)
		if err != nil {
			return nil, err
		}
		for _, c := range ftsRows {
			if existing, ok := byID[c.id]; ok {
				existing.bm25 = c.bm25
				existing.hasBM25 = true
				byID[c.id] = existing
				continue
			}
			byID[c.id] = c
		}
	}

	out := make([]candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	return out, nil
}

// loadVectorCandidates is the semantic leg's candidate pool: every row
// scoped to the project, independent of lexical match, up to limit.
func (s *server) loadVectorCandidates(projectID string, limit int) ([]candidate, error) {
	query := `SELECT id, project_id, document_id, chunk_index, content, metadata, embedding FROM vector_documents`
	args := []interface{}{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.projectID, &c.documentID, &c.chunkIndex, &c.content, &c.metadataJSON, &c.embedding); err != nil {
			continue // defensive: skip malformed rows rather than fail the whole search
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// loadFTSCandidates is the lexical leg: rows matching queryText, ranked by
// bm25(), used to tag the bm25 score onto whatever's already in the
// semantic candidate pool (or add a lexical-only row the limit cut off of
// the plain fetch).
func (s *server) loadFTSCandidates(projectID, queryText string, limit int) ([]candidate, error) {
	query := `SELECT v.id, v.project_id, v.document_id, v.chunk_index, v.content, v.metadata, v.embedding, bm25(vector_documents_fts) AS score
		FROM vector_documents_fts
		JOIN vector_documents v ON v.rowid = vector_documents_fts.rowid
		WHERE vector_documents_fts MATCH ?`
	args := []interface{}{ftsQuery(queryText)}
	if projectID != "" {
		query += " AND v.project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		var score sql.NullFloat64
		if err := rows.Scan(&c.id, &c.projectID, &c.documentID, &c.chunkIndex, &c.content, &c.metadataJSON, &c.embedding, &score); err != nil {
			continue // defensive: skip malformed rows rather than fail the whole search
		}
		if score.Valid {
			c.bm25 = score.Float64
			c.hasBM25 = true
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ftsQuery escapes the text for use as an FTS5 MATCH argument by quoting
// it as a single phrase, avoiding FTS5 query-syntax injection from
// arbitrary user search text.
func ftsQuery(text string) string {
	escaped := ""
	for _, r := range text {
		if r == '"' {
			escaped += `""`
		} else {
			escaped += string(r)
		}
	}
	return `"` + escaped + `"`
}

func scoreCandidates(candidates []candidate, queryVec []float32, semanticBoost float64) []bridgeproto.HybridHit {
	if len(candidates) == 0 {
		return nil
	}

	var bm25Values []float64
	for _, c := range candidates {
		if c.hasBM25 {
			bm25Values = append(bm25Values, c.bm25)
		}
	}
	minBM25, maxBM25 := minMax(bm25Values)

	hits := make([]bridgeproto.HybridHit, 0, len(candidates))
	for _, c := range candidates {
		semantic := cosineSimilarity(queryVec, bytesToFloat32(c.embedding))

		lexical := 0.0
		if c.hasBM25 {
			// bm25() in SQLite returns lower-is-better; invert and
			// normalise into [0,1] before blending with semantic.
			lexical = normalize(-c.bm25, -maxBM25, -minBM25)
		}

		score := semanticBoost*semantic + (1-semanticBoost)*lexical

		var metadata map[string]string
		_ = json.Unmarshal([]byte(c.metadataJSON), &metadata)

		hits = append(hits, bridgeproto.HybridHit{
			ID:         c.id,
			ProjectID:  c.projectID,
			DocumentID: c.documentID,
			ChunkIndex: c.chunkIndex,
			Content:    c.content,
			Metadata:   metadata,
			Score:      score,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

func marshalHits(hits []bridgeproto.HybridHit, k int) (json.RawMessage, error) {
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return json.Marshal(bridgeproto.HybridSearchData{Hits: hits})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func normalize(v, min, max float64) float64 {
	if max == min {
		return 0.5
	}
	n := (v - min) / (max - min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
