package search

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

// Document is a shared-context entry as the index sees it. Platform is
// the contributing session's platform; ContextType classifies the entry
// (general, decision, discovery, fact).
type Document struct {
	ContextID   string
	Key         string
	Content     string
	Platform    string
	ContextType string
}

// Result is one semantic search hit.
type Result struct {
	ContextID   string  `json:"context_id"`
	Key         string  `json:"key"`
	Platform    string  `json:"platform,omitempty"`
	ContextType string  `json:"context_type,omitempty"`
	Score       float64 `json:"score"`
}

// Index stores embedding vectors for shared-context entries in a
// sidecar database next to the hub's. A nil *Index is valid: every
// method is a no-op returning empty results, which is how the system
// runs when no embedding provider is configured.
type Index struct {
	db       *sql.DB
	embedder Embedder
}

// OpenIndex opens the vector database in dataDir. Returns (nil, nil)
// when embedder is nil, keeping semantic search fully optional.
func OpenIndex(dataDir string, embedder Embedder) (*Index, error) {
	if embedder == nil {
		return nil, nil
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "vectors.db"))
	if err != nil {
		return nil, fmt.Errorf("search: open vector database: %w", err)
	}
	for _, p := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("search: pragma %q: %w", p, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS context_vectors (
			context_id   TEXT PRIMARY KEY,
			context_key  TEXT NOT NULL,
			platform     TEXT NOT NULL DEFAULT '',
			context_type TEXT NOT NULL DEFAULT 'general',
			content_hash TEXT NOT NULL,
			dims         INTEGER NOT NULL,
			vector       BLOB NOT NULL,
			indexed_at   TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("search: migration: %w", err)
	}
	return &Index{db: db, embedder: embedder}, nil
}

// Close closes the vector database.
func (ix *Index) Close() error {
	if ix == nil {
		return nil
	}
	return ix.db.Close()
}

// Enabled reports whether the index is active.
func (ix *Index) Enabled() bool { return ix != nil }

// IndexDocument embeds and stores a document's vector. Unchanged
// content (same hash) is skipped so re-indexing is cheap.
func (ix *Index) IndexDocument(ctx context.Context, doc Document) error {
	if ix == nil {
		return nil
	}

	hash := contentHash(doc.Content)
	var existing string
	err := ix.db.QueryRowContext(ctx,
		`SELECT content_hash FROM context_vectors WHERE context_id = ?`, doc.ContextID).
		Scan(&existing)
	if err == nil && existing == hash {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("search: index lookup: %w", err)
	}

	vec, err := ix.embedder.Embed(ctx, doc.Key+"\n"+doc.Content)
	if err != nil {
		return fmt.Errorf("search: embed %q: %w", doc.Key, err)
	}

	if doc.ContextType == "" {
		doc.ContextType = "general"
	}
	_, err = ix.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO context_vectors
			(context_id, context_key, platform, context_type, content_hash, dims, vector, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`, doc.ContextID, doc.Key, doc.Platform, doc.ContextType, hash, len(vec), encodeVector(vec))
	if err != nil {
		return fmt.Errorf("search: store vector: %w", err)
	}
	return nil
}

// Reindex embeds every given document, skipping unchanged ones.
// Returns how many were (re)embedded.
func (ix *Index) Reindex(ctx context.Context, docs []Document) (int, error) {
	if ix == nil {
		return 0, nil
	}
	indexed := 0
	for _, doc := range docs {
		before, err := ix.hasHash(ctx, doc.ContextID, contentHash(doc.Content))
		if err != nil {
			return indexed, err
		}
		if before {
			continue
		}
		if err := ix.IndexDocument(ctx, doc); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}

func (ix *Index) hasHash(ctx context.Context, contextID, hash string) (bool, error) {
	var existing string
	err := ix.db.QueryRowContext(ctx,
		`SELECT content_hash FROM context_vectors WHERE context_id = ?`, contextID).
		Scan(&existing)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("search: index lookup: %w", err)
	}
	return existing == hash, nil
}

// Query describes one semantic search. Platform and ContextType are
// optional equality filters applied before ranking.
type Query struct {
	Text        string
	TopK        int
	Platform    string
	ContextType string
}

// Search embeds the query text and returns the TopK most similar
// documents by cosine similarity. With a nil index it returns no
// results and no error.
func (ix *Index) Search(ctx context.Context, q Query) ([]Result, error) {
	if ix == nil {
		return nil, nil
	}
	if q.TopK <= 0 {
		q.TopK = 5
	}

	queryVec, err := ix.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	query := `
		SELECT context_id, context_key, platform, context_type, vector
		FROM context_vectors
		WHERE dims = ?`
	args := []interface{}{len(queryVec)}
	if q.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, q.Platform)
	}
	if q.ContextType != "" {
		query += ` AND context_type = ?`
		args = append(args, q.ContextType)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: scan vectors: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var blob []byte
		if err := rows.Scan(&r.ContextID, &r.Key, &r.Platform, &r.ContextType, &blob); err != nil {
			return nil, fmt.Errorf("search: scan row: %w", err)
		}
		r.Score = CosineSimilarity(queryVec, decodeVector(blob))
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

// Remove drops a document's vector, if present.
func (ix *Index) Remove(ctx context.Context, contextID string) error {
	if ix == nil {
		return nil
	}
	_, err := ix.db.ExecContext(ctx,
		`DELETE FROM context_vectors WHERE context_id = ?`, contextID)
	if err != nil {
		return fmt.Errorf("search: remove vector: %w", err)
	}
	return nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func encodeVector(vec Vector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) Vector {
	vec := make(Vector, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
