package hub

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ContextTypes is the vocabulary for classifying shared context
// entries. The store accepts any string; the façade restricts input to
// this set.
var ContextTypes = []string{"general", "decision", "discovery", "fact"}

// ContextEntry is one shared key-value entry visible to all sessions.
// Platform and ContextType travel in the entry's metadata bag.
type ContextEntry struct {
	ContextID   string `json:"context_id"`
	Key         string `json:"key"`
	Content     string `json:"content"`
	CreatedBy   string `json:"created_by,omitempty"`
	Platform    string `json:"platform,omitempty"`
	ContextType string `json:"context_type,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	AccessCount int    `json:"access_count"`
}

// SetContextParams holds parameters for SetContext.
type SetContextParams struct {
	Key         string
	Content     string
	CreatedBy   string
	Platform    string
	ContextType string
}

type contextMetadata struct {
	Platform    string `json:"platform,omitempty"`
	ContextType string `json:"context_type,omitempty"`
}

// SetContext stores or overwrites a shared context entry. Overwriting
// keeps the entry's context_id, created_at, and access_count; only the
// content, author, and updated_at change.
func (s *Store) SetContext(ctx context.Context, p SetContextParams) (ContextEntry, error) {
	if p.Key == "" {
		return ContextEntry{}, fmt.Errorf("set context: key is required")
	}
	if p.Content == "" {
		return ContextEntry{}, fmt.Errorf("set context: content is required")
	}
	if p.ContextType == "" {
		p.ContextType = "general"
	}

	now := Now()
	candidate := uuid.NewString()
	meta, err := json.Marshal(contextMetadata{Platform: p.Platform, ContextType: p.ContextType})
	if err != nil {
		return ContextEntry{}, fmt.Errorf("set context: encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO shared_context
			(context_id, context_key, content, created_by, created_at, updated_at, access_count, metadata)
		VALUES (
			COALESCE((SELECT context_id FROM shared_context WHERE context_key = ?), ?),
			?, ?, ?,
			COALESCE((SELECT created_at FROM shared_context WHERE context_key = ?), ?),
			?,
			COALESCE((SELECT access_count FROM shared_context WHERE context_key = ?), 0),
			?
		)
	`, p.Key, candidate, p.Key, p.Content, nullableString(p.CreatedBy), p.Key, now, now, p.Key, string(meta))
	if err != nil {
		return ContextEntry{}, fmt.Errorf("set context: %w", err)
	}

	entry, err := s.lookupContext(ctx, p.Key)
	if err != nil {
		return ContextEntry{}, fmt.Errorf("set context: %w", err)
	}
	return entry, nil
}

// GetContext retrieves a shared context entry by key and increments its
// access count.
func (s *Store) GetContext(ctx context.Context, key string) (ContextEntry, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE shared_context SET access_count = access_count + 1 WHERE context_key = ?`, key)
	if err != nil {
		return ContextEntry{}, fmt.Errorf("get context: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ContextEntry{}, ErrContextNotFound
	}
	return s.lookupContext(ctx, key)
}

// PeekContext reads an entry without bumping its access count. Meant
// for inspection tooling; sessions read through GetContext.
func (s *Store) PeekContext(ctx context.Context, key string) (ContextEntry, error) {
	return s.lookupContext(ctx, key)
}

// ListContextParams holds parameters for ListContext.
type ListContextParams struct {
	KeyPrefix string
	Limit     int
}

// ListContext returns shared context entries, most recently updated
// first, with content shortened to a preview. Listing does not bump
// access counts; only GetContext does.
func (s *Store) ListContext(ctx context.Context, p ListContextParams) ([]ContextEntry, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT context_id, context_key, content, created_by, created_at, updated_at, access_count, metadata
		FROM shared_context
		WHERE context_key LIKE ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, p.KeyPrefix+"%", p.Limit)
	if err != nil {
		return nil, fmt.Errorf("list context: %w", err)
	}
	defer rows.Close()

	var entries []ContextEntry
	for rows.Next() {
		entry, err := scanContext(rows)
		if err != nil {
			return nil, fmt.Errorf("list context: scan: %w", err)
		}
		entry.Content = Truncate(entry.Content, s.cfg.PreviewLength)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AllContext returns every entry with full content, most recently
// updated first. Used by the semantic index to backfill vectors.
func (s *Store) AllContext(ctx context.Context) ([]ContextEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT context_id, context_key, content, created_by, created_at, updated_at, access_count, metadata
		FROM shared_context
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("all context: %w", err)
	}
	defer rows.Close()

	var entries []ContextEntry
	for rows.Next() {
		entry, err := scanContext(rows)
		if err != nil {
			return nil, fmt.Errorf("all context: scan: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) lookupContext(ctx context.Context, key string) (ContextEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT context_id, context_key, content, created_by, created_at, updated_at, access_count, metadata
		FROM shared_context
		WHERE context_key = ?
	`, key)
	entry, err := scanContext(row)
	if err == sql.ErrNoRows {
		return ContextEntry{}, ErrContextNotFound
	}
	if err != nil {
		return ContextEntry{}, err
	}
	return entry, nil
}

func scanContext(row rowScanner) (ContextEntry, error) {
	var entry ContextEntry
	var createdBy, meta sql.NullString
	err := row.Scan(&entry.ContextID, &entry.Key, &entry.Content, &createdBy,
		&entry.CreatedAt, &entry.UpdatedAt, &entry.AccessCount, &meta)
	if err != nil {
		return ContextEntry{}, err
	}
	entry.CreatedBy = createdBy.String
	if meta.Valid && meta.String != "" {
		var m contextMetadata
		if json.Unmarshal([]byte(meta.String), &m) == nil {
			entry.Platform = m.Platform
			entry.ContextType = m.ContextType
		}
	}
	return entry, nil
}
