package hub

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Session is a registered AI assistant session.
type Session struct {
	SessionID    string   `json:"session_id"`
	Platform     string   `json:"platform"`
	DisplayName  string   `json:"display_name,omitempty"`
	NodeID       string   `json:"node_id,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	RegisteredAt string   `json:"registered_at"`
	LastActive   string   `json:"last_active"`
	Active       bool     `json:"active"`
}

// RegisterSessionParams holds parameters for RegisterSession.
type RegisterSessionParams struct {
	SessionID    string
	Platform     string
	DisplayName  string
	NodeID       string
	Capabilities []string
}

// RegisterSession registers a session, or refreshes it if the same
// session_id is already known. Re-registration keeps the original
// registered_at timestamp and simply bumps last_active, so calling it
// on every startup is safe.
func (s *Store) RegisterSession(ctx context.Context, p RegisterSessionParams) (Session, error) {
	if p.SessionID == "" {
		return Session{}, fmt.Errorf("register session: session_id is required")
	}
	if p.Platform == "" {
		return Session{}, fmt.Errorf("register session: platform is required")
	}

	metadata, err := encodeSessionMetadata(p.Capabilities)
	if err != nil {
		return Session{}, fmt.Errorf("register session: %w", err)
	}

	now := Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
			(session_id, platform, display_name, node_id, registered_at, last_active, metadata, active)
		VALUES (?, ?, ?, ?,
			COALESCE((SELECT registered_at FROM sessions WHERE session_id = ?), ?),
			?, ?, 1)
	`, p.SessionID, p.Platform, nullableString(p.DisplayName), nullableString(p.NodeID),
		p.SessionID, now, now, metadata)
	if err != nil {
		return Session{}, fmt.Errorf("register session: %w", err)
	}

	sess, err := s.loadSession(ctx, p.SessionID)
	if err != nil {
		return Session{}, fmt.Errorf("register session: %w", err)
	}

	s.mu.Lock()
	s.index[sess.SessionID] = sess
	s.mu.Unlock()

	return sess, nil
}

// GetSession returns a session by id. The in-memory index is consulted
// first; on a miss the database is checked, since another process may
// have registered the session after this one started.
func (s *Store) GetSession(ctx context.Context, sessionID string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.index[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	s.index[sessionID] = sess
	s.mu.Unlock()

	return sess, nil
}

// ActiveSessions returns all currently active sessions, most recently
// active first. A non-empty platformFilter restricts the result to one
// platform.
func (s *Store) ActiveSessions(ctx context.Context, platformFilter string) ([]Session, error) {
	query := `
		SELECT session_id, platform, display_name, node_id, registered_at, last_active, metadata, active
		FROM sessions
		WHERE active = 1`
	args := []interface{}{}
	if platformFilter != "" {
		query += ` AND platform = ?`
		args = append(args, platformFilter)
	}
	query += ` ORDER BY last_active DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list active sessions: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// TouchSession bumps a session's last_active timestamp.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_active = ? WHERE session_id = ?`, Now(), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	if sess, ok := s.index[sessionID]; ok {
		sess.LastActive = Now()
		s.index[sessionID] = sess
	}
	s.mu.Unlock()
	return nil
}

// DeactivateSession marks a session inactive. It stops receiving
// broadcasts and no longer shows up in discovery; its message history
// is kept.
func (s *Store) DeactivateSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0, last_active = ? WHERE session_id = ?`, Now(), sessionID)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	delete(s.index, sessionID)
	s.mu.Unlock()
	return nil
}

// ReloadIndex rebuilds the in-memory session index from the database.
func (s *Store) ReloadIndex(ctx context.Context) error {
	sessions, err := s.ActiveSessions(ctx, "")
	if err != nil {
		return fmt.Errorf("reload index: %w", err)
	}

	fresh := make(map[string]Session, len(sessions))
	for _, sess := range sessions {
		fresh[sess.SessionID] = sess
	}

	s.mu.Lock()
	s.index = fresh
	s.mu.Unlock()
	return nil
}

// FindCollaborator returns the most recently active session on the
// given platform, excluding the requester. Returns ErrNoActiveSession
// when nobody on that platform is around.
func (s *Store) FindCollaborator(ctx context.Context, platform, excludeSessionID string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, platform, display_name, node_id, registered_at, last_active, metadata, active
		FROM sessions
		WHERE platform = ? AND active = 1 AND session_id != ?
		ORDER BY last_active DESC
		LIMIT 1
	`, platform, excludeSessionID)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrNoActiveSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("find collaborator: %w", err)
	}
	return sess, nil
}

func (s *Store) loadSession(ctx context.Context, sessionID string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, platform, display_name, node_id, registered_at, last_active, metadata, active
		FROM sessions
		WHERE session_id = ?
	`, sessionID)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var displayName, nodeID, metadata sql.NullString
	var active int
	err := row.Scan(&sess.SessionID, &sess.Platform, &displayName, &nodeID,
		&sess.RegisteredAt, &sess.LastActive, &metadata, &active)
	if err != nil {
		return Session{}, err
	}
	sess.DisplayName = displayName.String
	sess.NodeID = nodeID.String
	sess.Capabilities = decodeSessionMetadata(metadata.String)
	sess.Active = active == 1
	return sess, nil
}

type sessionMetadata struct {
	Capabilities []string `json:"capabilities,omitempty"`
}

func encodeSessionMetadata(capabilities []string) (*string, error) {
	if len(capabilities) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(sessionMetadata{Capabilities: capabilities})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	s := string(data)
	return &s, nil
}

// decodeSessionMetadata tolerates malformed metadata: the bag is
// advisory, so garbage just reads as no capabilities.
func decodeSessionMetadata(raw string) []string {
	if raw == "" {
		return nil
	}
	var m sessionMetadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m.Capabilities
}
