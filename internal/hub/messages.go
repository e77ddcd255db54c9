package hub

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Message types accepted for direct messages and broadcasts. Anything
// else is rejected at the edge before it reaches the store.
var (
	DirectMessageTypes    = []string{"chat", "request", "response", "notification", "code", "data"}
	BroadcastMessageTypes = []string{"announcement", "discovery", "request_all", "status"}
)

// ValidMessageType reports whether t is in the allowed set.
func ValidMessageType(t string, allowed []string) bool {
	for _, a := range allowed {
		if t == a {
			return true
		}
	}
	return false
}

// ParticipantsKey builds the canonical key for a two-party
// conversation. The pair is sorted so (a,b) and (b,a) map to the same
// conversation.
func ParticipantsKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ",")
}

// Message is a stored message as seen by a recipient or reader.
type Message struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	FromSession    string `json:"from_session"`
	FromPlatform   string `json:"from_platform,omitempty"`
	FromName       string `json:"from_name,omitempty"`
	ToSession      string `json:"to_session,omitempty"`
	Broadcast      bool   `json:"broadcast"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
	Timestamp      string `json:"timestamp"`
	Read           bool   `json:"read"`
	IsMe           bool   `json:"is_me,omitempty"`
}

// SendMessageParams holds parameters for SendMessage.
type SendMessageParams struct {
	FromSession string
	ToSession   string
	Content     string
	MessageType string
}

// SendResult reports the ids produced by a direct send.
type SendResult struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	QueueID        int64  `json:"queue_id"`
}

// SendMessage delivers a direct message to another session. The
// conversation lookup-or-create, message insert, queue insert, and
// activity bumps all happen in one transaction so a crash can never
// leave a message without its queue row.
func (s *Store) SendMessage(ctx context.Context, p SendMessageParams) (SendResult, error) {
	if p.Content == "" {
		return SendResult{}, fmt.Errorf("send message: content is required")
	}
	if p.MessageType == "" {
		p.MessageType = "chat"
	}
	if !ValidMessageType(p.MessageType, DirectMessageTypes) {
		return SendResult{}, fmt.Errorf("send message: invalid message type %q", p.MessageType)
	}
	if _, err := s.GetSession(ctx, p.ToSession); err != nil {
		return SendResult{}, fmt.Errorf("send message: target %s: %w", p.ToSession, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: begin: %w", err)
	}
	defer tx.Rollback()

	now := Now()
	convID, err := ensureConversation(ctx, tx, p.FromSession, p.ToSession, now)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: %w", err)
	}

	messageID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (message_id, conversation_id, from_session, to_session, content, message_type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, messageID, convID, p.FromSession, p.ToSession, p.Content, p.MessageType, now)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: insert message: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO message_queue (message_id, target_session, queued_at)
		VALUES (?, ?, ?)
	`, messageID, p.ToSession, now)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: queue: %w", err)
	}
	queueID, _ := res.LastInsertId()

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_activity = ? WHERE conversation_id = ?`, now, convID)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: touch conversation: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET last_active = ? WHERE session_id = ?`, now, p.FromSession)
	if err != nil {
		return SendResult{}, fmt.Errorf("send message: touch sender: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SendResult{}, fmt.Errorf("send message: commit: %w", err)
	}
	return SendResult{MessageID: messageID, ConversationID: convID, QueueID: queueID}, nil
}

// ensureConversation finds or creates the active conversation between
// two sessions. INSERT OR IGNORE against the unique participants index
// resolves the race where both sides send their first message at once.
func ensureConversation(ctx context.Context, tx *sql.Tx, a, b, now string) (string, error) {
	key := ParticipantsKey(a, b)

	candidate := uuid.NewString()
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversations (conversation_id, participants, created_at, last_activity)
		VALUES (?, ?, ?, ?)
	`, candidate, key, now, now)
	if err != nil {
		return "", fmt.Errorf("ensure conversation: %w", err)
	}

	var convID string
	err = tx.QueryRowContext(ctx,
		`SELECT conversation_id FROM conversations WHERE participants = ? AND active = 1`, key).
		Scan(&convID)
	if err != nil {
		return "", fmt.Errorf("ensure conversation: lookup: %w", err)
	}
	return convID, nil
}

// BroadcastParams holds parameters for Broadcast.
type BroadcastParams struct {
	FromSession string
	Content     string
	MessageType string
}

// BroadcastResult reports a broadcast's message id and fan-out size.
type BroadcastResult struct {
	MessageID  string   `json:"message_id"`
	Recipients []string `json:"recipients"`
}

// Broadcast sends a message to every active session except the sender.
// A broadcast with no other sessions around still stores the message;
// it simply has zero recipients.
func (s *Store) Broadcast(ctx context.Context, p BroadcastParams) (BroadcastResult, error) {
	if p.Content == "" {
		return BroadcastResult{}, fmt.Errorf("broadcast: content is required")
	}
	if p.MessageType == "" {
		p.MessageType = "announcement"
	}
	if !ValidMessageType(p.MessageType, BroadcastMessageTypes) {
		return BroadcastResult{}, fmt.Errorf("broadcast: invalid message type %q", p.MessageType)
	}

	sessions, err := s.ActiveSessions(ctx, "")
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast: begin: %w", err)
	}
	defer tx.Rollback()

	now := Now()
	messageID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (message_id, from_session, broadcast, content, message_type, timestamp)
		VALUES (?, ?, 1, ?, ?, ?)
	`, messageID, p.FromSession, p.Content, p.MessageType, now)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast: insert message: %w", err)
	}

	recipients := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if sess.SessionID == p.FromSession {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_queue (message_id, target_session, queued_at)
			VALUES (?, ?, ?)
		`, messageID, sess.SessionID, now)
		if err != nil {
			return BroadcastResult{}, fmt.Errorf("broadcast: queue for %s: %w", sess.SessionID, err)
		}
		recipients = append(recipients, sess.SessionID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET last_active = ? WHERE session_id = ?`, now, p.FromSession)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast: touch sender: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast: commit: %w", err)
	}
	return BroadcastResult{MessageID: messageID, Recipients: recipients}, nil
}

// CheckMessagesParams holds parameters for CheckMessages.
type CheckMessagesParams struct {
	SessionID string
	Limit     int
	MarkRead  bool
}

// CheckMessages returns unread messages addressed to the session,
// directly or via broadcast, newest first. With MarkRead set, exactly
// the returned set is marked read inside the same transaction, so a
// second call never re-delivers what the first one returned.
func (s *Store) CheckMessages(ctx context.Context, p CheckMessagesParams) ([]Message, error) {
	if p.Limit <= 0 {
		p.Limit = s.cfg.DefaultCheckLimit
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("check messages: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT m.message_id, m.conversation_id, m.from_session, s.platform, s.display_name,
		       m.to_session, m.broadcast, m.content, m.message_type, m.timestamp
		FROM messages m
		LEFT JOIN sessions s ON s.session_id = m.from_session
		WHERE (m.to_session = ? OR m.broadcast = 1)
		  AND m.read = 0
		  AND m.from_session != ?
		ORDER BY m.timestamp DESC
		LIMIT ?
	`, p.SessionID, p.SessionID, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("check messages: %w", err)
	}

	var msgs []Message
	for rows.Next() {
		var m Message
		var convID, fromPlatform, fromName, toSession sql.NullString
		var broadcast int
		err := rows.Scan(&m.MessageID, &convID, &m.FromSession, &fromPlatform, &fromName,
			&toSession, &broadcast, &m.Content, &m.MessageType, &m.Timestamp)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("check messages: scan: %w", err)
		}
		m.ConversationID = convID.String
		m.FromPlatform = fromPlatform.String
		m.FromName = fromName.String
		m.ToSession = toSession.String
		m.Broadcast = broadcast == 1
		msgs = append(msgs, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("check messages: %w", err)
	}

	now := Now()
	if p.MarkRead {
		for _, m := range msgs {
			// Broadcasts are shared rows: the read flag flips for everyone
			// once any recipient checks, but each recipient's own queue
			// row below tracks per-target delivery.
			_, err = tx.ExecContext(ctx,
				`UPDATE messages SET read = 1, read_at = ?, delivered = 1, delivered_at = COALESCE(delivered_at, ?) WHERE message_id = ?`,
				now, now, m.MessageID)
			if err != nil {
				return nil, fmt.Errorf("check messages: mark read: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE message_queue
				SET status = 'delivered', attempts = attempts + 1, last_attempt = ?
				WHERE message_id = ? AND target_session = ?
			`, now, m.MessageID, p.SessionID)
			if err != nil {
				return nil, fmt.Errorf("check messages: mark delivered: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET last_active = ? WHERE session_id = ?`, now, p.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check messages: touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("check messages: commit: %w", err)
	}
	return msgs, nil
}

// ConversationParams holds parameters for Conversation.
type ConversationParams struct {
	SessionID   string
	WithSession string
	Limit       int
}

// ConversationView is the message history between two sessions.
type ConversationView struct {
	ConversationID string    `json:"conversation_id"`
	Participants   string    `json:"participants"`
	Messages       []Message `json:"messages"`
}

// Conversation returns the history between the caller and another
// session, oldest first. The most recent Limit messages are selected,
// so a long thread shows its tail, not its head. An empty view with no
// conversation id means the two sessions have never exchanged a
// direct message.
func (s *Store) Conversation(ctx context.Context, p ConversationParams) (ConversationView, error) {
	if p.Limit <= 0 {
		p.Limit = s.cfg.DefaultConversationLimit
	}

	key := ParticipantsKey(p.SessionID, p.WithSession)
	view := ConversationView{Participants: key}

	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id FROM conversations WHERE participants = ? AND active = 1`, key).
		Scan(&view.ConversationID)
	if err == sql.ErrNoRows {
		return view, nil
	}
	if err != nil {
		return ConversationView{}, fmt.Errorf("get conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.message_id, m.from_session, s.platform, s.display_name,
		       m.to_session, m.content, m.message_type, m.timestamp, m.read
		FROM messages m
		LEFT JOIN sessions s ON s.session_id = m.from_session
		WHERE m.conversation_id = ?
		ORDER BY m.timestamp DESC
		LIMIT ?
	`, view.ConversationID, p.Limit)
	if err != nil {
		return ConversationView{}, fmt.Errorf("get conversation: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var fromPlatform, fromName, toSession sql.NullString
		var read int
		err := rows.Scan(&m.MessageID, &m.FromSession, &fromPlatform, &fromName,
			&toSession, &m.Content, &m.MessageType, &m.Timestamp, &read)
		if err != nil {
			return ConversationView{}, fmt.Errorf("get conversation: scan: %w", err)
		}
		m.ConversationID = view.ConversationID
		m.FromPlatform = fromPlatform.String
		m.FromName = fromName.String
		m.ToSession = toSession.String
		m.Read = read == 1
		m.IsMe = m.FromSession == p.SessionID
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return ConversationView{}, fmt.Errorf("get conversation: %w", err)
	}

	// Selected newest-first to get the tail; present oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	view.Messages = msgs
	return view, nil
}

// RecentMessages returns the latest messages across all conversations
// and broadcasts, newest first. Used by the inspection CLI.
func (s *Store) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultConversationLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.message_id, m.conversation_id, m.from_session, s.platform, s.display_name,
		       m.to_session, m.broadcast, m.content, m.message_type, m.timestamp, m.read
		FROM messages m
		LEFT JOIN sessions s ON s.session_id = m.from_session
		ORDER BY m.timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var convID, fromPlatform, fromName, toSession sql.NullString
		var broadcast, read int
		err := rows.Scan(&m.MessageID, &convID, &m.FromSession, &fromPlatform, &fromName,
			&toSession, &broadcast, &m.Content, &m.MessageType, &m.Timestamp, &read)
		if err != nil {
			return nil, fmt.Errorf("recent messages: scan: %w", err)
		}
		m.ConversationID = convID.String
		m.FromPlatform = fromPlatform.String
		m.FromName = fromName.String
		m.ToSession = toSession.String
		m.Broadcast = broadcast == 1
		m.Read = read == 1
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UnreadCount returns how many unread messages are waiting for the
// session, counting both direct messages and broadcasts from others.
func (s *Store) UnreadCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE (to_session = ? OR broadcast = 1)
		  AND read = 0
		  AND from_session != ?
	`, sessionID, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

// QueueStats summarizes the delivery queue by status.
type QueueStats struct {
	Pending   int `json:"pending"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// QueueStatus returns delivery queue counts grouped by status.
func (s *Store) QueueStatus(ctx context.Context) (QueueStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM message_queue GROUP BY status`)
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue status: %w", err)
	}
	defer rows.Close()

	var stats QueueStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return QueueStats{}, fmt.Errorf("queue status: scan: %w", err)
		}
		switch status {
		case "pending":
			stats.Pending = n
		case "delivered":
			stats.Delivered = n
		case "failed":
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}

// QueueEntry is one row of the delivery queue.
type QueueEntry struct {
	QueueID       int64  `json:"queue_id"`
	MessageID     string `json:"message_id"`
	TargetSession string `json:"target_session"`
	QueuedAt      string `json:"queued_at"`
	Attempts      int    `json:"attempts"`
	Status        string `json:"status"`
}

// PendingQueue returns queue rows still awaiting delivery, oldest first.
func (s *Store) PendingQueue(ctx context.Context, limit int) ([]QueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT queue_id, message_id, target_session, queued_at, attempts, status
		FROM message_queue
		WHERE status = 'pending'
		ORDER BY queue_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending queue: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.QueueID, &e.MessageID, &e.TargetSession, &e.QueuedAt, &e.Attempts, &e.Status); err != nil {
			return nil, fmt.Errorf("pending queue: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkDelivered resolves a single queue row. Pull-based delivery
// resolves rows through CheckMessages; this exists for push-style
// transports that deliver a specific queued message out of band.
func (s *Store) MarkDelivered(ctx context.Context, queueID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE message_queue
		SET status = 'delivered', attempts = attempts + 1, last_attempt = ?
		WHERE queue_id = ?
	`, Now(), queueID)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQueueRowNotFound
	}
	return nil
}
