package hub

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func register(t *testing.T, s *Store, id, platform, name string) Session {
	t.Helper()
	sess, err := s.RegisterSession(context.Background(), RegisterSessionParams{
		SessionID:   id,
		Platform:    platform,
		DisplayName: name,
		NodeID:      "local",
	})
	if err != nil {
		t.Fatalf("RegisterSession(%s): %v", id, err)
	}
	return sess
}

func TestRegisterSessionIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := register(t, s, "abc123def456", "claude-code", "Claude")
	if !first.Active {
		t.Fatal("expected freshly registered session to be active")
	}

	second, err := s.RegisterSession(ctx, RegisterSessionParams{
		SessionID:   "abc123def456",
		Platform:    "claude-code",
		DisplayName: "Claude Renamed",
	})
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if second.RegisteredAt != first.RegisteredAt {
		t.Errorf("re-registration changed registered_at: %q -> %q", first.RegisteredAt, second.RegisteredAt)
	}
	if second.DisplayName != "Claude Renamed" {
		t.Errorf("display name not updated, got %q", second.DisplayName)
	}

	sessions, err := s.ActiveSessions(ctx, "")
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session after re-registration, got %d", len(sessions))
	}
}

func TestActiveSessionsPlatformFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	register(t, s, "aaa", "claude-code", "Claude")
	register(t, s, "bbb", "codex-cli", "Codex")
	register(t, s, "ccc", "codex-cli", "Codex Two")

	only, err := s.ActiveSessions(ctx, "codex-cli")
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(only) != 2 {
		t.Fatalf("got %d codex-cli sessions, want 2", len(only))
	}
	for _, sess := range only {
		if sess.Platform != "codex-cli" {
			t.Errorf("filter leaked platform %q", sess.Platform)
		}
	}

	none, err := s.ActiveSessions(ctx, "gemini-cli")
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d gemini-cli sessions, want 0", len(none))
	}
}

func TestRegisterSessionCapabilities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.RegisterSession(ctx, RegisterSessionParams{
		SessionID:    "abc",
		Platform:     "claude-code",
		Capabilities: []string{"code_review", "research"},
	})
	if err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}
	if len(sess.Capabilities) != 2 || sess.Capabilities[0] != "code_review" {
		t.Errorf("capabilities = %v", sess.Capabilities)
	}

	// Round-trip through the database, not just the index.
	other, err := Open(s.cfg)
	if err != nil {
		t.Fatalf("Open second store: %v", err)
	}
	defer other.Close()
	got, err := other.GetSession(ctx, "abc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(got.Capabilities) != 2 {
		t.Errorf("capabilities after reload = %v", got.Capabilities)
	}

	// Re-registering without capabilities clears the declaration.
	sess, err = s.RegisterSession(ctx, RegisterSessionParams{SessionID: "abc", Platform: "claude-code"})
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if len(sess.Capabilities) != 0 {
		t.Errorf("capabilities not overwritten: %v", sess.Capabilities)
	}
}

func TestRegisterSessionValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.RegisterSession(ctx, RegisterSessionParams{Platform: "claude-code"}); err == nil {
		t.Error("expected error for missing session_id")
	}
	if _, err := s.RegisterSession(ctx, RegisterSessionParams{SessionID: "x"}); err == nil {
		t.Error("expected error for missing platform")
	}
}

func TestGetSessionMissReconcilesFromDB(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")

	// A second store over the same database simulates another process.
	cfg := s.cfg
	other, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open second store: %v", err)
	}
	defer other.Close()

	sess, err := other.GetSession(ctx, "aaa")
	if err != nil {
		t.Fatalf("GetSession on cold index: %v", err)
	}
	if sess.Platform != "claude-code" {
		t.Errorf("platform = %q, want claude-code", sess.Platform)
	}

	if _, err := other.GetSession(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeactivateSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	if err := s.DeactivateSession(ctx, "bbb"); err != nil {
		t.Fatalf("DeactivateSession: %v", err)
	}
	sessions, err := s.ActiveSessions(ctx, "")
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "aaa" {
		t.Errorf("expected only aaa active, got %+v", sessions)
	}
	if err := s.DeactivateSession(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestParticipantsKeyCanonical(t *testing.T) {
	if ParticipantsKey("bbb", "aaa") != "aaa,bbb" {
		t.Errorf("ParticipantsKey not sorted: %q", ParticipantsKey("bbb", "aaa"))
	}
	if ParticipantsKey("aaa", "bbb") != ParticipantsKey("bbb", "aaa") {
		t.Error("ParticipantsKey not symmetric")
	}
}

func TestSendMessageCreatesConversationAndQueue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	res, err := s.SendMessage(ctx, SendMessageParams{
		FromSession: "aaa", ToSession: "bbb", Content: "hello", MessageType: "chat",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.MessageID == "" || res.ConversationID == "" {
		t.Fatalf("empty ids in result: %+v", res)
	}

	stats, err := s.QueueStatus(ctx)
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if stats.Pending != 1 {
		t.Errorf("pending queue = %d, want 1", stats.Pending)
	}

	pending, err := s.PendingQueue(ctx, 10)
	if err != nil {
		t.Fatalf("PendingQueue: %v", err)
	}
	if len(pending) != 1 || pending[0].TargetSession != "bbb" {
		t.Errorf("unexpected pending rows: %+v", pending)
	}
}

func TestSendMessageRejectsUnknownTargetAndType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")

	_, err := s.SendMessage(ctx, SendMessageParams{FromSession: "aaa", ToSession: "ghost", Content: "hi"})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for unknown target, got %v", err)
	}

	register(t, s, "bbb", "codex-cli", "B")
	_, err = s.SendMessage(ctx, SendMessageParams{
		FromSession: "aaa", ToSession: "bbb", Content: "hi", MessageType: "announcement",
	})
	if err == nil {
		t.Error("expected error for broadcast-only message type on direct send")
	}
}

func TestConversationSymmetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	r1, err := s.SendMessage(ctx, SendMessageParams{FromSession: "aaa", ToSession: "bbb", Content: "hello"})
	if err != nil {
		t.Fatalf("SendMessage a->b: %v", err)
	}
	r2, err := s.SendMessage(ctx, SendMessageParams{FromSession: "bbb", ToSession: "aaa", Content: "hi back"})
	if err != nil {
		t.Fatalf("SendMessage b->a: %v", err)
	}
	if r1.ConversationID != r2.ConversationID {
		t.Errorf("directions map to different conversations: %s vs %s", r1.ConversationID, r2.ConversationID)
	}

	view, err := s.Conversation(ctx, ConversationParams{SessionID: "aaa", WithSession: "bbb"})
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if view.ConversationID != r1.ConversationID {
		t.Errorf("view conversation id = %s, want %s", view.ConversationID, r1.ConversationID)
	}
	if len(view.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(view.Messages))
	}
	for _, m := range view.Messages {
		wantMe := m.FromSession == "aaa"
		if m.IsMe != wantMe {
			t.Errorf("message from %s: IsMe = %v, want %v", m.FromSession, m.IsMe, wantMe)
		}
	}
}

func TestConversationEmptyWhenNeverTalked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	view, err := s.Conversation(ctx, ConversationParams{SessionID: "aaa", WithSession: "bbb"})
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if view.ConversationID != "" || len(view.Messages) != 0 {
		t.Errorf("expected empty view, got %+v", view)
	}
}

func TestCheckMessagesExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	if _, err := s.SendMessage(ctx, SendMessageParams{FromSession: "aaa", ToSession: "bbb", Content: "hello"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	msgs, err := s.CheckMessages(ctx, CheckMessagesParams{SessionID: "bbb", MarkRead: true})
	if err != nil {
		t.Fatalf("CheckMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("first check: got %d messages, want 1", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[0].FromSession != "aaa" {
		t.Errorf("unexpected message: %+v", msgs[0])
	}
	if msgs[0].FromPlatform != "claude-code" {
		t.Errorf("from_platform = %q, want claude-code", msgs[0].FromPlatform)
	}

	again, err := s.CheckMessages(ctx, CheckMessagesParams{SessionID: "bbb", MarkRead: true})
	if err != nil {
		t.Fatalf("CheckMessages second: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second check re-delivered %d messages", len(again))
	}

	stats, err := s.QueueStatus(ctx)
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if stats.Pending != 0 || stats.Delivered != 1 {
		t.Errorf("queue stats = %+v, want 0 pending / 1 delivered", stats)
	}
}

func TestCheckMessagesPeekLeavesUnread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	if _, err := s.SendMessage(ctx, SendMessageParams{FromSession: "aaa", ToSession: "bbb", Content: "hello"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	peek, err := s.CheckMessages(ctx, CheckMessagesParams{SessionID: "bbb", MarkRead: false})
	if err != nil {
		t.Fatalf("CheckMessages peek: %v", err)
	}
	if len(peek) != 1 {
		t.Fatalf("peek: got %d messages, want 1", len(peek))
	}

	// A peek must not consume the message.
	again, err := s.CheckMessages(ctx, CheckMessagesParams{SessionID: "bbb", MarkRead: true})
	if err != nil {
		t.Fatalf("CheckMessages after peek: %v", err)
	}
	if len(again) != 1 {
		t.Errorf("peek consumed the message: second check got %d", len(again))
	}
}

func TestCheckMessagesDoesNotReturnOwnMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	if _, err := s.SendMessage(ctx, SendMessageParams{FromSession: "aaa", ToSession: "bbb", Content: "hi"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	msgs, err := s.CheckMessages(ctx, CheckMessagesParams{SessionID: "aaa", MarkRead: true})
	if err != nil {
		t.Fatalf("CheckMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("sender received its own message: %+v", msgs)
	}
}

func TestBroadcastFanOutExcludesSender(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")
	register(t, s, "ccc", "gemini-cli", "C")

	res, err := s.Broadcast(ctx, BroadcastParams{FromSession: "aaa", Content: "standup time", MessageType: "announcement"})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(res.Recipients) != 2 {
		t.Fatalf("recipients = %v, want 2 excluding sender", res.Recipients)
	}
	for _, r := range res.Recipients {
		if r == "aaa" {
			t.Error("broadcast queued for sender")
		}
	}

	msgs, err := s.CheckMessages(ctx, CheckMessagesParams{SessionID: "bbb", MarkRead: true})
	if err != nil {
		t.Fatalf("CheckMessages: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].Broadcast {
		t.Errorf("recipient bbb got %+v", msgs)
	}
}

func TestBroadcastAloneHasNoRecipients(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")

	res, err := s.Broadcast(ctx, BroadcastParams{FromSession: "aaa", Content: "anyone?"})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(res.Recipients) != 0 {
		t.Errorf("recipients = %v, want none", res.Recipients)
	}
	if res.MessageID == "" {
		t.Error("broadcast with no recipients should still store the message")
	}
}

func TestFindCollaborator(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	sess, err := s.FindCollaborator(ctx, "codex-cli", "aaa")
	if err != nil {
		t.Fatalf("FindCollaborator: %v", err)
	}
	if sess.SessionID != "bbb" {
		t.Errorf("collaborator = %s, want bbb", sess.SessionID)
	}

	if _, err := s.FindCollaborator(ctx, "ollama", "aaa"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
	// The requester itself never qualifies.
	if _, err := s.FindCollaborator(ctx, "claude-code", "aaa"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession for own platform, got %v", err)
	}
}

func TestMarkDelivered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	register(t, s, "aaa", "claude-code", "A")
	register(t, s, "bbb", "codex-cli", "B")

	res, err := s.SendMessage(ctx, SendMessageParams{FromSession: "aaa", ToSession: "bbb", Content: "hi"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := s.MarkDelivered(ctx, res.QueueID); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	stats, err := s.QueueStatus(ctx)
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if stats.Delivered != 1 || stats.Pending != 0 {
		t.Errorf("queue stats = %+v after MarkDelivered", stats)
	}
	if err := s.MarkDelivered(ctx, 9999); !errors.Is(err, ErrQueueRowNotFound) {
		t.Errorf("expected ErrQueueRowNotFound, got %v", err)
	}
}

func TestSetContextUpsertKeepsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SetContext(ctx, SetContextParams{Key: "project/plan", Content: "v1", CreatedBy: "aaa"})
	if err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	if first.ContextID == "" {
		t.Fatal("empty context_id")
	}

	// Reads bump the access count; an overwrite must not reset it.
	if _, err := s.GetContext(ctx, "project/plan"); err != nil {
		t.Fatalf("GetContext: %v", err)
	}

	second, err := s.SetContext(ctx, SetContextParams{Key: "project/plan", Content: "v2", CreatedBy: "bbb"})
	if err != nil {
		t.Fatalf("SetContext overwrite: %v", err)
	}
	if second.ContextID != first.ContextID {
		t.Errorf("overwrite changed context_id: %s -> %s", first.ContextID, second.ContextID)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Errorf("overwrite changed created_at: %s -> %s", first.CreatedAt, second.CreatedAt)
	}
	if second.Content != "v2" || second.CreatedBy != "bbb" {
		t.Errorf("overwrite did not update content/author: %+v", second)
	}
	if second.AccessCount != 1 {
		t.Errorf("overwrite reset access_count: got %d, want 1", second.AccessCount)
	}
}

func TestSetContextTypeAndPlatformRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetContext(ctx, SetContextParams{
		Key: "decisions/auth", Content: "use oauth", CreatedBy: "aaa",
		Platform: "claude-code", ContextType: "decision",
	}); err != nil {
		t.Fatalf("SetContext: %v", err)
	}

	entry, err := s.PeekContext(ctx, "decisions/auth")
	if err != nil {
		t.Fatalf("PeekContext: %v", err)
	}
	if entry.Platform != "claude-code" || entry.ContextType != "decision" {
		t.Errorf("metadata not persisted: %+v", entry)
	}

	// Omitted type defaults to general.
	if _, err := s.SetContext(ctx, SetContextParams{Key: "k", Content: "v"}); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	plain, err := s.PeekContext(ctx, "k")
	if err != nil {
		t.Fatalf("PeekContext: %v", err)
	}
	if plain.ContextType != "general" {
		t.Errorf("default context type = %q, want general", plain.ContextType)
	}
}

func TestGetContextIncrementsAccessCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetContext(ctx, SetContextParams{Key: "k", Content: "v"}); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	for i := 1; i <= 3; i++ {
		entry, err := s.GetContext(ctx, "k")
		if err != nil {
			t.Fatalf("GetContext #%d: %v", i, err)
		}
		if entry.AccessCount != i {
			t.Errorf("access count after read %d = %d", i, entry.AccessCount)
		}
	}
	if _, err := s.GetContext(ctx, "missing"); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("expected ErrContextNotFound, got %v", err)
	}
}

func TestListContextPreviewAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}
	if _, err := s.SetContext(ctx, SetContextParams{Key: "project/notes", Content: long}); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	if _, err := s.SetContext(ctx, SetContextParams{Key: "scratch", Content: "short"}); err != nil {
		t.Fatalf("SetContext: %v", err)
	}

	entries, err := s.ListContext(ctx, ListContextParams{})
	if err != nil {
		t.Fatalf("ListContext: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Key == "project/notes" {
			if len(e.Content) != s.cfg.PreviewLength+3 {
				t.Errorf("preview length = %d, want %d plus ellipsis", len(e.Content), s.cfg.PreviewLength)
			}
			// Listing must not count as a read.
			if e.AccessCount != 0 {
				t.Errorf("list bumped access_count to %d", e.AccessCount)
			}
		}
	}

	filtered, err := s.ListContext(ctx, ListContextParams{KeyPrefix: "project/"})
	if err != nil {
		t.Fatalf("ListContext filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Key != "project/notes" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate long = %q", got)
	}
}
