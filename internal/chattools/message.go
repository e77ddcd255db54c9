package chattools

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/HendryAvila/crosstalk/internal/platform"
	"github.com/mark3labs/mcp-go/mcp"
)

// SendMessageTool handles the send_message MCP tool.
type SendMessageTool struct {
	store *hub.Store
	self  *platform.Identity
}

// NewSendMessageTool creates a SendMessageTool.
func NewSendMessageTool(store *hub.Store, self *platform.Identity) *SendMessageTool {
	return &SendMessageTool{store: store, self: self}
}

// Definition returns the MCP tool definition for send_message.
func (t *SendMessageTool) Definition() mcp.Tool {
	return mcp.NewTool("send_message",
		mcp.WithDescription(
			"Send a direct message to another AI session. The message is queued and the "+
				"target picks it up on its next check_messages call. Use "+
				"list_active_sessions to find target session ids.",
		),
		mcp.WithString("to_session",
			mcp.Required(),
			mcp.Description("Session id of the recipient"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Message content"),
		),
		mcp.WithString("message_type",
			mcp.Description("Kind of message (default: chat)"),
			mcp.Enum(hub.DirectMessageTypes...),
		),
	)
}

// Handle processes the send_message tool call.
func (t *SendMessageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toSession := req.GetString("to_session", "")
	content := req.GetString("content", "")
	if toSession == "" {
		return mcp.NewToolResultError("'to_session' is required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	if toSession == t.self.SessionID {
		return mcp.NewToolResultError("cannot send a message to yourself; use broadcast_message to reach everyone"), nil
	}

	res, err := t.store.SendMessage(ctx, hub.SendMessageParams{
		FromSession: t.self.SessionID,
		ToSession:   toSession,
		Content:     content,
		MessageType: req.GetString("message_type", "chat"),
	})
	if errors.Is(err, hub.ErrSessionNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no session %q; use list_active_sessions to see who is online", toSession)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send message: %v", err)), nil
	}

	target, _ := t.store.GetSession(ctx, toSession)
	rendered := fmt.Sprintf("📤 Message sent to %s\nMessage ID: %s\nConversation: %s",
		sessionLabel(target.SessionID, target.Platform, target.DisplayName),
		res.MessageID, res.ConversationID)
	return resultWith(rendered, res), nil
}

// ─── BroadcastTool ──────────────────────────────────────────────────────────

// BroadcastTool handles the broadcast_message MCP tool.
type BroadcastTool struct {
	store *hub.Store
	self  *platform.Identity
}

// NewBroadcastTool creates a BroadcastTool.
func NewBroadcastTool(store *hub.Store, self *platform.Identity) *BroadcastTool {
	return &BroadcastTool{store: store, self: self}
}

// Definition returns the MCP tool definition for broadcast_message.
func (t *BroadcastTool) Definition() mcp.Tool {
	return mcp.NewTool("broadcast_message",
		mcp.WithDescription(
			"Broadcast a message to every other active AI session at once. Good for "+
				"announcements, discovering who is around, or asking everyone a question.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Message content"),
		),
		mcp.WithString("message_type",
			mcp.Description("Kind of broadcast (default: announcement)"),
			mcp.Enum(hub.BroadcastMessageTypes...),
		),
	)
}

// Handle processes the broadcast_message tool call.
func (t *BroadcastTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	res, err := t.store.Broadcast(ctx, hub.BroadcastParams{
		FromSession: t.self.SessionID,
		Content:     content,
		MessageType: req.GetString("message_type", "announcement"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to broadcast: %v", err)), nil
	}

	rendered := fmt.Sprintf("📢 Broadcast sent to %d session(s)\nMessage ID: %s",
		len(res.Recipients), res.MessageID)
	if len(res.Recipients) == 0 {
		rendered = "📢 Broadcast stored, but no other sessions are active right now.\nMessage ID: " + res.MessageID
	}
	return resultWith(rendered, res), nil
}

// ─── CheckMessagesTool ──────────────────────────────────────────────────────

// CheckMessagesTool handles the check_messages MCP tool.
type CheckMessagesTool struct {
	store *hub.Store
	self  *platform.Identity
}

// NewCheckMessagesTool creates a CheckMessagesTool.
func NewCheckMessagesTool(store *hub.Store, self *platform.Identity) *CheckMessagesTool {
	return &CheckMessagesTool{store: store, self: self}
}

// Definition returns the MCP tool definition for check_messages.
func (t *CheckMessagesTool) Definition() mcp.Tool {
	return mcp.NewTool("check_messages",
		mcp.WithDescription(
			"Fetch unread messages addressed to this session, direct and broadcast. "+
				"Returned messages are marked read, so each message is delivered once. "+
				"Call this periodically to stay responsive to other sessions.",
		),
		mcp.WithBoolean("mark_as_read",
			mcp.Description("Mark the returned messages as read (default: true). Pass false to peek."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum messages to fetch (default: 20)"),
		),
	)
}

// Handle processes the check_messages tool call.
func (t *CheckMessagesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msgs, err := t.store.CheckMessages(ctx, hub.CheckMessagesParams{
		SessionID: t.self.SessionID,
		Limit:     intArg(req, "limit", 0),
		MarkRead:  boolArg(req, "mark_as_read", true),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check messages: %v", err)), nil
	}
	if msgs == nil {
		msgs = []hub.Message{}
	}
	return resultWith(renderIncoming(msgs), msgs), nil
}

// ─── ConversationTool ───────────────────────────────────────────────────────

// ConversationTool handles the get_conversation MCP tool.
type ConversationTool struct {
	store *hub.Store
	self  *platform.Identity
}

// NewConversationTool creates a ConversationTool.
func NewConversationTool(store *hub.Store, self *platform.Identity) *ConversationTool {
	return &ConversationTool{store: store, self: self}
}

// Definition returns the MCP tool definition for get_conversation.
func (t *ConversationTool) Definition() mcp.Tool {
	return mcp.NewTool("get_conversation",
		mcp.WithDescription(
			"Show the message history between this session and another one, oldest "+
				"first. Includes messages both sides already read.",
		),
		mcp.WithString("with_session",
			mcp.Required(),
			mcp.Description("Session id of the other participant"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum messages to show, counted from the most recent (default: 50)"),
		),
	)
}

// Handle processes the get_conversation tool call.
func (t *ConversationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	withSession := req.GetString("with_session", "")
	if withSession == "" {
		return mcp.NewToolResultError("'with_session' is required"), nil
	}

	view, err := t.store.Conversation(ctx, hub.ConversationParams{
		SessionID:   t.self.SessionID,
		WithSession: withSession,
		Limit:       intArg(req, "limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load conversation: %v", err)), nil
	}

	withLabel := withSession
	if other, err := t.store.GetSession(ctx, withSession); err == nil {
		withLabel = sessionLabel(other.SessionID, other.Platform, other.DisplayName)
	}
	return resultWith(renderConversation(view, withLabel), view), nil
}
