package chattools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/HendryAvila/crosstalk/internal/platform"
	"github.com/mark3labs/mcp-go/mcp"
)

// RegisterSessionTool handles the register_session MCP tool.
type RegisterSessionTool struct {
	store *hub.Store
	self  *platform.Identity
}

// NewRegisterSessionTool creates a RegisterSessionTool.
func NewRegisterSessionTool(store *hub.Store, self *platform.Identity) *RegisterSessionTool {
	return &RegisterSessionTool{store: store, self: self}
}

// Definition returns the MCP tool definition for register_session.
func (t *RegisterSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("register_session",
		mcp.WithDescription(
			"Register this AI session with the chat hub so other sessions can discover "+
				"and message it. Safe to call repeatedly; re-registration just refreshes "+
				"the session.",
		),
		mcp.WithString("platform",
			mcp.Description("AI platform of this session"),
			mcp.Enum(platform.Keys()...),
		),
		mcp.WithString("display_name",
			mcp.Description("Human-friendly name shown to other sessions"),
		),
		mcp.WithArray("capabilities",
			mcp.Description("What this session can help with, e.g. [\"code_review\", \"research\"]"),
			mcp.Items(map[string]interface{}{"type": "string"}),
		),
	)
}

// Handle processes the register_session tool call.
func (t *RegisterSessionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if p := req.GetString("platform", ""); p != "" {
		t.self.Platform = p
	}
	if n := req.GetString("display_name", ""); n != "" {
		t.self.DisplayName = n
	}

	sess, err := t.store.RegisterSession(ctx, hub.RegisterSessionParams{
		SessionID:    t.self.SessionID,
		Platform:     t.self.Platform,
		DisplayName:  t.self.DisplayName,
		NodeID:       t.self.NodeID,
		Capabilities: stringsArg(req, "capabilities"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to register session: %v", err)), nil
	}

	rendered := fmt.Sprintf("✅ Session registered!\n\n%s\nRegistered: %s",
		sessionLabel(sess.SessionID, sess.Platform, sess.DisplayName), sess.RegisteredAt)
	return resultWith(rendered, sess), nil
}

// ─── ListSessionsTool ───────────────────────────────────────────────────────

// ListSessionsTool handles the list_active_sessions MCP tool.
type ListSessionsTool struct {
	store *hub.Store
	self  *platform.Identity
}

// NewListSessionsTool creates a ListSessionsTool.
func NewListSessionsTool(store *hub.Store, self *platform.Identity) *ListSessionsTool {
	return &ListSessionsTool{store: store, self: self}
}

// Definition returns the MCP tool definition for list_active_sessions.
func (t *ListSessionsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_active_sessions",
		mcp.WithDescription(
			"List all AI sessions currently registered with the hub, including this one. "+
				"Use the session ids from this list as targets for send_message.",
		),
		mcp.WithString("platform_filter",
			mcp.Description("Only show sessions on this platform"),
			mcp.Enum(platform.Keys()...),
		),
	)
}

// Handle processes the list_active_sessions tool call.
func (t *ListSessionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Discovery degrades to an empty listing when the store is
	// unreachable; only writes surface store errors.
	sessions, err := t.store.ActiveSessions(ctx, req.GetString("platform_filter", ""))
	if err != nil {
		sessions = nil
	}
	if sessions == nil {
		sessions = []hub.Session{}
	}
	return resultWith(renderSessions(sessions, t.self.SessionID), sessions), nil
}

// ─── PlatformInfoTool ───────────────────────────────────────────────────────

// PlatformInfoTool handles the get_platform_info MCP tool.
type PlatformInfoTool struct {
	self *platform.Identity
}

// NewPlatformInfoTool creates a PlatformInfoTool.
func NewPlatformInfoTool(self *platform.Identity) *PlatformInfoTool {
	return &PlatformInfoTool{self: self}
}

// Definition returns the MCP tool definition for get_platform_info.
func (t *PlatformInfoTool) Definition() mcp.Tool {
	return mcp.NewTool("get_platform_info",
		mcp.WithDescription(
			"Show the catalog of known AI platforms with their display styling, and "+
				"which platform this session runs on.",
		),
	)
}

// Handle processes the get_platform_info tool call.
func (t *PlatformInfoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog := platform.Catalog()

	var b strings.Builder
	fmt.Fprintf(&b, "This session: %s\n\nKnown platforms:\n", platformBadge(t.self.Platform))
	for _, info := range catalog {
		fmt.Fprintf(&b, "  %s %s  key=%s  color=%s  vendor=%s\n",
			info.Icon, info.Name, info.Key, info.Color, info.Vendor)
	}

	payload := struct {
		Current   platform.Info   `json:"current"`
		Platforms []platform.Info `json:"platforms"`
	}{platform.Lookup(t.self.Platform), catalog}
	return resultWith(strings.TrimRight(b.String(), "\n"), payload), nil
}

// ─── MySessionInfoTool ──────────────────────────────────────────────────────

// MySessionInfoTool handles the get_my_session_info MCP tool.
type MySessionInfoTool struct {
	store *hub.Store
	self  *platform.Identity
}

// NewMySessionInfoTool creates a MySessionInfoTool.
func NewMySessionInfoTool(store *hub.Store, self *platform.Identity) *MySessionInfoTool {
	return &MySessionInfoTool{store: store, self: self}
}

// Definition returns the MCP tool definition for get_my_session_info.
func (t *MySessionInfoTool) Definition() mcp.Tool {
	return mcp.NewTool("get_my_session_info",
		mcp.WithDescription(
			"Show this session's own identity: session id, platform, display name, "+
				"registration time, and how many unread messages are waiting.",
		),
	)
}

// Handle processes the get_my_session_info tool call.
func (t *MySessionInfoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := t.store.GetSession(ctx, t.self.SessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session not registered yet, call register_session first: %v", err)), nil
	}

	unread, err := t.store.UnreadCount(ctx, t.self.SessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count unread messages: %v", err)), nil
	}

	rendered := fmt.Sprintf("%s\nNode: %s\nRegistered: %s\nLast active: %s\nUnread messages: %d",
		sessionLabel(sess.SessionID, sess.Platform, sess.DisplayName),
		sess.NodeID, sess.RegisteredAt, sess.LastActive, unread)

	payload := struct {
		hub.Session
		Unread int `json:"unread_messages"`
	}{sess, unread}
	return resultWith(rendered, payload), nil
}
