package chattools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/HendryAvila/crosstalk/internal/platform"
	"github.com/HendryAvila/crosstalk/internal/search"
	"github.com/mark3labs/mcp-go/mcp"
)

// SetContextTool handles the set_shared_context MCP tool.
type SetContextTool struct {
	store *hub.Store
	index *search.Index
	self  *platform.Identity
}

// NewSetContextTool creates a SetContextTool.
func NewSetContextTool(store *hub.Store, index *search.Index, self *platform.Identity) *SetContextTool {
	return &SetContextTool{store: store, index: index, self: self}
}

// Definition returns the MCP tool definition for set_shared_context.
func (t *SetContextTool) Definition() mcp.Tool {
	return mcp.NewTool("set_shared_context",
		mcp.WithDescription(
			"Store a value in the shared context visible to all AI sessions. Writing "+
				"an existing key overwrites its content. Use keys like 'project/plan' "+
				"to keep things organized.",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Context key"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Content to store"),
		),
		mcp.WithString("context_type",
			mcp.Description("What kind of knowledge this is (default: general)"),
			mcp.Enum(hub.ContextTypes...),
		),
	)
}

// Handle processes the set_shared_context tool call.
func (t *SetContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	content := req.GetString("content", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	entry, err := t.store.SetContext(ctx, hub.SetContextParams{
		Key:         key,
		Content:     content,
		CreatedBy:   t.self.SessionID,
		Platform:    t.self.Platform,
		ContextType: req.GetString("context_type", "general"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set context: %v", err)), nil
	}

	rendered := fmt.Sprintf("💾 Shared context saved.\nKey: %s\nUpdated: %s", entry.Key, entry.UpdatedAt)

	// Indexing is best effort: a missing or unhappy embedding backend
	// must never make the write look failed.
	if err := t.index.IndexDocument(ctx, search.Document{
		ContextID:   entry.ContextID,
		Key:         entry.Key,
		Content:     entry.Content,
		Platform:    entry.Platform,
		ContextType: entry.ContextType,
	}); err != nil {
		rendered += fmt.Sprintf("\n⚠️ semantic index not updated: %v", err)
	}

	return resultWith(rendered, entry), nil
}

// ─── GetContextTool ─────────────────────────────────────────────────────────

// GetContextTool handles the get_shared_context MCP tool.
type GetContextTool struct {
	store *hub.Store
}

// NewGetContextTool creates a GetContextTool.
func NewGetContextTool(store *hub.Store) *GetContextTool {
	return &GetContextTool{store: store}
}

// Definition returns the MCP tool definition for get_shared_context.
func (t *GetContextTool) Definition() mcp.Tool {
	return mcp.NewTool("get_shared_context",
		mcp.WithDescription(
			"Read a shared context entry by key. Reading counts toward the entry's "+
				"access count.",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Context key to read"),
		),
	)
}

// Handle processes the get_shared_context tool call.
func (t *GetContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}

	entry, err := t.store.GetContext(ctx, key)
	if errors.Is(err, hub.ErrContextNotFound) {
		// Not-found is an answer, not an error.
		return resultWith(fmt.Sprintf("No shared context stored under %q.", key), struct {
			Status string `json:"status"`
			Key    string `json:"key"`
		}{"not_found", key}), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get context: %v", err)), nil
	}
	return resultWith(renderContextEntry(entry), entry), nil
}

// ─── ListContextTool ────────────────────────────────────────────────────────

// ListContextTool handles the list_shared_context MCP tool.
type ListContextTool struct {
	store *hub.Store
}

// NewListContextTool creates a ListContextTool.
func NewListContextTool(store *hub.Store) *ListContextTool {
	return &ListContextTool{store: store}
}

// Definition returns the MCP tool definition for list_shared_context.
func (t *ListContextTool) Definition() mcp.Tool {
	return mcp.NewTool("list_shared_context",
		mcp.WithDescription(
			"List shared context entries with content previews, most recently updated "+
				"first. Listing does not bump access counts.",
		),
		mcp.WithString("key_prefix",
			mcp.Description("Only show keys starting with this prefix"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to show (default: 50)"),
		),
	)
}

// Handle processes the list_shared_context tool call.
func (t *ListContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Listing is best effort; a store failure reads as an empty hub.
	entries, err := t.store.ListContext(ctx, hub.ListContextParams{
		KeyPrefix: req.GetString("key_prefix", ""),
		Limit:     intArg(req, "limit", 0),
	})
	if err != nil || entries == nil {
		entries = []hub.ContextEntry{}
	}
	return resultWith(renderContextList(entries), entries), nil
}

// ─── SearchContextTool ──────────────────────────────────────────────────────

// SearchContextTool handles the search_shared_context MCP tool.
type SearchContextTool struct {
	store *hub.Store
	index *search.Index
}

// NewSearchContextTool creates a SearchContextTool.
func NewSearchContextTool(store *hub.Store, index *search.Index) *SearchContextTool {
	return &SearchContextTool{store: store, index: index}
}

// Definition returns the MCP tool definition for search_shared_context.
func (t *SearchContextTool) Definition() mcp.Tool {
	return mcp.NewTool("search_shared_context",
		mcp.WithDescription(
			"Search shared context entries by meaning rather than exact key. Requires "+
				"an embedding provider; without one the search returns no results.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language query"),
		),
		mcp.WithString("platform_filter",
			mcp.Description("Only consider entries written by sessions on this platform"),
			mcp.Enum(platform.Keys()...),
		),
		mcp.WithString("context_type",
			mcp.Description("Only consider entries of this type"),
			mcp.Enum(hub.ContextTypes...),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum results (default: 10)"),
		),
	)
}

// Handle processes the search_shared_context tool call.
func (t *SearchContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	if !t.index.Enabled() {
		return resultWith(
			"Semantic search is disabled: no embedding provider configured. "+
				"Set an embed provider in the config to enable it.",
			[]search.Result{}), nil
	}

	results, err := t.index.Search(ctx, search.Query{
		Text:        query,
		TopK:        intArg(req, "top_k", 10),
		Platform:    req.GetString("platform_filter", ""),
		ContextType: req.GetString("context_type", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return resultWith("No matching shared context entries.", []search.Result{}), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top %d match(es):\n\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "  🔑 %s  (score %.3f)\n", r.Key, r.Score)
		if entry, err := t.store.PeekContext(ctx, r.Key); err == nil {
			fmt.Fprintf(&b, "     %s\n", hub.Truncate(entry.Content, 100))
		}
	}
	return resultWith(strings.TrimRight(b.String(), "\n"), results), nil
}
