package chattools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/HendryAvila/crosstalk/internal/platform"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// CollaborationRequestTypes are the accepted request_type values.
var CollaborationRequestTypes = []string{"analyze", "generate", "research", "review", "debug", "explain", "custom"}

// RequestCollaborationTool handles the request_collaboration MCP tool.
type RequestCollaborationTool struct {
	store *hub.Store
	self  *platform.Identity
}

// NewRequestCollaborationTool creates a RequestCollaborationTool.
func NewRequestCollaborationTool(store *hub.Store, self *platform.Identity) *RequestCollaborationTool {
	return &RequestCollaborationTool{store: store, self: self}
}

// Definition returns the MCP tool definition for request_collaboration.
func (t *RequestCollaborationTool) Definition() mcp.Tool {
	return mcp.NewTool("request_collaboration",
		mcp.WithDescription(
			"Ask another AI platform for help without knowing a specific session id. "+
				"Picks the most recently active session on the target platform and sends "+
				"it a formatted collaboration request.",
		),
		mcp.WithString("target_platform",
			mcp.Required(),
			mcp.Description("Platform to ask for help"),
			mcp.Enum(platform.Keys()...),
		),
		mcp.WithString("request_type",
			mcp.Required(),
			mcp.Description("Kind of help requested"),
			mcp.Enum(CollaborationRequestTypes...),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("What you need from the other AI"),
		),
		mcp.WithString("context",
			mcp.Description("Additional context for the request"),
		),
	)
}

// CollaborationResult reports where a collaboration request went.
type CollaborationResult struct {
	RequestID      string `json:"request_id"`
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	TargetSession  string `json:"target_session"`
	TargetPlatform string `json:"target_platform"`
	TargetName     string `json:"target_name,omitempty"`
}

// Handle processes the request_collaboration tool call.
func (t *RequestCollaborationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targetPlatform := req.GetString("target_platform", "")
	requestType := req.GetString("request_type", "")
	content := req.GetString("content", "")
	if targetPlatform == "" {
		return mcp.NewToolResultError("'target_platform' is required"), nil
	}
	if requestType == "" {
		return mcp.NewToolResultError("'request_type' is required"), nil
	}
	if !validRequestType(requestType) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid request_type %q; one of: %s",
			requestType, strings.Join(CollaborationRequestTypes, ", "))), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	target, err := t.store.FindCollaborator(ctx, targetPlatform, t.self.SessionID)
	if errors.Is(err, hub.ErrNoActiveSession) {
		// Nobody home is an answer, not a failure of the tool.
		rendered := fmt.Sprintf("🤷 No active %s sessions found. Try broadcast_message to ask everyone, or check back later.", targetPlatform)
		return resultWith(rendered, struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}{"no_target", fmt.Sprintf("no active %s sessions found", targetPlatform)}), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to find collaborator: %v", err)), nil
	}

	requestID := uuid.NewString()[:8]
	body := formatCollaborationRequest(requestID, requestType, t.self, content, req.GetString("context", ""))

	res, err := t.store.SendMessage(ctx, hub.SendMessageParams{
		FromSession: t.self.SessionID,
		ToSession:   target.SessionID,
		Content:     body,
		MessageType: "request",
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send collaboration request: %v", err)), nil
	}

	rendered := fmt.Sprintf("🤝 Collaboration request #%s sent to %s\nType: %s\nMessage ID: %s",
		requestID, sessionLabel(target.SessionID, target.Platform, target.DisplayName),
		requestType, res.MessageID)
	return resultWith(rendered, CollaborationResult{
		RequestID:      requestID,
		MessageID:      res.MessageID,
		ConversationID: res.ConversationID,
		TargetSession:  target.SessionID,
		TargetPlatform: target.Platform,
		TargetName:     target.DisplayName,
	}), nil
}

func validRequestType(t string) bool {
	for _, r := range CollaborationRequestTypes {
		if t == r {
			return true
		}
	}
	return false
}

// formatCollaborationRequest builds the message body the target session
// reads. The request id lets the two sides correlate the eventual
// response with this request.
func formatCollaborationRequest(requestID, requestType string, from *platform.Identity, content, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[COLLABORATION REQUEST #%s]\n", requestID)
	fmt.Fprintf(&b, "Type: %s\n", requestType)
	fmt.Fprintf(&b, "From: %s (%s)\n\n", from.DisplayName, from.Platform)
	b.WriteString(content)
	if extra != "" {
		fmt.Fprintf(&b, "\n\nContext: %s", extra)
	}
	return b.String()
}
