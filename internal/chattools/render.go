package chattools

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/HendryAvila/crosstalk/internal/platform"
)

func platformBadge(key string) string {
	info := platform.Lookup(key)
	return fmt.Sprintf("%s %s", info.Icon, info.Name)
}

func sessionLabel(sessionID, platformKey, displayName string) string {
	name := displayName
	if name == "" {
		name = sessionID
	}
	return fmt.Sprintf("%s %s (%s)", platformBadge(platformKey), name, sessionID)
}

func renderSessions(sessions []hub.Session, selfID string) string {
	if len(sessions) == 0 {
		return "No active sessions. You are the first one here."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active sessions (%d):\n\n", len(sessions))
	for _, s := range sessions {
		marker := ""
		if s.SessionID == selfID {
			marker = " (You)"
		}
		fmt.Fprintf(&b, "  %s%s\n", sessionLabel(s.SessionID, s.Platform, s.DisplayName), marker)
		fmt.Fprintf(&b, "    last active: %s", s.LastActive)
		if s.NodeID != "" {
			fmt.Fprintf(&b, "  node: %s", s.NodeID)
		}
		if len(s.Capabilities) > 0 {
			fmt.Fprintf(&b, "  can help with: %s", strings.Join(s.Capabilities, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderIncoming(msgs []hub.Message) string {
	if len(msgs) == 0 {
		return "📭 No new messages."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📬 %d new message(s):\n", len(msgs))
	for _, m := range msgs {
		b.WriteString("\n")
		scope := "direct"
		if m.Broadcast {
			scope = "broadcast"
		}
		fmt.Fprintf(&b, "From: %s\n", sessionLabel(m.FromSession, m.FromPlatform, m.FromName))
		fmt.Fprintf(&b, "Type: %s (%s)  Time: %s\n", m.MessageType, scope, m.Timestamp)
		fmt.Fprintf(&b, "%s\n", m.Content)
		b.WriteString("---\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderConversation(view hub.ConversationView, withLabel string) string {
	if view.ConversationID == "" || len(view.Messages) == 0 {
		return fmt.Sprintf("No conversation with %s yet.", withLabel)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation with %s (%d message(s)):\n\n", withLabel, len(view.Messages))
	for _, m := range view.Messages {
		who := sessionLabel(m.FromSession, m.FromPlatform, m.FromName)
		if m.IsMe {
			who = "You"
		}
		fmt.Fprintf(&b, "[%s] %s:\n%s\n\n", m.Timestamp, who, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderContextList(entries []hub.ContextEntry) string {
	if len(entries) == 0 {
		return "No shared context entries yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Shared context (%d entries):\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "  🔑 %s", e.Key)
		if e.ContextType != "" && e.ContextType != "general" {
			fmt.Fprintf(&b, "  [%s]", e.ContextType)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "     %s\n", e.Content)
		fmt.Fprintf(&b, "     updated %s", e.UpdatedAt)
		if e.CreatedBy != "" {
			fmt.Fprintf(&b, " by %s", e.CreatedBy)
		}
		fmt.Fprintf(&b, "  (read %d time(s))\n", e.AccessCount)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderContextEntry(e hub.ContextEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔑 %s\n\n%s\n\n", e.Key, e.Content)
	if e.CreatedBy != "" {
		fmt.Fprintf(&b, "Created by: %s\n", e.CreatedBy)
	}
	fmt.Fprintf(&b, "Updated: %s  Reads: %d", e.UpdatedAt, e.AccessCount)
	return b.String()
}
