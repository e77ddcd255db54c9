// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it resolves the caller's identity, opens
// the hub store and the optional semantic index, and injects them into
// the tools. No business logic lives here — only wiring.
package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/HendryAvila/crosstalk/internal/chattools"
	"github.com/HendryAvila/crosstalk/internal/config"
	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/HendryAvila/crosstalk/internal/platform"
	"github.com/HendryAvila/crosstalk/internal/search"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all chat tools
// registered. The returned cleanup function closes the hub store and
// the semantic index and must be called on shutdown (typically via
// defer). It is always non-nil.
func New(cfg config.Config, logger *zap.Logger) (*server.MCPServer, func(), error) {
	identity := platform.NewIdentity(platform.IdentityOptions{
		SessionID:   cfg.SessionID,
		Platform:    cfg.Platform,
		DisplayName: cfg.DisplayName,
		NodeID:      cfg.NodeID,
		PID:         os.Getpid(),
		StartedAt:   time.Now(),
	})
	self := &identity
	logger.Info("session identity resolved",
		zap.String("session_id", self.SessionID),
		zap.String("platform", self.Platform),
		zap.String("display_name", self.DisplayName))

	storeCfg := hub.DefaultConfig()
	storeCfg.DataDir = cfg.DataDir
	store, err := hub.Open(storeCfg)
	if err != nil {
		return nil, noop, fmt.Errorf("opening hub store: %w", err)
	}

	if err := store.ReloadIndex(context.Background()); err != nil {
		logger.Warn("session index reload failed", zap.Error(err))
	}

	// Semantic search is an independent subsystem: if the embedding
	// backend is missing or misconfigured, chat and shared context keep
	// working and search just answers with no results.
	var index *search.Index
	embedder, err := search.NewEmbedder(search.EmbedderConfig{
		Provider: cfg.Embed.Provider,
		Model:    cfg.Embed.Model,
		BaseURL:  cfg.Embed.BaseURL,
		APIKey:   cfg.Embed.APIKey,
	})
	if err != nil {
		logger.Warn("semantic search disabled", zap.Error(err))
	} else if embedder != nil {
		index, err = search.OpenIndex(cfg.DataDir, embedder)
		if err != nil {
			logger.Warn("semantic search disabled", zap.Error(err))
			index = nil
		} else {
			logger.Info("semantic search enabled", zap.String("embedder", embedder.Name()))
		}
	}

	// Backfill vectors for entries written while no embedder was
	// configured. Unchanged entries are hash-skipped, so this is cheap
	// on every startup.
	if index.Enabled() {
		entries, err := store.AllContext(context.Background())
		if err != nil {
			logger.Warn("vector backfill skipped", zap.Error(err))
		} else {
			docs := make([]search.Document, 0, len(entries))
			for _, e := range entries {
				docs = append(docs, search.Document{
					ContextID:   e.ContextID,
					Key:         e.Key,
					Content:     e.Content,
					Platform:    e.Platform,
					ContextType: e.ContextType,
				})
			}
			if n, err := index.Reindex(context.Background(), docs); err != nil {
				logger.Warn("vector backfill incomplete", zap.Error(err))
			} else if n > 0 {
				logger.Info("vector backfill complete", zap.Int("embedded", n))
			}
		}
	}

	cleanup := func() {
		if err := index.Close(); err != nil {
			logger.Warn("vector index close", zap.Error(err))
		}
		if err := store.Close(); err != nil {
			logger.Warn("hub store close", zap.Error(err))
		}
	}

	s := server.NewMCPServer(
		"crosstalk",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Session tools ---

	registerTool := chattools.NewRegisterSessionTool(store, self)
	s.AddTool(registerTool.Definition(), registerTool.Handle)

	listTool := chattools.NewListSessionsTool(store, self)
	s.AddTool(listTool.Definition(), listTool.Handle)

	platformInfo := chattools.NewPlatformInfoTool(self)
	s.AddTool(platformInfo.Definition(), platformInfo.Handle)

	myInfo := chattools.NewMySessionInfoTool(store, self)
	s.AddTool(myInfo.Definition(), myInfo.Handle)

	// --- Messaging tools ---

	sendTool := chattools.NewSendMessageTool(store, self)
	s.AddTool(sendTool.Definition(), sendTool.Handle)

	broadcastTool := chattools.NewBroadcastTool(store, self)
	s.AddTool(broadcastTool.Definition(), broadcastTool.Handle)

	checkTool := chattools.NewCheckMessagesTool(store, self)
	s.AddTool(checkTool.Definition(), checkTool.Handle)

	conversationTool := chattools.NewConversationTool(store, self)
	s.AddTool(conversationTool.Definition(), conversationTool.Handle)

	collabTool := chattools.NewRequestCollaborationTool(store, self)
	s.AddTool(collabTool.Definition(), collabTool.Handle)

	// --- Shared context tools ---

	setCtx := chattools.NewSetContextTool(store, index, self)
	s.AddTool(setCtx.Definition(), setCtx.Handle)

	getCtx := chattools.NewGetContextTool(store)
	s.AddTool(getCtx.Definition(), getCtx.Handle)

	listCtx := chattools.NewListContextTool(store)
	s.AddTool(listCtx.Definition(), listCtx.Handle)

	searchCtx := chattools.NewSearchContextTool(store, index)
	s.AddTool(searchCtx.Definition(), searchCtx.Handle)

	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails early.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to collaborate through crosstalk.
func serverInstructions() string {
	return `You have access to crosstalk, a local chat hub that connects AI
sessions running on this machine (Claude Code, Codex CLI, Gemini CLI,
Ollama, and others) so they can message each other and share knowledge.

## Getting started
1. Call register_session once at the start of the session. Without it
   other sessions cannot find or message you.
2. Call list_active_sessions to see who else is online. Session ids from
   that list are the targets for send_message and get_conversation.

## Messaging
- send_message delivers a direct message to one session. Delivery is
  pull-based: the target sees it on its next check_messages call.
- broadcast_message reaches every other active session at once. Use it
  for announcements or to discover who can help with something.
- Call check_messages periodically, especially when you are waiting for
  a reply. Returned messages are marked read, so act on them; they will
  not show up again.
- get_conversation shows the full history with one session, including
  what you sent.

## Asking other AIs for help
request_collaboration picks an active session on a target platform for
you and sends it a structured request. Reply to collaboration requests
with send_message using message_type "response" so the requester can
correlate your answer.

## Shared context
set_shared_context / get_shared_context / list_shared_context maintain a
key-value knowledge base visible to every session. Use it for project
state, decisions, and handoff notes that should outlive any single
conversation. Prefer structured keys like "project/plan" or
"decisions/auth". search_shared_context finds entries by meaning when an
embedding provider is configured.

## Etiquette
- Register before anything else; re-registering is harmless.
- Check messages before long-running work so requests do not go stale.
- Keep broadcast traffic low; prefer direct messages once you know who
  you are talking to.`
}
