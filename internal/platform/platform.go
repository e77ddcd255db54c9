// Package platform holds the static catalog of known AI platforms and
// the rules for deriving a stable session identity for this process.
//
// The catalog is a pure lookup table: unknown platform keys resolve to
// the generic "custom" entry instead of failing, so a new CLI can join
// the hub without a code change here.
package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Info describes one known AI platform.
type Info struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Vendor string `json:"vendor"`
	Color  string `json:"color"`
	Icon   string `json:"icon"`
}

// catalog is ordered so renderings are deterministic.
var catalog = []Info{
	{Key: "claude-code", Name: "Claude Code", Vendor: "Anthropic", Color: "#DA7756", Icon: "🟠"},
	{Key: "codex-cli", Name: "OpenAI Codex CLI", Vendor: "OpenAI", Color: "#10A37F", Icon: "🟢"},
	{Key: "gemini-cli", Name: "Gemini CLI", Vendor: "Google", Color: "#4285F4", Icon: "🔵"},
	{Key: "ollama", Name: "Ollama", Vendor: "Local", Color: "#FFFFFF", Icon: "⚪"},
	{Key: "custom", Name: "Custom AI", Vendor: "Custom", Color: "#9B59B6", Icon: "🟣"},
}

// Catalog returns all known platforms in stable order.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Keys returns the platform keys in catalog order, for tool schema enums.
func Keys() []string {
	keys := make([]string, len(catalog))
	for i, p := range catalog {
		keys[i] = p.Key
	}
	return keys
}

// Lookup resolves a platform key to its catalog entry. Unknown keys
// resolve to the "custom" entry.
func Lookup(key string) Info {
	for _, p := range catalog {
		if p.Key == key {
			return p
		}
	}
	return catalog[len(catalog)-1]
}

// Known reports whether key is a catalog platform.
func Known(key string) bool {
	for _, p := range catalog {
		if p.Key == key {
			return true
		}
	}
	return false
}

// DeriveSessionID computes a stable session identifier from the process
// id and a start timestamp. Both inputs are explicit so tests can pin
// them; the result is the first 12 hex chars of a sha256 digest.
func DeriveSessionID(pid int, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d-%s", pid, at.Format(time.RFC3339Nano))))
	return hex.EncodeToString(sum[:])[:12]
}

// Identity is the caller identity for this process, established once at
// startup and reused by every tool invocation.
type Identity struct {
	SessionID   string `json:"session_id"`
	Platform    string `json:"platform"`
	DisplayName string `json:"display_name"`
	NodeID      string `json:"node_id"`
}

// IdentityOptions are the override inputs for NewIdentity. Empty fields
// fall back to derived defaults.
type IdentityOptions struct {
	SessionID   string
	Platform    string
	DisplayName string
	NodeID      string
	PID         int
	StartedAt   time.Time
}

// NewIdentity builds the process identity. An explicit SessionID wins;
// otherwise the id is derived from PID and StartedAt.
func NewIdentity(opts IdentityOptions) Identity {
	id := opts.SessionID
	if id == "" {
		id = DeriveSessionID(opts.PID, opts.StartedAt)
	}

	plat := opts.Platform
	if plat == "" {
		plat = "claude-code"
	}

	name := opts.DisplayName
	if name == "" {
		name = DefaultDisplayName(plat, id)
	}

	node := opts.NodeID
	if node == "" {
		node = "local"
	}

	return Identity{
		SessionID:   id,
		Platform:    plat,
		DisplayName: name,
		NodeID:      node,
	}
}

// DefaultDisplayName builds the fallback display name from a platform
// key and a session id prefix.
func DefaultDisplayName(platformKey, sessionID string) string {
	short := sessionID
	if len(short) > 6 {
		short = short[:6]
	}
	return fmt.Sprintf("%s-%s", platformKey, short)
}
