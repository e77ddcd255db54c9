package platform

import (
	"strings"
	"testing"
	"time"
)

func TestLookupKnownPlatforms(t *testing.T) {
	cases := []struct {
		key    string
		vendor string
		icon   string
	}{
		{"claude-code", "Anthropic", "🟠"},
		{"codex-cli", "OpenAI", "🟢"},
		{"gemini-cli", "Google", "🔵"},
		{"ollama", "Local", "⚪"},
		{"custom", "Custom", "🟣"},
	}

	for _, tc := range cases {
		info := Lookup(tc.key)
		if info.Key != tc.key {
			t.Errorf("Lookup(%q).Key = %q", tc.key, info.Key)
		}
		if info.Vendor != tc.vendor {
			t.Errorf("Lookup(%q).Vendor = %q, want %q", tc.key, info.Vendor, tc.vendor)
		}
		if info.Icon != tc.icon {
			t.Errorf("Lookup(%q).Icon = %q, want %q", tc.key, info.Icon, tc.icon)
		}
	}
}

func TestLookupUnknownFallsBackToCustom(t *testing.T) {
	info := Lookup("some-future-cli")
	if info.Key != "custom" {
		t.Errorf("unknown platform resolved to %q, want custom", info.Key)
	}
	if Known("some-future-cli") {
		t.Error("Known should be false for unknown platform")
	}
}

func TestDeriveSessionIDDeterministic(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	a := DeriveSessionID(4242, at)
	b := DeriveSessionID(4242, at)
	if a != b {
		t.Errorf("same inputs produced different ids: %q vs %q", a, b)
	}
	if len(a) != 12 {
		t.Errorf("id length = %d, want 12", len(a))
	}

	c := DeriveSessionID(4243, at)
	if c == a {
		t.Error("different pid should produce a different id")
	}
	d := DeriveSessionID(4242, at.Add(time.Nanosecond))
	if d == a {
		t.Error("different timestamp should produce a different id")
	}
}

func TestNewIdentityOverrides(t *testing.T) {
	ident := NewIdentity(IdentityOptions{
		SessionID:   "fixed-id-0001",
		Platform:    "codex-cli",
		DisplayName: "Reviewer",
		NodeID:      "workstation",
	})

	if ident.SessionID != "fixed-id-0001" {
		t.Errorf("SessionID = %q", ident.SessionID)
	}
	if ident.Platform != "codex-cli" || ident.DisplayName != "Reviewer" || ident.NodeID != "workstation" {
		t.Errorf("overrides not applied: %+v", ident)
	}
}

func TestNewIdentityDefaults(t *testing.T) {
	ident := NewIdentity(IdentityOptions{
		PID:       99,
		StartedAt: time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
	})

	if ident.Platform != "claude-code" {
		t.Errorf("default platform = %q", ident.Platform)
	}
	if ident.NodeID != "local" {
		t.Errorf("default node = %q", ident.NodeID)
	}
	if !strings.HasPrefix(ident.DisplayName, "claude-code-") {
		t.Errorf("default display name = %q", ident.DisplayName)
	}
	if !strings.Contains(ident.DisplayName, ident.SessionID[:6]) {
		t.Errorf("display name %q should embed the short session id", ident.DisplayName)
	}
}

func TestKeysMatchCatalog(t *testing.T) {
	keys := Keys()
	cat := Catalog()
	if len(keys) != len(cat) {
		t.Fatalf("len(Keys()) = %d, len(Catalog()) = %d", len(keys), len(cat))
	}
	for i := range cat {
		if keys[i] != cat[i].Key {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], cat[i].Key)
		}
	}
}
