package search

import (
	"context"
	"fmt"
	"testing"
)

// stubEmbedder maps known texts to fixed vectors so index behavior can
// be tested without a live provider.
type stubEmbedder struct {
	vectors map[string]Vector
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	s.calls++
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("stub embedder: unknown text %q", text)
}

func (s *stubEmbedder) Dims() int    { return 3 }
func (s *stubEmbedder) Name() string { return "stub" }

func TestCosineSimilarity(t *testing.T) {
	a := Vector{1, 0, 0}
	if got := CosineSimilarity(a, Vector{1, 0, 0}); got < 0.999 {
		t.Errorf("identical vectors score %f, want ~1", got)
	}
	if got := CosineSimilarity(a, Vector{0, 1, 0}); got != 0 {
		t.Errorf("orthogonal vectors score %f, want 0", got)
	}
	if got := CosineSimilarity(a, Vector{-1, 0, 0}); got > -0.999 {
		t.Errorf("opposite vectors score %f, want ~-1", got)
	}
	if got := CosineSimilarity(a, Vector{1, 0}); got != 0 {
		t.Errorf("mismatched dims score %f, want 0", got)
	}
	if got := CosineSimilarity(Vector{0, 0, 0}, a); got != 0 {
		t.Errorf("zero vector score %f, want 0", got)
	}
}

func TestNilIndexIsNoOp(t *testing.T) {
	var ix *Index
	ctx := context.Background()

	if ix.Enabled() {
		t.Error("nil index reports enabled")
	}
	if err := ix.IndexDocument(ctx, Document{ContextID: "c1", Key: "k", Content: "v"}); err != nil {
		t.Errorf("IndexDocument on nil index: %v", err)
	}
	results, err := ix.Search(ctx, Query{Text: "anything", TopK: 5})
	if err != nil {
		t.Errorf("Search on nil index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("nil index returned results: %+v", results)
	}
	if err := ix.Close(); err != nil {
		t.Errorf("Close on nil index: %v", err)
	}
}

func TestOpenIndexDisabledWithoutEmbedder(t *testing.T) {
	ix, err := OpenIndex(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	if ix != nil {
		t.Fatal("expected nil index when no embedder is configured")
	}
}

func TestIndexAndSearchRanking(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string]Vector{
		"topic/db\nsqlite tuning notes": {1, 0, 0},
		"topic/api\nrest api shapes":    {0, 1, 0},
		"database performance":          {0.9, 0.1, 0},
	}}
	ix, err := OpenIndex(t.TempDir(), emb)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()
	ctx := context.Background()

	docs := []Document{
		{ContextID: "c1", Key: "topic/db", Content: "sqlite tuning notes", Platform: "claude-code", ContextType: "discovery"},
		{ContextID: "c2", Key: "topic/api", Content: "rest api shapes", Platform: "codex-cli", ContextType: "decision"},
	}
	for _, d := range docs {
		if err := ix.IndexDocument(ctx, d); err != nil {
			t.Fatalf("IndexDocument(%s): %v", d.Key, err)
		}
	}

	results, err := ix.Search(ctx, Query{Text: "database performance"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Key != "topic/db" {
		t.Errorf("top result = %s, want topic/db", results[0].Key)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("results not sorted by score: %+v", results)
	}

	top, err := ix.Search(ctx, Query{Text: "database performance", TopK: 1})
	if err != nil {
		t.Fatalf("Search topK=1: %v", err)
	}
	if len(top) != 1 {
		t.Errorf("topK=1 returned %d results", len(top))
	}

	byPlatform, err := ix.Search(ctx, Query{Text: "database performance", Platform: "codex-cli"})
	if err != nil {
		t.Fatalf("Search platform filter: %v", err)
	}
	if len(byPlatform) != 1 || byPlatform[0].Key != "topic/api" {
		t.Errorf("platform filter not applied: %+v", byPlatform)
	}

	byType, err := ix.Search(ctx, Query{Text: "database performance", ContextType: "discovery"})
	if err != nil {
		t.Fatalf("Search type filter: %v", err)
	}
	if len(byType) != 1 || byType[0].Key != "topic/db" {
		t.Errorf("context type filter not applied: %+v", byType)
	}
	if byType[0].Platform != "claude-code" || byType[0].ContextType != "discovery" {
		t.Errorf("result metadata not carried: %+v", byType[0])
	}
}

func TestIndexSkipsUnchangedContent(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string]Vector{
		"k\nsame content": {1, 0, 0},
	}}
	ix, err := OpenIndex(t.TempDir(), emb)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()
	ctx := context.Background()

	doc := Document{ContextID: "c1", Key: "k", Content: "same content"}
	if err := ix.IndexDocument(ctx, doc); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if err := ix.IndexDocument(ctx, doc); err != nil {
		t.Fatalf("IndexDocument repeat: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("embedder called %d times for unchanged content, want 1", emb.calls)
	}

	n, err := ix.Reindex(ctx, []Document{doc})
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if n != 0 {
		t.Errorf("Reindex re-embedded %d unchanged docs", n)
	}
}

func TestNewEmbedderSelection(t *testing.T) {
	if e, err := NewEmbedder(EmbedderConfig{}); err != nil || e != nil {
		t.Errorf("empty provider: got (%v, %v), want disabled", e, err)
	}
	e, err := NewEmbedder(EmbedderConfig{Provider: "ollama", Model: "all-minilm"})
	if err != nil {
		t.Fatalf("ollama provider: %v", err)
	}
	if e.Dims() != 384 {
		t.Errorf("all-minilm dims = %d, want 384", e.Dims())
	}
	if _, err := NewEmbedder(EmbedderConfig{Provider: "openai"}); err == nil {
		t.Error("openai without key should fail")
	}
	if _, err := NewEmbedder(EmbedderConfig{Provider: "martian"}); err == nil {
		t.Error("unknown provider should fail")
	}
}
