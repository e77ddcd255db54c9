// Package search provides optional semantic search over the shared
// context store. Entries are embedded with a pluggable provider and
// stored as vectors in a sidecar database; when no provider is
// configured the whole package degrades to a no-op and the rest of the
// system works unchanged.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
)

// Vector is an embedding vector.
type Vector []float32

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
	Name() string
}

// EmbedderConfig selects and configures an embedding provider.
type EmbedderConfig struct {
	Provider string // "ollama", "openai", or "" for disabled
	Model    string
	BaseURL  string
	APIKey   string
}

// NewEmbedder builds an embedder from config. A nil return with nil
// error means semantic search is disabled.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("search: openai provider requires an API key")
		}
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("search: unknown embedding provider %q", cfg.Provider)
	}
}

// ─── Ollama ──────────────────────────────────────────────────────────────────

// OllamaEmbedder embeds text via a local Ollama server.
type OllamaEmbedder struct {
	host   string
	model  string
	dims   int
	client *http.Client
}

// NewOllamaEmbedder creates an Ollama-backed embedder. Host falls back
// to OLLAMA_HOST, then localhost; model falls back to nomic-embed-text.
func NewOllamaEmbedder(host, model string) *OllamaEmbedder {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	dims := 768
	if strings.Contains(model, "minilm") {
		dims = 384
	}
	return &OllamaEmbedder{
		host:   strings.TrimSuffix(host, "/"),
		model:  model,
		dims:   dims,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Name() string { return "ollama/" + e.model }
func (e *OllamaEmbedder) Dims() int    { return e.dims }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, err := json.Marshal(map[string]string{"model": e.model, "prompt": text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama embed: decode: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for model %s", e.model)
	}
	return out.Embedding, nil
}

// ─── OpenAI ──────────────────────────────────────────────────────────────────

// OpenAIEmbedder embeds text via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	apiKey string
	model  string
	client *http.Client
}

// NewOpenAIEmbedder creates an OpenAI-backed embedder. Model falls back
// to text-embedding-3-small.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OpenAIEmbedder) Name() string { return "openai/" + e.model }
func (e *OpenAIEmbedder) Dims() int    { return 1536 }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, err := json.Marshal(map[string]string{"model": e.model, "input": text})
	if err != nil {
		return nil, fmt.Errorf("openai embed: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("openai embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai embed: decode: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed: empty embedding for model %s", e.model)
	}
	return out.Data[0].Embedding, nil
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
