// Package embedder provides embedder.Embedder implementations: an
// Ollama-backed collaborator for production use, and a deterministic
// in-process double for tests.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/synapsegraph/synapse/internal/ratelimit"
	"github.com/synapsegraph/synapse/pkg/config"
)

// Ollama embeds text via a local Ollama server's /api/embeddings route.
// Narrowed to the embedding path only; chat/generate belongs to a
// different product.
type Ollama struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	limiter    *ratelimit.Bucket
}

// NewOllama constructs an Ollama-backed embedder from configuration. The
// rate limiter reuses the internal/ratelimit token-bucket primitive, since
// an unbounded embedding call rate can overwhelm a local Ollama server the
// same way it can overwhelm the REST facade.
func NewOllama(cfg config.OllamaConfig, dimensions int, limit config.LimitConfig) *Ollama {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = "nomic-embed-text"
	}

	var bucket *ratelimit.Bucket
	if limit.RequestsPerSecond > 0 {
		bucket = ratelimit.NewBucket(float64(limit.BurstSize), limit.RequestsPerSecond)
	}

	return &Ollama{
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    bucket,
	}
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements embedder.Embedder.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	if o.limiter != nil && !o.limiter.TryConsume(1) {
		return nil, fmt.Errorf("ollama embed: rate limit exceeded, retry after %s", o.limiter.TimeToWait(1))
	}

	body, err := json.Marshal(ollamaEmbeddingRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("embedding request failed with status %d (body unreadable: %v)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, payload)
	}

	var parsed ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Embedding) != o.dimensions {
		return nil, fmt.Errorf("ollama returned %d-dimensional embedding, want %d", len(parsed.Embedding), o.dimensions)
	}
	return parsed.Embedding, nil
}

// EmbedBatch implements embedder.Embedder. Ollama's /api/embeddings route
// has no native batch form, so each text is embedded sequentially.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := o.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch item %d: %w", i, err)
		}
		out[i] = embedding
	}
	return out, nil
}

// Dimensions implements embedder.Embedder.
func (o *Ollama) Dimensions() int {
	return o.dimensions
}

// ModelIdentifier implements embedder.Embedder.
func (o *Ollama) ModelIdentifier() string {
	return o.model
}

// Available reports whether the Ollama server is reachable, used by the
// doctor health check.
func (o *Ollama) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
