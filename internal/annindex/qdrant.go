package annindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/synapsegraph/synapse/pkg/config"
)

// Qdrant is the Index implementation backed by a Qdrant HTTP server,
// narrowed to the four operations the relationship detector's prefilter
// actually calls.
type Qdrant struct {
	baseURL        string
	collectionName string
	dimensions     int
	httpClient     *http.Client
	enabled        bool
}

// NewQdrant constructs a Qdrant-backed ANN index from configuration.
func NewQdrant(cfg config.QdrantConfig, dimensions int) *Qdrant {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	collection := cfg.CollectionName
	if collection == "" {
		collection = "synapse_candidates"
	}

	return &Qdrant{
		baseURL:        baseURL,
		collectionName: collection,
		dimensions:     dimensions,
		enabled:        cfg.Enabled,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Available implements Index.
func (q *Qdrant) Available(ctx context.Context) bool {
	if !q.enabled {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/collections", nil)
	if err != nil {
		return false
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// EnsureCollection creates the backing collection if it does not already
// exist, using standard HNSW tuning (m=16, ef_construct=100).
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	if !q.enabled {
		return fmt.Errorf("qdrant index is not enabled")
	}

	url := fmt.Sprintf("%s/collections/%s", q.baseURL, q.collectionName)
	checkReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if resp, err := q.httpClient.Do(checkReq); err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     q.dimensions,
			"distance": "Cosine",
		},
		"hnsw_config": map[string]any{
			"m":            16,
			"ef_construct": 100,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create-collection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create collection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create collection failed with status %d: %s", resp.StatusCode, payload)
	}
	return nil
}

// Upsert implements Index.
func (q *Qdrant) Upsert(ctx context.Context, id string, vector []float32) error {
	if !q.enabled {
		return fmt.Errorf("qdrant index is not enabled")
	}
	if len(vector) != q.dimensions {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", q.dimensions, len(vector))
	}

	body, err := json.Marshal(map[string]any{
		"points": []map[string]any{
			{"id": id, "vector": vector},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal upsert request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points", q.baseURL, q.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upsert request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upsert failed with status %d: %s", resp.StatusCode, payload)
	}
	return nil
}

// Search implements Index.
func (q *Qdrant) Search(ctx context.Context, vector []float32, limit int) ([]string, error) {
	if !q.enabled {
		return nil, fmt.Errorf("qdrant index is not enabled")
	}
	if limit <= 0 {
		limit = 10
	}

	body, err := json.Marshal(map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.baseURL, q.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search failed with status %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		Result []struct {
			ID any `json:"id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		switch v := r.ID.(type) {
		case string:
			ids = append(ids, v)
		default:
			ids = append(ids, fmt.Sprintf("%v", v))
		}
	}
	return ids, nil
}

// Delete implements Index.
func (q *Qdrant) Delete(ctx context.Context, id string) error {
	if !q.enabled {
		return fmt.Errorf("qdrant index is not enabled")
	}

	body, err := json.Marshal(map[string]any{"points": []string{id}})
	if err != nil {
		return fmt.Errorf("marshal delete request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete", q.baseURL, q.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete failed with status %d: %s", resp.StatusCode, payload)
	}
	return nil
}
