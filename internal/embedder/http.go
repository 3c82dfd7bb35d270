package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPConfig configures a TEI-compatible embedding HTTP endpoint
// (grounded on contextd's internal/embeddings/service.go).
type HTTPConfig struct {
	BaseURL   string
	Model     string
	Dimension int
}

// HTTPEmbedder calls a remote embedding service's /embed endpoint.
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedder: base_url is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedder: dimension must be positive")
	}
	return &HTTPEmbedder{cfg: cfg, client: &http.Client{}}, nil
}

type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

func (e *HTTPEmbedder) embed(ctx context.Context, inputs interface{}) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: calling embedding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedder: embedding service status %d: %s", resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("embedder: decoding response: %w", err)
	}
	return vectors, nil
}

func (e *HTTPEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedder: texts cannot be empty")
	}
	return e.embed(ctx, texts)
}

func (e *HTTPEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedder: text cannot be empty")
	}
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder: empty response")
	}
	return vectors[0], nil
}

func (e *HTTPEmbedder) Dimension() int { return e.cfg.Dimension }
