package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coursemind/coursemind/internal/errors"
)

// OllamaConfig configures the Ollama HTTP embedder.
type OllamaConfig struct {
	// Host is the Ollama base URL.
	Host string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected embedding width. Zero auto-detects from
	// the first embedding.
	Dimensions int

	// Timeout bounds each embed request.
	Timeout time.Duration

	// MaxRetries is the number of attempts per request.
	MaxRetries int

	// SkipHealthCheck skips the startup probe, for testing.
	SkipHealthCheck bool
}

// OllamaEmbedder generates embeddings via Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates the embedder and probes the server unless the
// health check is skipped.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	// Timeouts come from per-request contexts, not the client.
	e := &OllamaEmbedder{
		client: &http.Client{},
		config: cfg,
		dims:   cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		probe, err := e.Embed(ctx, "dimension detection")
		if err != nil {
			return nil, errors.New(errors.ErrCodeOllamaUnavailable,
				"cannot reach Ollama embedding model", err).
				WithDetail("host", cfg.Host).
				WithDetail("model", cfg.Model)
		}
		if e.dims == 0 {
			e.dims = len(probe)
		}
	}
	if e.dims == 0 {
		e.dims = DefaultDimensions
	}
	return e, nil
}

// Embed generates an embedding for one text. Empty input returns a zero
// vector without a network call.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	retryCfg := errors.DefaultRetryConfig()
	retryCfg.MaxRetries = e.config.MaxRetries

	return errors.RetryWithResult(ctx, retryCfg, func() ([]float32, error) {
		return e.doEmbed(ctx, text)
	})
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, text string) ([]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeOllamaUnavailable, "embed request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embed failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "empty embedding returned", nil)
	}

	embedding := result.Embeddings[0]
	if e.dims > 0 && len(embedding) != e.dims {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.dims, len(embedding)), nil)
	}
	return embedding, nil
}

// Dimensions returns the embedding width.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the configured model.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Close marks the embedder closed and drops idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
