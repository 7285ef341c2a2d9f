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
)

// Default tuning for ServerEmbedder, mirroring the teacher's OllamaEmbedder
// defaults but trimmed to what this capability contract actually needs
// (§4.4: embed, embed_batch, dimension).
const (
	DefaultServerHost = "http://localhost:11434"
	DefaultBatchSize  = 32
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3
)

// ServerConfig configures a ServerEmbedder.
type ServerConfig struct {
	// Host is the embedding server's base URL.
	Host string
	// Model is the model name sent with every request.
	Model string
	// Dimensions overrides auto-detection when non-zero.
	Dimensions int
	// BatchSize bounds how many texts are sent per HTTP request.
	BatchSize int
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// MaxRetries is the total number of attempts per request, the first
	// one included.
	MaxRetries int
	// SkipHealthCheck skips the startup probe, for tests.
	SkipHealthCheck bool
}

func (c *ServerConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultServerHost
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

type serverEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type serverEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// ServerEmbedder calls a local sentence-embedding model server's HTTP API
// (a `POST {host}/api/embeddings`-shaped contract, the same request/response
// shape the teacher's Ollama client speaks), grounded on the teacher's
// OllamaEmbedder with its thermal/MLX-specific machinery left out.
type ServerEmbedder struct {
	client *http.Client
	cfg    ServerConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*ServerEmbedder)(nil)

// NewServerEmbedder dials the model server, probing for its embedding
// dimension unless cfg.Dimensions is set or the health check is skipped.
func NewServerEmbedder(ctx context.Context, cfg ServerConfig) (*ServerEmbedder, error) {
	cfg.applyDefaults()
	e := &ServerEmbedder{
		client: &http.Client{},
		cfg:    cfg,
		dims:   cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if e.dims == 0 {
			dims, err := e.detectDimension(checkCtx)
			if err != nil {
				return nil, fmt.Errorf("detect embedding server dimension: %w", err)
			}
			e.dims = dims
		}
	}
	return e, nil
}

func (e *ServerEmbedder) detectDimension(ctx context.Context) (int, error) {
	vecs, err := e.doEmbed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned by server")
	}
	return len(vecs[0]), nil
}

// Embed generates an embedding for a single text.
func (e *ServerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("server embedder is closed")
	}

	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}
	vecs, err := e.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, chunked to BatchSize.
func (e *ServerEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("server embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var pendingIdx []int
	var pendingText []string
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		pendingIdx = append(pendingIdx, i)
		pendingText = append(pendingText, t)
	}

	for start := 0; start < len(pendingText); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(pendingText) {
			end = len(pendingText)
		}
		vecs, err := e.embedWithRetry(ctx, pendingText[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		for j, v := range vecs {
			results[pendingIdx[start+j]] = v
		}
	}
	return results, nil
}

func (e *ServerEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		vecs, err := e.doEmbed(timeoutCtx, texts)
		cancel()
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("embedding server failed after %d attempts: %w", e.cfg.MaxRetries, lastErr)
}

func (e *ServerEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(serverEmbedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to embedding server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result serverEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embedding server response: %w", err)
	}

	out := make([][]float32, len(result.Embeddings))
	for i, raw := range result.Embeddings {
		v := make([]float32, len(raw))
		for j, x := range raw {
			v[j] = float32(x)
		}
		out[i] = normalizeVector(v)
	}
	return out, nil
}

// Dimension returns the vector length this server produces.
func (e *ServerEmbedder) Dimension() int { return e.dims }

// ModelName returns the configured model name.
func (e *ServerEmbedder) ModelName() string { return e.cfg.Model }

// Available probes the server's root endpoint.
func (e *ServerEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Host, nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Close marks the embedder closed.
func (e *ServerEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
