package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client embeds text through an Ollama server or any OpenAI-compatible
// /embeddings endpoint. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay func(attempt int) time.Duration

	mu        sync.RWMutex
	dimension int
}

// Config configures the embeddings client.
type Config struct {
	BaseURL string
	// APIKeyEnv names an environment variable holding a bearer token. Local
	// Ollama needs none, so an unset variable is not an error.
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// RequestsPerSecond throttles outgoing calls; zero means unlimited.
	RequestsPerSecond float64
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "mxbai-embed-large"
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second must not be negative")
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: 5,
		retryDelay: backoff,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "ollama" }

// Prepare is not required for remote embedding; the dimension is learned on first embed.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Embed returns an embedding vector for the given text. 429 and 5xx
// responses are retried with backoff, honouring Retry-After.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	type reqBody struct {
		Input  string `json:"input,omitempty"`
		Prompt string `json:"prompt,omitempty"`
		Model  string `json:"model"`
	}
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	data, err := json.Marshal(reqBody{Input: text, Prompt: text, Model: c.model})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.delayFor(attempt-1, lastErr)); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &retryableStatus{status: resp.Status, retryAfter: resp.Header.Get("Retry-After")}
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("embeddings request failed: %s", resp.Status)
		}
		if err != nil {
			lastErr = err
			continue
		}

		v, err := decodeEmbedding(payload)
		if err != nil {
			lastErr = err
			continue
		}
		c.mu.Lock()
		if c.dimension == 0 {
			c.dimension = len(v)
		}
		c.mu.Unlock()
		return v, nil
	}
	return nil, fmt.Errorf("embeddings request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// decodeEmbedding accepts the OpenAI shape {"data":[{"embedding":[...]}]}
// and the Ollama-native shape {"embedding":[...]}.
func decodeEmbedding(payload []byte) ([]float64, error) {
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	if len(out.Data) > 0 && len(out.Data[0].Embedding) > 0 {
		return out.Data[0].Embedding, nil
	}
	if len(out.Embedding) > 0 {
		return out.Embedding, nil
	}
	return nil, errors.New("no embedding returned")
}

type retryableStatus struct {
	status     string
	retryAfter string
}

func (e *retryableStatus) Error() string { return "embeddings request failed: " + e.status }

func (c *Client) delayFor(attempt int, lastErr error) time.Duration {
	var rs *retryableStatus
	if errors.As(lastErr, &rs) && rs.retryAfter != "" {
		if secs, err := strconv.Atoi(rs.retryAfter); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return c.retryDelay(attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
