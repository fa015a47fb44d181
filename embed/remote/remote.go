// Package remote implements a provider-agnostic HTTP embedding backend.
// It speaks a minimal JSON contract (POST texts, get back vectors) rather
// than a specific vendor's SDK, since spec's embedder contract is itself
// provider-agnostic and no single HTTP client for an embedding API exists
// across the example pack.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentsdb/agentsdb/embed"
)

func init() {
	embed.Register("remote", func(cfg embed.Config) (embed.Embedder, error) {
		apiKey := os.Getenv(cfg.APIKeyEnv)
		return New(Options{
			Endpoint: os.Getenv("AGENTSDB_REMOTE_EMBED_ENDPOINT"),
			APIKey:   apiKey,
			Model:    cfg.Model,
			Dim:      cfg.Dim,
		}), nil
	})
}

// Options configures a remote embedder.
type Options struct {
	Endpoint          string
	APIKey            string
	Model             string
	Dim               int
	RequestsPerSecond float64 // 0 disables rate limiting
	HTTPClient        *http.Client
}

// Embedder calls a remote HTTP endpoint for embeddings, one request per
// Embed call, throttled by a token-bucket rate limiter.
type Embedder struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
}

// New returns a remote embedder. A zero RequestsPerSecond disables
// throttling (useful for a provider the caller already rate-limits).
func New(opts Options) *Embedder {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Embedder{opts: opts, client: client, limiter: limiter}
}

// Profile describes the remote model identity.
func (e *Embedder) Profile() embed.Profile {
	return embed.Profile{Backend: "remote", Model: e.opts.Model, Dim: e.opts.Dim, OutputNorm: embed.OutputNormNone}
}

type requestBody struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type responseBody struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed POSTs texts to the configured endpoint and returns the response
// vectors in order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("%w: %w", embed.ErrTimeout, err)
			}
			return nil, err
		}
	}

	body, err := json.Marshal(requestBody{Model: e.opts.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embed/remote: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed/remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.opts.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", embed.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", embed.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", embed.ErrBackendUnavailable, resp.StatusCode, detail)
	}

	var out responseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embed/remote: decode response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed/remote: got %d embeddings for %d inputs", len(out.Embeddings), len(texts))
	}
	for _, v := range out.Embeddings {
		if len(v) != e.opts.Dim {
			return nil, &embed.ErrDimensionMismatch{Backend: "remote", Expected: e.opts.Dim, Actual: len(v)}
		}
	}
	return out.Embeddings, nil
}
