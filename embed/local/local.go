// Package local is the extension point for local-inference embedding
// backends. It owns the allowlist enforcement any such backend must pass
// through (pin by {model, revision}, verify content SHA-256) but does not
// ship a tensor runtime itself — no ONNX/ggml binding exists anywhere in
// this repo's dependency surface to embed a real model. A Runner supplies
// the actual inference; this package wires allowlist verification around
// whatever Runner is registered.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/agentsdb/agentsdb/embed"
)

func init() {
	embed.Register("local", func(cfg embed.Config) (embed.Embedder, error) {
		runner := currentRunner
		if runner == nil {
			return nil, fmt.Errorf("embed/local: no Runner registered (call local.SetRunner before opening the \"local\" backend)")
		}
		return New(cfg, runner)
	})
}

// Runner performs the actual inference once a model has passed allowlist
// verification. A real implementation wraps an ONNX/ggml/candle-equivalent
// runtime; this package never assumes one exists.
type Runner interface {
	// Load prepares modelPath for inference. Called once at construction.
	Load(modelPath string) error
	// Embed computes dim-length vectors for texts.
	Embed(ctx context.Context, texts []string, dim int) ([][]float32, error)
}

var currentRunner Runner

// SetRunner registers the Runner the "local" backend delegates to once a
// model clears allowlist verification. Call this before the first
// embed.Open("local", ...); with no Runner registered, opening the backend
// fails loudly rather than silently falling back to a stub.
func SetRunner(r Runner) { currentRunner = r }

// Embedder enforces the allowlist from rolled-up options before handing
// inference off to a Runner.
type Embedder struct {
	profile embed.Profile
	runner  Runner
}

// New verifies {cfg.Model, cfg.Revision} against cfg.Allowlist and, when
// cfg.ModelPath is set, the model file's SHA-256 before loading it and
// returning a usable Embedder. With no ModelPath, no file is hashed and
// Runner.Load is not called.
func New(cfg embed.Config, runner Runner) (*Embedder, error) {
	entry, ok := cfg.Allowlist[cfg.Model]
	if !ok || entry.Revision != cfg.Revision {
		return nil, fmt.Errorf("%w: model %q revision %q is not in the allowlist", embed.ErrModelNotAllowed, cfg.Model, cfg.Revision)
	}
	if cfg.ModelPath != "" {
		sum, err := sha256File(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("embed/local: hash model file: %w", err)
		}
		if sum != entry.SHA256 {
			return nil, fmt.Errorf("%w: model %q revision %q sha256 %s does not match pinned %s",
				embed.ErrModelNotAllowed, cfg.Model, cfg.Revision, sum, entry.SHA256)
		}
		if err := runner.Load(cfg.ModelPath); err != nil {
			return nil, fmt.Errorf("embed/local: load model: %w", err)
		}
	}
	return &Embedder{
		profile: embed.Profile{Backend: "local", Model: cfg.Model, Revision: cfg.Revision, Dim: cfg.Dim, OutputNorm: embed.OutputNormNone},
		runner:  runner,
	}, nil
}

// Profile describes this embedder's model identity and dimension.
func (e *Embedder) Profile() embed.Profile { return e.profile }

// Embed delegates to the verified Runner.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.runner.Embed(ctx, texts, e.profile.Dim)
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
