// Package embed defines the embedding capability contract shared by every
// backend (embed(text) → vector, profile() → canonical JSON), the
// compatibility profile used to gate cross-layer queries, and a
// content-addressed disk cache in front of any backend.
package embed

import "context"

// Embedder computes vectors from text under a fixed profile. Backends are
// selected by the "backend" string in rolled-up options, never by runtime
// type assertion on the interface.
type Embedder interface {
	// Embed computes one vector per input, in order. The returned slices
	// all have length Profile().Dim.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Profile describes how this embedder's output is produced.
	Profile() Profile
}

// Registry resolves a backend name (from rolled-up options) to a
// constructor. Backends register themselves at package init time via
// Register, so selection happens purely by name — the root package never
// imports a concrete backend type.
var registry = map[string]func(cfg Config) (Embedder, error){}

// Config is the subset of rolled-up embedding options a backend
// constructor needs. It is deliberately a plain struct (not
// rollup.EmbeddingOptions) so this package does not depend on rollup.
type Config struct {
	Model     string
	Revision  string
	Dim       int
	APIKeyEnv string
	Allowlist map[string]AllowlistEntry
	ModelPath string
}

// AllowlistEntry pins a local model revision to its expected SHA-256.
type AllowlistEntry struct {
	Revision string
	SHA256   string
}

// Register adds a backend constructor under name. Called from backend
// package init functions (embed/hash, embed/local, embed/remote); importing
// a backend package for its side effect is how the root package wires one
// in without a direct dependency on its implementation.
func Register(name string, ctor func(cfg Config) (Embedder, error)) {
	registry[name] = ctor
}

// Open resolves name to a registered backend and constructs it.
func Open(name string, cfg Config) (Embedder, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &ErrUnknownBackend{Name: name}
	}
	return ctor(cfg)
}

// ErrUnknownBackend is returned by Open for a backend name with no
// registered constructor.
type ErrUnknownBackend struct{ Name string }

func (e *ErrUnknownBackend) Error() string { return "embed: unknown backend " + e.Name }
