// Package hash implements embed.Embedder's minimum required backend: a
// deterministic, offline embedder that hashes input text into a
// reproducible pseudo-random vector. It requires no network access and no
// model files, making it the fallback backend a fresh store defaults to.
package hash

import (
	"context"
	"hash/fnv"

	"github.com/agentsdb/agentsdb/distance"
	"github.com/agentsdb/agentsdb/embed"
)

func init() {
	embed.Register("hash", func(cfg embed.Config) (embed.Embedder, error) {
		return New(cfg.Dim), nil
	})
}

// Embedder deterministically maps text to a unit vector: the text is
// hashed with FNV-1a to seed a splitmix64 PRNG, which then fills the
// vector. Identical text always produces identical output for a given dim.
type Embedder struct {
	dim int
}

// New returns a hash embedder producing vectors of length dim.
func New(dim int) *Embedder {
	return &Embedder{dim: dim}
}

// Profile describes this embedder's deterministic, model-free output.
func (e *Embedder) Profile() embed.Profile {
	return embed.Profile{Backend: "hash", Dim: e.dim, OutputNorm: embed.OutputNormL2}
}

// Embed hashes each input independently; it never fails.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedOne(t, e.dim)
	}
	return out, nil
}

func embedOne(text string, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	v := make([]float32, dim)
	x := seed(text)
	for i := range v {
		var z uint64
		x, z = splitmix64(x)
		// Map the top 53 bits onto [-1, 1) at float64 precision, then
		// narrow, so results are stable regardless of float32 rounding
		// in intermediate math.
		u := float64(z>>11) / float64(1<<53)
		v[i] = float32(u*2 - 1)
	}
	distance.NormalizeL2InPlace(v)
	return v
}

// seed derives a 64-bit splitmix64 seed from text via FNV-1a, so the same
// text always starts the same pseudo-random stream.
func seed(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

// splitmix64 advances state x and returns (next state, output), per the
// splitmix64 reference implementation's constants.
func splitmix64(x uint64) (next, z uint64) {
	x += 0x9E3779B97F4A7C15
	z = x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z = z ^ (z >> 31)
	return x, z
}
