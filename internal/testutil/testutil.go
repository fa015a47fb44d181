// Package testutil provides seeded randomness and brute-force ground truth
// for package tests that exercise query's top-k scan.
package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/agentsdb/agentsdb/distance"
)

// RNG wraps math/rand with a fixed seed for reproducible test fixtures.
// Safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed)), seed: seed}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 { return r.seed }

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// UnitVector generates a single L2-normalized random vector.
func (r *RNG) UnitVector(dimensions int) []float32 {
	r.mu.Lock()
	vec := make([]float32, dimensions)
	for j := range vec {
		vec[j] = float32(r.rand.NormFloat64())
	}
	r.mu.Unlock()
	distance.NormalizeL2InPlace(vec)
	return vec
}

// UnitVectors generates num L2-normalized random vectors of the given
// dimension, each allocated separately.
func (r *RNG) UnitVectors(num, dimensions int) [][]float32 {
	vectors := make([][]float32, num)
	for i := range num {
		vectors[i] = r.UnitVector(dimensions)
	}
	return vectors
}

// SearchResult is a single scored result, used by BruteForceTopK and by
// tests comparing query's output against a ground-truth ranking.
type SearchResult struct {
	ID    uint32
	Score float32
}

// BruteForceTopK returns the k nearest vectors to query under metric,
// scanning vectors in full. Used as the ground truth that query's
// concurrent scan is checked against.
func BruteForceTopK(vectors [][]float32, ids []uint32, query []float32, k int, m distance.Metric) ([]SearchResult, error) {
	fn, err := distance.Provider(m)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, len(vectors))
	for i, v := range vectors {
		results[i] = SearchResult{ID: ids[i], Score: fn(query, v)}
	}
	higherIsBetter := m == distance.MetricCosine || m == distance.MetricDot
	sort.Slice(results, func(i, j int) bool {
		if higherIsBetter {
			return results[i].Score > results[j].Score
		}
		return results[i].Score < results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
