// Package query implements the multi-layer vector search engine: brute-force
// cosine/dot scoring across an ordered set of open layers, precedence-based
// deduplication, tombstone and kind filtering, and top-k selection with
// deterministic tie-breaking.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/agentsdb/agentsdb/distance"
	"github.com/agentsdb/agentsdb/embed"
	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
	"github.com/agentsdb/agentsdb/lexical/bm25"
)

// hybridBoostWeight caps how much a lexical match can move a candidate's
// final score. Semantic similarity stays primary; this only ever adds.
const hybridBoostWeight = 0.25

// Request describes one search: an ordered layer set (highest precedence
// first — conventionally local, user, delta, base), a query supplied either
// as free text (requiring Embedder) or a precomputed Vector, and the usual
// k/kind/tombstone knobs from spec §4.6.
type Request struct {
	Layers []*layer.Handle

	// Text is embedded via Embedder if Vector is not supplied directly.
	Text     string
	Vector   []float32
	Embedder embed.Embedder

	K              int
	Kinds          []format.Kind
	IncludeRemoved bool

	// Hybrid additively boosts each candidate's score by its BM25 match
	// against Text, built fresh over the candidate set. Off by default;
	// the default path is byte-for-byte spec §4.6.
	Hybrid bool
}

// Result is one hydrated, ranked search hit.
type Result struct {
	ID          format.ChunkID
	Layer       layer.ID
	Score       float32
	Kind        format.Kind
	Content     string
	Author      format.Author
	Confidence  float32
	CreatedAtMs uint64
	Sources     []format.Source
	Preview     string
}

// Response is the outcome of a Search call.
type Response struct {
	Results []Result
}

type candidate struct {
	id     format.ChunkID
	layer  layer.ID
	handle *layer.Handle
	record format.ChunkRecord
	kind   format.Kind
	score  float32
}

type layerScan struct {
	candidates []candidate
	tombstoned map[format.ChunkID]bool
}

// Search implements spec §4.6's algorithm: profile compatibility, query
// normalization, per-layer concurrent scan, precedence merge, tombstone and
// kind exclusion, top-k with tie-break, hydration.
func Search(ctx context.Context, req Request) (Response, error) {
	if len(req.Layers) == 0 {
		return Response{}, ErrEmptyLayerSet
	}
	if req.K <= 0 {
		return Response{}, fmt.Errorf("query: k must be positive, got %d", req.K)
	}

	profile, err := checkProfileCompatibility(req.Layers)
	if err != nil {
		return Response{}, err
	}

	queryVec, err := resolveQueryVector(ctx, req)
	if err != nil {
		return Response{}, err
	}
	queryVec = append([]float32(nil), queryVec...)
	if profile.OutputNorm == embed.OutputNormL2 {
		distance.NormalizeL2InPlace(queryVec)
	}

	kindFilter := kindSet(req.Kinds)

	scans := make([]layerScan, len(req.Layers))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range req.Layers {
		i, h := i, h
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scan, err := scanLayer(h, queryVec, kindFilter)
			if err != nil {
				return fmt.Errorf("query: scan layer %s: %w", h.Path(), err)
			}
			scans[i] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Response{}, err
	}

	tombstoned := roaring.New()
	for _, s := range scans {
		for id := range s.tombstoned {
			tombstoned.Add(uint32(id))
		}
	}

	// Single-threaded merge: req.Layers is already precedence order, so the
	// first occurrence of an id wins regardless of goroutine completion
	// order (scans is indexed by original layer position, not arrival).
	selected := make(map[format.ChunkID]candidate)
	order := make([]format.ChunkID, 0)
	for _, s := range scans {
		for _, c := range s.candidates {
			if _, ok := selected[c.id]; ok {
				continue
			}
			selected[c.id] = c
			order = append(order, c.id)
		}
	}

	candidates := make([]candidate, 0, len(order))
	for _, id := range order {
		if !req.IncludeRemoved && tombstoned.Contains(uint32(id)) {
			continue
		}
		candidates = append(candidates, selected[id])
	}

	if req.Hybrid && req.Text != "" {
		if err := applyHybridBoost(candidates, req.Text); err != nil {
			return Response{}, err
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.layer != b.layer {
			return a.layer.Less(b.layer)
		}
		return a.id < b.id
	})

	if len(candidates) > req.K {
		candidates = candidates[:req.K]
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		chunk, err := c.handle.Hydrate(c.record)
		if err != nil {
			return Response{}, fmt.Errorf("query: hydrate id %d: %w", c.id, err)
		}
		results = append(results, Result{
			ID:          c.id,
			Layer:       c.layer,
			Score:       c.score,
			Kind:        chunk.Kind,
			Content:     chunk.Content,
			Author:      chunk.Author,
			Confidence:  chunk.Confidence,
			CreatedAtMs: chunk.CreatedAtMs,
			Sources:     chunk.Sources,
			Preview:     chunk.Preview(),
		})
	}
	return Response{Results: results}, nil
}

// scanLayer scores every distinct (latest-record) chunk id in h against
// queryVec, skipping tombstone/options kinds unless the caller's kind
// filter explicitly asks for them, and collects tombstoned victim ids along
// the way.
func scanLayer(h *layer.Handle, queryVec []float32, kindFilter map[format.Kind]bool) (layerScan, error) {
	ids := h.IDs()
	scan := layerScan{
		candidates: make([]candidate, 0, len(ids)),
		tombstoned: make(map[format.ChunkID]bool),
	}

	for _, id := range ids {
		r, ok := h.ChunkByID(id)
		if !ok {
			continue
		}
		kind, err := h.Kind(r)
		if err != nil {
			return layerScan{}, err
		}

		switch kind {
		case format.KindTombstone:
			srcs, err := h.Sources(r)
			if err != nil {
				return layerScan{}, err
			}
			for _, s := range srcs {
				if s.Kind == format.RelationChunkRef {
					scan.tombstoned[s.ChunkID] = true
				}
			}
			if !kindFilter[kind] {
				continue
			}
		case format.KindOptions:
			if !kindFilter[kind] {
				continue
			}
		}

		if len(kindFilter) > 0 && !kindFilter[kind] {
			continue
		}

		row, err := h.Embedding(r)
		if err != nil {
			return layerScan{}, err
		}
		score := distance.Dot(queryVec, row)

		scan.candidates = append(scan.candidates, candidate{
			id:     id,
			layer:  h.ID(),
			handle: h,
			record: r,
			kind:   kind,
			score:  score,
		})
	}
	return scan, nil
}

// applyHybridBoost adds a bounded BM25-derived bonus to each candidate's
// score, built fresh over just this candidate set.
func applyHybridBoost(candidates []candidate, text string) error {
	idx := bm25.New()
	for _, c := range candidates {
		content, err := c.handle.Content(c.record)
		if err != nil {
			return err
		}
		idx.Add(c.id, content)
	}

	scores := idx.Score(text)
	if len(scores) == 0 {
		return nil
	}
	var maxScore float32
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		return nil
	}
	for i := range candidates {
		if s, ok := scores[candidates[i].id]; ok {
			candidates[i].score += hybridBoostWeight * (s / maxScore)
		}
	}
	return nil
}

func resolveQueryVector(ctx context.Context, req Request) ([]float32, error) {
	if len(req.Vector) > 0 {
		return req.Vector, nil
	}
	if req.Text == "" || req.Embedder == nil {
		return nil, ErrNoQueryVector
	}
	vecs, err := req.Embedder.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ErrNoQueryVector
	}
	return vecs[0], nil
}

// checkProfileCompatibility verifies every layer's embedding profile is
// compatible with the first, per spec §4.5/§4.6 step 1. A layer with no
// Layer Metadata section falls back to embed.DefaultProfile.
func checkProfileCompatibility(layers []*layer.Handle) (embed.Profile, error) {
	var first embed.Profile
	var firstRaw string
	for i, h := range layers {
		p, err := embed.ParseMetadataBlob(h.Profile())
		if err != nil {
			return embed.Profile{}, fmt.Errorf("query: layer %s: %w", h.Path(), err)
		}
		if i == 0 {
			first = p
			firstRaw = string(p.Canonical())
			continue
		}
		if !p.CompatibleWith(first) {
			return embed.Profile{}, &embed.ErrProfileMismatch{A: firstRaw, B: string(p.Canonical())}
		}
	}
	return first, nil
}

func kindSet(kinds []format.Kind) map[format.Kind]bool {
	if len(kinds) == 0 {
		return nil
	}
	m := make(map[format.Kind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}
