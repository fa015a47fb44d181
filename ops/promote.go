package ops

import (
	"fmt"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
)

// PromoteRequest moves a set of chunks from one layer file to another. It
// is inherently an administrative path: the destination may be user scope
// but never base scope, regardless of allowUser/allowBase on the ordinary
// write entry points.
type PromoteRequest struct {
	FromPath  string
	FromScope layer.ID
	ToPath    string
	ToScope   layer.ID
	IDs       []format.ChunkID

	// SkipExisting leaves ids already present (by id) in the destination
	// untouched. Without it, such an id is appended again under the same id
	// and the new record supersedes the destination's.
	SkipExisting bool
	// Move additionally appends a tombstone for each promoted id back in
	// the source layer, so the source no longer surfaces it once merged.
	Move bool
}

type PromoteResult struct {
	Promoted []format.ChunkID
	Skipped  []format.ChunkID
}

// Promote hydrates each requested id out of the source layer and re-appends
// it into the destination layer under the same id, per spec §4.8. Promote
// never targets base scope; that restriction is unconditional, not an
// allowBase flag callers can override.
func Promote(req PromoteRequest) (PromoteResult, error) {
	if req.ToScope == layer.Base {
		return PromoteResult{}, &ErrScopeNotWritable{Scope: req.ToScope.String()}
	}

	src, err := layer.Open(req.FromPath, req.FromScope)
	if err != nil {
		return PromoteResult{}, fmt.Errorf("ops: open source layer: %w", err)
	}
	defer src.Close()

	existingDst := map[format.ChunkID]bool{}
	if dst, err := layer.Open(req.ToPath, req.ToScope); err == nil {
		for _, id := range dst.IDs() {
			existingDst[id] = true
		}
		dst.Close()
	}

	var result PromoteResult
	var toAppend []format.NewChunk
	for _, id := range req.IDs {
		if req.SkipExisting && existingDst[id] {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		chunk, ok, err := src.HydrateByID(id)
		if err != nil {
			return PromoteResult{}, err
		}
		if !ok {
			return PromoteResult{}, &ErrChunkNotFound{ID: id}
		}
		rec, _ := src.ChunkByID(id)
		embedding, err := src.Embedding(rec)
		if err != nil {
			return PromoteResult{}, err
		}
		toAppend = append(toAppend, format.NewChunk{
			ID:          id,
			Kind:        chunk.Kind,
			Content:     chunk.Content,
			Author:      chunk.Author,
			Confidence:  chunk.Confidence,
			CreatedAtMs: chunk.CreatedAtMs,
			Embedding:   embedding,
			Sources:     chunk.Sources,
		})
	}

	if len(toAppend) > 0 {
		ids, err := writeChunks(req.ToPath, req.ToScope, true, false, toAppend)
		if err != nil {
			return PromoteResult{}, err
		}
		result.Promoted = append(result.Promoted, ids...)
	}

	if req.Move && len(result.Promoted) > 0 {
		var tombstones []format.NewChunk
		for _, id := range result.Promoted {
			rec, _ := src.ChunkByID(id)
			embedding, err := src.Embedding(rec)
			if err != nil {
				return result, err
			}
			tombstones = append(tombstones, format.NewChunk{
				Kind:      format.KindTombstone,
				Author:    format.AuthorHuman,
				Embedding: make([]float32, len(embedding)),
				Sources:   []format.Source{format.SourceChunk(id)},
			})
		}
		if _, err := writeChunks(req.FromPath, req.FromScope, true, false, tombstones); err != nil {
			return result, err
		}
	}

	return result, nil
}
