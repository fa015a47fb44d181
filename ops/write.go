// Package ops implements the write path: scope-checked Append/Edit/Remove
// against local and delta layers, administrative Promote between layers,
// and the proposal event lifecycle, per spec §4.7/§4.8.
package ops

import (
	"path/filepath"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
	"github.com/agentsdb/agentsdb/layerfs"
)

func expectedName(id layer.ID) string {
	switch id {
	case layer.Local:
		return layerfs.Local
	case layer.User:
		return layerfs.User
	case layer.Delta:
		return layerfs.Delta
	case layer.Base:
		return layerfs.Base
	default:
		return ""
	}
}

func checkScope(path string, id layer.ID) error {
	want := expectedName(id)
	if want == "" || filepath.Base(path) != want {
		return &ErrScopeMismatch{Path: path, Scope: id.String()}
	}
	return nil
}

func checkWriteAllowed(id layer.ID, allowUser, allowBase bool) error {
	switch id {
	case layer.Local, layer.Delta:
		return nil
	case layer.User:
		if allowUser {
			return nil
		}
		return &ErrScopeNotWritable{Scope: id.String()}
	case layer.Base:
		if allowBase {
			return nil
		}
		return &ErrScopeNotWritable{Scope: id.String()}
	default:
		return &ErrScopeNotWritable{Scope: id.String()}
	}
}

// resolveDim returns path's existing embedding dimension, or 0 if the file
// does not exist yet.
func resolveDim(path string) (int, error) {
	data, err := layerfs.ReadAll(path)
	if err != nil || data == nil {
		return 0, err
	}
	f, err := format.Decode(data)
	if err != nil {
		return 0, err
	}
	return int(f.Embeddings.Dim), nil
}

// writeChunks is the single choke point every write operation in this
// package funnels through: scope check, write-allowed check, per-path
// lock, read-decode-extend-publish.
func writeChunks(path string, id layer.ID, allowUser, allowBase bool, chunks []format.NewChunk) ([]format.ChunkID, error) {
	if err := checkScope(path, id); err != nil {
		return nil, err
	}
	if err := checkWriteAllowed(id, allowUser, allowBase); err != nil {
		return nil, err
	}
	if err := layerfs.CheckWritable(path, allowBase); err != nil {
		return nil, err
	}

	unlock := lockPath(path)
	defer unlock()

	existingBytes, err := layerfs.ReadAll(path)
	if err != nil {
		return nil, err
	}
	var existing *format.File
	w := &format.Writer{ElementType: format.ElementF32}
	if existingBytes != nil {
		existing, err = format.Decode(existingBytes)
		if err != nil {
			return nil, err
		}
		w.ElementType = existing.Embeddings.ElementType
		w.QuantScale = existing.Embeddings.QuantScale
	}

	res, err := w.Build(existing, chunks)
	if err != nil {
		return nil, err
	}
	if err := layerfs.Publish(path, res.Bytes); err != nil {
		return nil, err
	}
	return res.AssignedIDs, nil
}

// Append inserts chunk into path under scope, assigning a fresh id unless
// chunk.ID is set. Only local and delta scope are accepted; use AdminAppend
// for the explicit administrative path into user scope.
func Append(path string, scope layer.ID, chunk format.NewChunk) (format.ChunkID, error) {
	ids, err := writeChunks(path, scope, false, false, []format.NewChunk{chunk})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AdminAppend is Append with user-scope writes permitted. It never allows
// base-scope writes — there is no override for that here.
func AdminAppend(path string, scope layer.ID, chunk format.NewChunk) (format.ChunkID, error) {
	ids, err := writeChunks(path, scope, true, false, []format.NewChunk{chunk})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// EditRequest describes a same-id supersession.
type EditRequest struct {
	ID           format.ChunkID
	Kind         format.Kind
	Content      string
	Author       format.Author
	Confidence   float32
	Embedding    []float32
	TombstoneOld bool
}

// Edit appends a new record under req.ID; chunk_by_id resolves to it from
// then on. The prior record is never erased. TombstoneOld additionally
// appends a tombstone referencing req.ID in the same publish, so a raw
// table scan also sees an explicit removal marker for the superseded
// version rather than relying solely on implicit latest-wins resolution.
func Edit(path string, scope layer.ID, req EditRequest) (format.ChunkID, error) {
	chunks := []format.NewChunk{{
		ID: req.ID, Kind: req.Kind, Content: req.Content,
		Author: req.Author, Confidence: req.Confidence, Embedding: req.Embedding,
	}}
	if req.TombstoneOld {
		chunks = append(chunks, format.NewChunk{
			Kind:      format.KindTombstone,
			Author:    req.Author,
			Embedding: make([]float32, len(req.Embedding)),
			Sources:   []format.Source{format.SourceChunk(req.ID)},
		})
	}
	ids, err := writeChunks(path, scope, false, false, chunks)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// Remove appends a fresh tombstone chunk referencing victim. Nothing is
// physically erased; queries exclude victim via the tombstone set built
// during the merge pass.
func Remove(path string, scope layer.ID, victim format.ChunkID, author format.Author) (format.ChunkID, error) {
	dim, err := resolveDim(path)
	if err != nil {
		return 0, err
	}
	ids, err := writeChunks(path, scope, false, false, []format.NewChunk{{
		Kind:      format.KindTombstone,
		Author:    author,
		Embedding: make([]float32, dim),
		Sources:   []format.Source{format.SourceChunk(victim)},
	}})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}
