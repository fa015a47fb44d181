// Package layer wraps one open, memory-mapped layer file and exposes typed
// accessors over it: chunk lookup by id or index, content/kind/author
// resolution, embedding rows, and lazily-resolved provenance.
package layer

import (
	"strings"
	"sync/atomic"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/internal/mmap"
)

// ID is one of the four standard layer roles. Lower values are higher
// precedence: Local > User > Delta > Base.
type ID uint8

const (
	Local ID = iota
	User
	Delta
	Base
)

func (id ID) String() string {
	switch id {
	case Local:
		return "local"
	case User:
		return "user"
	case Delta:
		return "delta"
	case Base:
		return "base"
	default:
		return "unknown"
	}
}

// Less reports whether id has strictly higher precedence than other
// (lower enum value wins), implementing the Ord-for-tie-break contract.
func (id ID) Less(other ID) bool { return id < other }

type shared struct {
	mapped *mmap.Mapping
	file   *format.File
	path   string
	refs   atomic.Int32
}

// Handle is a read-only, cheaply cloneable view over one open layer file.
// Clones share the underlying mapping; the mapping is released when the
// last clone is closed.
type Handle struct {
	id ID
	s  *shared
}

// Open memory-maps path and validates it as a layer file.
func Open(path string, id ID) (*Handle, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := format.Decode(m.Bytes())
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	s := &shared{mapped: m, file: f, path: path}
	s.refs.Store(1)
	return &Handle{id: id, s: s}, nil
}

// ID returns the layer's precedence role.
func (h *Handle) ID() ID { return h.id }

// Path returns the filesystem path the handle was opened from.
func (h *Handle) Path() string { return h.s.path }

// Clone returns a new Handle sharing the same mapping. Close must be
// called on every clone independently.
func (h *Handle) Clone() *Handle {
	h.s.refs.Add(1)
	return &Handle{id: h.id, s: h.s}
}

// Close releases this handle's reference to the mapping, unmapping it once
// the last clone has been closed.
func (h *Handle) Close() error {
	if h.s.refs.Add(-1) == 0 {
		return h.s.mapped.Close()
	}
	return nil
}

// ChunkCount returns the number of chunk records, including superseded
// versions.
func (h *Handle) ChunkCount() int { return h.s.file.Chunks.Len() }

// ChunkByIndex returns the raw record at table index i, for iteration.
func (h *Handle) ChunkByIndex(i int) (format.ChunkRecord, bool) {
	return h.s.file.Chunks.At(i)
}

// IDs returns every distinct chunk id present in this layer (latest
// records only are meaningful; callers resolve to the current record via
// ChunkByID).
func (h *Handle) IDs() []format.ChunkID { return h.s.file.Chunks.IDs() }

// ChunkByID returns the latest record for id within this layer.
func (h *Handle) ChunkByID(id format.ChunkID) (format.ChunkRecord, bool) {
	r, _, ok := h.s.file.Chunks.Latest(id)
	return r, ok
}

// Content resolves a chunk record's content string.
func (h *Handle) Content(r format.ChunkRecord) (string, error) {
	return h.s.file.Dict.Lookup(r.ContentStrID)
}

// Kind resolves a chunk record's kind string.
func (h *Handle) Kind(r format.ChunkRecord) (format.Kind, error) {
	s, err := h.s.file.Dict.Lookup(r.KindStrID)
	return format.Kind(s), err
}

// Author resolves a chunk record's author string.
func (h *Handle) Author(r format.ChunkRecord) (format.Author, error) {
	s, err := h.s.file.Dict.Lookup(r.AuthorStrID)
	return format.Author(s), err
}

// Embedding returns the typed float32 view of the chunk's embedding row.
func (h *Handle) Embedding(r format.ChunkRecord) ([]float32, error) {
	return h.s.file.Embeddings.Row(r.EmbeddingRow)
}

// Sources resolves a chunk's provenance references.
func (h *Handle) Sources(r format.ChunkRecord) ([]format.Source, error) {
	if r.RelCount == 0 {
		return nil, nil
	}
	return h.s.file.Relationships.Slice(r.RelStart, r.RelCount, h.s.file.Dict)
}

// Profile returns the raw embedding-profile JSON blob, or nil if this
// layer carries no Layer Metadata section (the default profile applies).
func (h *Handle) Profile() []byte { return h.s.file.Profile() }

// Chunk is a hydrated, owning copy of a chunk record: every field resolved
// out of the mapping so it stays valid after the handle is closed.
type Chunk struct {
	ID          format.ChunkID
	Layer       ID
	Kind        format.Kind
	Content     string
	Author      format.Author
	Confidence  float32
	CreatedAtMs uint64
	Sources     []format.Source
}

// Preview returns the first ~200 characters of Content with internal
// newlines collapsed to single spaces, per the query engine's hydration
// contract.
func (c Chunk) Preview() string {
	collapsed := strings.Join(strings.Fields(c.Content), " ")
	if runes := []rune(collapsed); len(runes) > 200 {
		return string(runes[:200])
	}
	return collapsed
}

// Hydrate resolves a raw record into an owning Chunk.
func (h *Handle) Hydrate(r format.ChunkRecord) (Chunk, error) {
	content, err := h.Content(r)
	if err != nil {
		return Chunk{}, err
	}
	kind, err := h.Kind(r)
	if err != nil {
		return Chunk{}, err
	}
	author, err := h.Author(r)
	if err != nil {
		return Chunk{}, err
	}
	srcs, err := h.Sources(r)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{
		ID:          r.ID,
		Layer:       h.id,
		Kind:        kind,
		Content:     content,
		Author:      author,
		Confidence:  r.Confidence,
		CreatedAtMs: r.CreatedAtMs,
		Sources:     srcs,
	}, nil
}

// HydrateByID looks up id's latest record and hydrates it.
func (h *Handle) HydrateByID(id format.ChunkID) (Chunk, bool, error) {
	r, ok := h.ChunkByID(id)
	if !ok {
		return Chunk{}, false, nil
	}
	c, err := h.Hydrate(r)
	return c, true, err
}

// IsTombstoneFor reports whether record r is a tombstone chunk referencing
// victim via a chunk-id source.
func (h *Handle) IsTombstoneFor(r format.ChunkRecord, victim format.ChunkID) (bool, error) {
	kind, err := h.Kind(r)
	if err != nil {
		return false, err
	}
	if kind != format.KindTombstone {
		return false, nil
	}
	srcs, err := h.Sources(r)
	if err != nil {
		return false, err
	}
	for _, s := range srcs {
		if s.Kind == format.RelationChunkRef && s.ChunkID == victim {
			return true, nil
		}
	}
	return false, nil
}

// TombstonedIDs returns the set of chunk ids that have at least one
// tombstone record in this layer, for building the merge-time exclusion set.
func (h *Handle) TombstonedIDs() (map[format.ChunkID]bool, error) {
	out := map[format.ChunkID]bool{}
	for i := 0; i < h.ChunkCount(); i++ {
		r, _ := h.ChunkByIndex(i)
		kind, err := h.Kind(r)
		if err != nil {
			return nil, err
		}
		if kind != format.KindTombstone {
			continue
		}
		srcs, err := h.Sources(r)
		if err != nil {
			return nil, err
		}
		for _, s := range srcs {
			if s.Kind == format.RelationChunkRef {
				out[s.ChunkID] = true
			}
		}
	}
	return out, nil
}
