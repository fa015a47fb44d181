package format

import "fmt"

// NewChunk describes one chunk to be appended by Writer.Build. ID of 0
// means auto-assign (max(existing_ids)+1, or per-call sequential for a
// batch); a non-zero ID supports edit (reusing an id for a new version)
// and tombstone (referencing an existing id via Sources).
type NewChunk struct {
	ID          ChunkID
	Kind        Kind
	Content     string
	Author      Author
	Confidence  float32
	CreatedAtMs uint64
	Embedding   []float32
	Sources     []Source
}

// ErrSchemaMismatch is returned when a new chunk's embedding dimension or
// the target element type disagrees with the existing matrix.
type ErrSchemaMismatch struct {
	Detail string
}

func (e *ErrSchemaMismatch) Error() string { return "format: schema mismatch: " + e.Detail }

// BuildResult is the outcome of Writer.Build: the fully re-serialized file
// bytes plus the ids assigned to each input chunk, in input order.
type BuildResult struct {
	Bytes       []byte
	AssignedIDs []ChunkID
}

// Writer implements the append algorithm from spec §4.2: load existing
// sections, extend the dictionary preserving ids, append embedding rows,
// append chunk records, extend relationships at the tail only, then
// re-serialize header and section table.
type Writer struct {
	ElementType ElementType
	QuantScale  float32
}

// Build produces the bytes of a new successor file. existing may be nil to
// create a brand new file.
func (w *Writer) Build(existing *File, chunks []NewChunk) (*BuildResult, error) {
	elementType := w.ElementType
	if elementType == 0 {
		elementType = ElementF32
	}
	quantScale := w.QuantScale
	if elementType == ElementF32 {
		quantScale = 1.0
	} else if quantScale == 0 {
		quantScale = 1.0
	}

	var dictEntries []string
	intern := map[string]uint32{}
	var rows [][]float32
	var records []ChunkRecord
	var relKinds []RelationKind
	var relValues []uint32
	var nextID ChunkID
	dim := 0

	if existing != nil {
		dictEntries = append(dictEntries, existing.Dict.All()...)
		for i, s := range dictEntries {
			intern[s] = uint32(i + 1)
		}
		for i := 0; i < existing.Embeddings.Len(); i++ {
			row, err := existing.Embeddings.Row(uint32(i + 1))
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		if existing.ElementType() != elementType {
			return nil, &ErrSchemaMismatch{Detail: fmt.Sprintf("existing element type %v, requested %v", existing.ElementType(), elementType)}
		}
		dim = int(existing.Embeddings.Dim)
		for i := 0; i < existing.Chunks.Len(); i++ {
			r, _ := existing.Chunks.At(i)
			records = append(records, r)
		}
		if existing.Relationships != nil {
			for i := 0; i < existing.Relationships.Len(); i++ {
				k, v := existing.Relationships.raw(i)
				relKinds = append(relKinds, k)
				relValues = append(relValues, v)
			}
		}
		nextID = existing.Chunks.MaxID()
	}

	internStr := func(s string) uint32 {
		if id, ok := intern[s]; ok {
			return id
		}
		dictEntries = append(dictEntries, s)
		id := uint32(len(dictEntries))
		intern[s] = id
		return id
	}

	assigned := make([]ChunkID, len(chunks))
	for i, c := range chunks {
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return nil, &ErrSchemaMismatch{Detail: fmt.Sprintf("chunk %d: embedding dim %d, expected %d", i, len(c.Embedding), dim)}
		}
		id := c.ID
		if id == 0 {
			nextID++
			id = nextID
		} else if id > nextID {
			nextID = id
		}
		assigned[i] = id

		rows = append(rows, c.Embedding)
		embeddingRow := uint32(len(rows))

		relStart := uint32(len(relKinds))
		for _, src := range c.Sources {
			switch src.Kind {
			case RelationChunkRef:
				relKinds = append(relKinds, RelationChunkRef)
				relValues = append(relValues, uint32(src.ChunkID))
			case RelationStringRef:
				relKinds = append(relKinds, RelationStringRef)
				relValues = append(relValues, internStr(src.Ref))
			}
		}

		records = append(records, ChunkRecord{
			ID:           id,
			KindStrID:    internStr(string(c.Kind)),
			ContentStrID: internStr(c.Content),
			AuthorStrID:  internStr(string(c.Author)),
			Confidence:   c.Confidence,
			CreatedAtMs:  c.CreatedAtMs,
			EmbeddingRow: embeddingRow,
			RelStart:     relStart,
			RelCount:     uint32(len(relKinds)) - relStart,
		})
	}

	dictPayload := EncodeStringDict(dictEntries)
	chunksPayload := EncodeChunkTable(records)
	embeddingPayload := EncodeEmbeddingMatrix(rows, elementType, quantScale)
	var relPayload []byte
	if len(relKinds) > 0 {
		relPayload = EncodeRelationships(relKinds, relValues)
	}
	var metaPayload []byte
	if existing != nil && existing.Metadata != nil {
		metaPayload = EncodeLayerMetadata(existing.Metadata.Version, existing.Metadata.Blob)
	}

	entries := []SectionEntry{}
	offset := uint64(HeaderSize)

	place := func(kind SectionKind, payload []byte) {
		if payload == nil {
			return
		}
		entries = append(entries, SectionEntry{Kind: kind, Offset: offset, Length: uint64(len(payload))})
		offset += uint64(len(payload))
	}
	place(SectionStringDictionary, dictPayload)
	place(SectionChunkTable, chunksPayload)
	place(SectionEmbeddingMatrix, embeddingPayload)
	place(SectionRelationships, relPayload)
	place(SectionLayerMetadata, metaPayload)

	sectionsOffset := offset
	fileLength := sectionsOffset + uint64(len(entries))*SectionEntrySize

	header := Header{
		Magic:           Magic,
		VersionMajor:    VersionMajor,
		VersionMinor:    VersionMinor,
		FileLengthBytes: fileLength,
		SectionCount:    uint64(len(entries)),
		SectionsOffset:  sectionsOffset,
	}

	out := make([]byte, fileLength)
	hdrBuf := header.Encode()
	copy(out, hdrBuf[:])
	for _, e := range entries {
		copy(out[e.Offset:], sectionPayloadFor(e.Kind, dictPayload, chunksPayload, embeddingPayload, relPayload, metaPayload))
	}
	for i, e := range entries {
		enc := e.Encode()
		copy(out[sectionsOffset+uint64(i)*SectionEntrySize:], enc[:])
	}

	return &BuildResult{Bytes: out, AssignedIDs: assigned}, nil
}

func sectionPayloadFor(kind SectionKind, dict, chunks, emb, rel, meta []byte) []byte {
	switch kind {
	case SectionStringDictionary:
		return dict
	case SectionChunkTable:
		return chunks
	case SectionEmbeddingMatrix:
		return emb
	case SectionRelationships:
		return rel
	case SectionLayerMetadata:
		return meta
	default:
		return nil
	}
}

// ElementType returns the element type of the file's embedding matrix.
func (f *File) ElementType() ElementType { return f.Embeddings.ElementType }

// raw exposes the i-th relationship record's (kind, value) pair for the
// writer's copy-forward pass.
func (r *Relationships) raw(i int) (RelationKind, uint32) {
	rec := r.records[i]
	return rec.Kind, rec.Value
}
