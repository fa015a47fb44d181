package format

import "fmt"

// File is a fully validated, decoded view over one layer file's bytes.
// Decoding copies the dictionary strings, chunk records and relationship
// records into Go values, so their size grows with the file; only the
// embedding matrix data and the metadata blob alias the input buffer
// (zero-copy when that buffer is an mmap region, as layer.Open supplies).
type File struct {
	Header   Header
	Sections []SectionEntry

	Dict          *StringDict
	Chunks        *ChunkTable
	Embeddings    *EmbeddingMatrix
	Relationships *Relationships // nil if absent
	Metadata      *LayerMetadata // nil if absent
}

// Decode validates and parses a complete layer file image held in buf.
// Validation follows spec's "Validation on open" list: magic, version,
// section-count sanity, each section fully contained in the file,
// file_length_bytes matches the actual length, required sections present,
// referenced offsets in range, string ids in range, embedding rows in range.
func Decode(buf []byte) (*File, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.FileLengthBytes != uint64(len(buf)) {
		return nil, newError(KindTruncatedFile, int64(len(buf)), fmt.Sprintf("file_length_bytes=%d but actual length=%d", h.FileLengthBytes, len(buf)))
	}
	if h.SectionCount == 0 || h.SectionCount > 64 {
		return nil, newError(KindCorruptReference, 16, "implausible section_count")
	}

	need := h.SectionsOffset + h.SectionCount*SectionEntrySize
	if need > uint64(len(buf)) {
		return nil, newError(KindCorruptReference, int64(h.SectionsOffset), "section table exceeds file")
	}

	sections := make([]SectionEntry, h.SectionCount)
	seen := map[SectionKind]bool{}
	for i := uint64(0); i < h.SectionCount; i++ {
		off := h.SectionsOffset + i*SectionEntrySize
		e := DecodeSectionEntry(buf[off : off+SectionEntrySize])
		if e.Offset+e.Length > uint64(len(buf)) {
			return nil, newError(KindCorruptReference, int64(e.Offset), fmt.Sprintf("section %s exceeds file", e.Kind))
		}
		sections[i] = e
		seen[e.Kind] = true
	}
	for _, required := range []SectionKind{SectionStringDictionary, SectionChunkTable, SectionEmbeddingMatrix} {
		if !seen[required] {
			return nil, newError(KindMissingSection, 0, fmt.Sprintf("missing required section %s", required))
		}
	}

	f := &File{Header: h, Sections: sections}
	for _, e := range sections {
		payload := buf[e.Offset : e.Offset+e.Length]
		switch e.Kind {
		case SectionStringDictionary:
			d, err := DecodeStringDict(payload, int64(e.Offset))
			if err != nil {
				return nil, err
			}
			f.Dict = d
		case SectionChunkTable:
			t, err := DecodeChunkTable(payload, int64(e.Offset))
			if err != nil {
				return nil, err
			}
			f.Chunks = t
		case SectionEmbeddingMatrix:
			m, err := DecodeEmbeddingMatrix(payload, int64(e.Offset))
			if err != nil {
				return nil, err
			}
			f.Embeddings = m
		case SectionRelationships:
			r, err := DecodeRelationships(payload, int64(e.Offset))
			if err != nil {
				return nil, err
			}
			f.Relationships = r
		case SectionLayerMetadata:
			m, err := DecodeLayerMetadata(payload, int64(e.Offset))
			if err != nil {
				return nil, err
			}
			f.Metadata = m
		}
	}

	if err := f.validateReferences(); err != nil {
		return nil, err
	}
	return f, nil
}

// validateReferences checks that every chunk's string ids and embedding row
// resolve within range, and that its relationship range (if any) is valid.
func (f *File) validateReferences() error {
	dictLen := uint32(f.Dict.Len())
	for i := 0; i < f.Chunks.Len(); i++ {
		r, _ := f.Chunks.At(i)
		if r.KindStrID == 0 || r.KindStrID > dictLen {
			return newError(KindCorruptReference, int64(r.KindStrID), "chunk kind_str_id out of range")
		}
		if r.ContentStrID == 0 || r.ContentStrID > dictLen {
			return newError(KindCorruptReference, int64(r.ContentStrID), "chunk content_str_id out of range")
		}
		if r.AuthorStrID == 0 || r.AuthorStrID > dictLen {
			return newError(KindCorruptReference, int64(r.AuthorStrID), "chunk author_str_id out of range")
		}
		if r.EmbeddingRow == 0 || uint64(r.EmbeddingRow) > f.Embeddings.RowCount {
			return newError(KindCorruptReference, int64(r.EmbeddingRow), "chunk embedding_row out of range")
		}
		if r.RelCount > 0 {
			if f.Relationships == nil {
				return newError(KindMissingSection, 0, "chunk references relationships but section is absent")
			}
			if uint64(r.RelStart)+uint64(r.RelCount) > uint64(f.Relationships.Len()) {
				return newError(KindCorruptReference, int64(r.RelStart), "chunk relationship range out of bounds")
			}
		}
	}
	return nil
}

// Profile returns the raw embedding-profile JSON blob, or nil if this file
// carries no Layer Metadata section.
func (f *File) Profile() []byte {
	if f.Metadata == nil {
		return nil
	}
	return f.Metadata.Blob
}
