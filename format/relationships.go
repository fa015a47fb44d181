package format

import "encoding/binary"

// relationRecordSize is the size of one (kind u32, value u32) relationship
// record.
const relationRecordSize = 8

// Relationships is a decoded view of the optional Relationships section: a
// flat array of source references, sliced per chunk via [RelStart, RelStart+RelCount).
type Relationships struct {
	records []relationRecord
}

type relationRecord struct {
	Kind  RelationKind
	Value uint32
}

// Len returns the number of relationship records.
func (r *Relationships) Len() int { return len(r.records) }

// Slice returns the Source values for the half-open range [start, start+count),
// resolving string references through dict.
func (r *Relationships) Slice(start, count uint32, dict *StringDict) ([]Source, error) {
	if uint64(start)+uint64(count) > uint64(len(r.records)) {
		return nil, newError(KindCorruptReference, int64(start), "relationship range out of bounds")
	}
	out := make([]Source, 0, count)
	for i := start; i < start+count; i++ {
		rec := r.records[i]
		switch rec.Kind {
		case RelationChunkRef:
			out = append(out, SourceChunk(ChunkID(rec.Value)))
		case RelationStringRef:
			s, err := dict.Lookup(rec.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, SourceRef(s))
		default:
			return nil, newError(KindCorruptReference, int64(i)*relationRecordSize, "unknown relationship kind")
		}
	}
	return out, nil
}

// EncodeRelationships serializes a flat list of (kind, value) pairs built
// by the writer while assigning new chunk records.
func EncodeRelationships(kinds []RelationKind, values []uint32) []byte {
	out := make([]byte, len(kinds)*relationRecordSize)
	for i := range kinds {
		binary.LittleEndian.PutUint32(out[i*relationRecordSize:i*relationRecordSize+4], uint32(kinds[i]))
		binary.LittleEndian.PutUint32(out[i*relationRecordSize+4:i*relationRecordSize+8], values[i])
	}
	return out
}

// DecodeRelationships parses a Relationships section payload. There is no
// section-local header; the record count is derived from the section's
// byte length (length / 8), consistent with the section table already
// recording the section's extent.
func DecodeRelationships(payload []byte, sectionOffset int64) (*Relationships, error) {
	if len(payload)%relationRecordSize != 0 {
		return nil, newError(KindTruncatedFile, sectionOffset, "relationships section length not a multiple of 8")
	}
	n := len(payload) / relationRecordSize
	records := make([]relationRecord, n)
	for i := 0; i < n; i++ {
		off := i * relationRecordSize
		records[i] = relationRecord{
			Kind:  RelationKind(binary.LittleEndian.Uint32(payload[off : off+4])),
			Value: binary.LittleEndian.Uint32(payload[off+4 : off+8]),
		}
	}
	return &Relationships{records: records}, nil
}
