package format

import "encoding/binary"

// ChunkTableHeaderSize is the size of the Chunk Table section header,
// preceding the packed chunk records.
const ChunkTableHeaderSize = 16

// ChunkRecordSize is the fixed size in bytes of one chunk record, with no
// implicit padding.
//
// rel_start is encoded as a u32 row index into the Relationships section
// (not a u64 byte offset): at u64 width the record would be 52 bytes, which
// contradicts the "48 bytes, no implicit padding" contract, and a row index
// is all rel_start is ever used for.
const ChunkRecordSize = 48

// ChunkRecord is one decoded row of the Chunk Table.
type ChunkRecord struct {
	ID             ChunkID
	KindStrID      uint32
	ContentStrID   uint32
	AuthorStrID    uint32
	Confidence     float32
	CreatedAtMs    uint64
	EmbeddingRow   uint32
	RelStart       uint32
	RelCount       uint32
}

// Encode writes the record to a 48-byte buffer at fixed offsets.
func (r ChunkRecord) Encode() [ChunkRecordSize]byte {
	var buf [ChunkRecordSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.ID))
	binary.LittleEndian.PutUint32(buf[4:8], r.KindStrID)
	binary.LittleEndian.PutUint32(buf[8:12], r.ContentStrID)
	binary.LittleEndian.PutUint32(buf[12:16], r.AuthorStrID)
	binary.LittleEndian.PutUint32(buf[16:20], float32bits(r.Confidence))
	binary.LittleEndian.PutUint64(buf[20:28], r.CreatedAtMs)
	binary.LittleEndian.PutUint32(buf[28:32], r.EmbeddingRow)
	binary.LittleEndian.PutUint32(buf[32:36], 0) // reserved0
	binary.LittleEndian.PutUint32(buf[36:40], r.RelStart)
	binary.LittleEndian.PutUint32(buf[40:44], r.RelCount)
	binary.LittleEndian.PutUint32(buf[44:48], 0) // reserved1
	return buf
}

// DecodeChunkRecord parses one 48-byte chunk record from buf.
func DecodeChunkRecord(buf []byte) ChunkRecord {
	return ChunkRecord{
		ID:           ChunkID(binary.LittleEndian.Uint32(buf[0:4])),
		KindStrID:    binary.LittleEndian.Uint32(buf[4:8]),
		ContentStrID: binary.LittleEndian.Uint32(buf[8:12]),
		AuthorStrID:  binary.LittleEndian.Uint32(buf[12:16]),
		Confidence:   float32frombits(binary.LittleEndian.Uint32(buf[16:20])),
		CreatedAtMs:  binary.LittleEndian.Uint64(buf[20:28]),
		EmbeddingRow: binary.LittleEndian.Uint32(buf[28:32]),
		RelStart:     binary.LittleEndian.Uint32(buf[36:40]),
		RelCount:     binary.LittleEndian.Uint32(buf[40:44]),
	}
}

// ChunkTable is a decoded view of the Chunk Table section.
type ChunkTable struct {
	records []ChunkRecord
	// latest maps a chunk id to the index of its newest record.
	latest map[ChunkID]int
}

// NewChunkTable builds a ChunkTable from records in write order, computing
// the id-to-latest-index map once, the way layer.Open caches it rather than
// resolving it per call.
func NewChunkTable(records []ChunkRecord) *ChunkTable {
	latest := make(map[ChunkID]int, len(records))
	for i, r := range records {
		latest[r.ID] = i
	}
	return &ChunkTable{records: records, latest: latest}
}

// Len returns the number of records, including superseded versions.
func (t *ChunkTable) Len() int { return len(t.records) }

// At returns the record at the given table index.
func (t *ChunkTable) At(i int) (ChunkRecord, bool) {
	if i < 0 || i >= len(t.records) {
		return ChunkRecord{}, false
	}
	return t.records[i], true
}

// Latest returns the newest record for id, and whether it exists at all.
func (t *ChunkTable) Latest(id ChunkID) (ChunkRecord, int, bool) {
	idx, ok := t.latest[id]
	if !ok {
		return ChunkRecord{}, -1, false
	}
	return t.records[idx], idx, true
}

// IDs returns every distinct chunk id present in the table (including
// superseded ones), in no particular order.
func (t *ChunkTable) IDs() []ChunkID {
	ids := make([]ChunkID, 0, len(t.latest))
	for id := range t.latest {
		ids = append(ids, id)
	}
	return ids
}

// MaxID returns the highest chunk id present in the table, for default id
// assignment (max(existing_ids)+1).
func (t *ChunkTable) MaxID() ChunkID {
	var max ChunkID
	for _, r := range t.records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max
}

// EncodeChunkTable serializes records into the section payload format:
// header followed by packed fixed-size records.
func EncodeChunkTable(records []ChunkRecord) []byte {
	out := make([]byte, ChunkTableHeaderSize+len(records)*ChunkRecordSize)
	binary.LittleEndian.PutUint64(out[0:8], uint64(len(records)))
	binary.LittleEndian.PutUint64(out[8:16], ChunkTableHeaderSize)
	for i, r := range records {
		enc := r.Encode()
		copy(out[ChunkTableHeaderSize+i*ChunkRecordSize:], enc[:])
	}
	return out
}

// DecodeChunkTable parses a Chunk Table section payload.
func DecodeChunkTable(payload []byte, sectionOffset int64) (*ChunkTable, error) {
	if len(payload) < ChunkTableHeaderSize {
		return nil, newError(KindTruncatedFile, sectionOffset, "chunk table header truncated")
	}
	count := binary.LittleEndian.Uint64(payload[0:8])
	recordsOffset := binary.LittleEndian.Uint64(payload[8:16])

	need := recordsOffset + count*ChunkRecordSize
	if need > uint64(len(payload)) {
		return nil, newError(KindCorruptReference, sectionOffset+int64(recordsOffset), "chunk table records exceed section")
	}
	records := make([]ChunkRecord, count)
	for i := uint64(0); i < count; i++ {
		off := recordsOffset + i*ChunkRecordSize
		records[i] = DecodeChunkRecord(payload[off : off+ChunkRecordSize])
	}
	return NewChunkTable(records), nil
}
