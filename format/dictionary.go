package format

import "encoding/binary"

// StringDictHeaderSize is the fixed size of the String Dictionary section
// header, preceding its entries array and byte blob.
const StringDictHeaderSize = 32

// dictEntrySize is the size of one (byte_offset_from_bytes_offset, byte_length)
// entry.
const dictEntrySize = 8

// StringDict is a decoded view of the String Dictionary section: a 1-based
// array of UTF-8 string entries, id 0 meaning "unset".
type StringDict struct {
	// entries[i] holds the string previously assigned id i+1.
	entries []string
}

// NewStringDict builds a dictionary from an ordered slice of strings;
// entries[0] receives id 1.
func NewStringDict(entries []string) *StringDict {
	return &StringDict{entries: entries}
}

// Len returns the number of interned strings.
func (d *StringDict) Len() int { return len(d.entries) }

// Lookup resolves a 1-based string id to its UTF-8 text. id 0 returns "".
func (d *StringDict) Lookup(id uint32) (string, error) {
	if id == 0 {
		return "", nil
	}
	idx := int(id) - 1
	if idx < 0 || idx >= len(d.entries) {
		return "", newError(KindCorruptReference, int64(id), "string id out of range")
	}
	return d.entries[idx], nil
}

// All returns the interned strings in id order (entries[0] is id 1).
func (d *StringDict) All() []string { return d.entries }

// EncodeStringDict serializes a dictionary into the section payload format:
// header, entries array, contiguous UTF-8 blob.
func EncodeStringDict(entries []string) []byte {
	bytesOffsetInSection := uint64(StringDictHeaderSize + len(entries)*dictEntrySize)

	var blob []byte
	type span struct{ off, length uint32 }
	spans := make([]span, len(entries))
	for i, s := range entries {
		spans[i] = span{off: uint32(len(blob)), length: uint32(len(s))}
		blob = append(blob, s...)
	}

	out := make([]byte, bytesOffsetInSection+uint64(len(blob)))
	binary.LittleEndian.PutUint64(out[0:8], uint64(len(entries)))
	binary.LittleEndian.PutUint64(out[8:16], StringDictHeaderSize)      // entries_offset (section-relative)
	binary.LittleEndian.PutUint64(out[16:24], bytesOffsetInSection)     // bytes_offset (section-relative)
	binary.LittleEndian.PutUint64(out[24:32], uint64(len(blob)))        // bytes_length

	entryBuf := out[StringDictHeaderSize:bytesOffsetInSection]
	for i, s := range spans {
		binary.LittleEndian.PutUint32(entryBuf[i*dictEntrySize:i*dictEntrySize+4], s.off)
		binary.LittleEndian.PutUint32(entryBuf[i*dictEntrySize+4:i*dictEntrySize+8], s.length)
	}
	copy(out[bytesOffsetInSection:], blob)
	return out
}

// DecodeStringDict parses a String Dictionary section payload (the bytes
// spanned by its section table entry, offsets within it taken relative to
// the start of this payload).
func DecodeStringDict(payload []byte, sectionOffset int64) (*StringDict, error) {
	if len(payload) < StringDictHeaderSize {
		return nil, newError(KindTruncatedFile, sectionOffset, "string dictionary header truncated")
	}
	count := binary.LittleEndian.Uint64(payload[0:8])
	entriesOffset := binary.LittleEndian.Uint64(payload[8:16])
	bytesOffset := binary.LittleEndian.Uint64(payload[16:24])
	bytesLength := binary.LittleEndian.Uint64(payload[24:32])

	need := entriesOffset + count*dictEntrySize
	if need > uint64(len(payload)) {
		return nil, newError(KindCorruptReference, sectionOffset+int64(entriesOffset), "string dictionary entries exceed section")
	}
	if bytesOffset+bytesLength > uint64(len(payload)) {
		return nil, newError(KindCorruptReference, sectionOffset+int64(bytesOffset), "string dictionary blob exceeds section")
	}

	blob := payload[bytesOffset : bytesOffset+bytesLength]
	entries := make([]string, count)
	entryBuf := payload[entriesOffset:need]
	for i := uint64(0); i < count; i++ {
		off := binary.LittleEndian.Uint32(entryBuf[i*dictEntrySize : i*dictEntrySize+4])
		length := binary.LittleEndian.Uint32(entryBuf[i*dictEntrySize+4 : i*dictEntrySize+8])
		if uint64(off)+uint64(length) > uint64(len(blob)) {
			return nil, newError(KindCorruptReference, sectionOffset+int64(bytesOffset)+int64(off), "string entry exceeds blob")
		}
		entries[i] = string(blob[off : off+length])
	}
	return &StringDict{entries: entries}, nil
}
