package format

import "encoding/binary"

// Header is the fixed 40-byte structure at the start of every layer file.
type Header struct {
	Magic            uint32
	VersionMajor     uint16
	VersionMinor     uint16
	FileLengthBytes  uint64
	SectionCount     uint64
	SectionsOffset   uint64
	Flags            uint64
}

// Encode writes the header to a 40-byte buffer at explicit byte offsets,
// matching vectorstore/columnar's checksummed-header style rather than
// binary.Write, since field order and width here are load-bearing wire
// format, not a Go struct layout.
func (h Header) Encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.VersionMajor)
	binary.LittleEndian.PutUint16(buf[6:8], h.VersionMinor)
	binary.LittleEndian.PutUint64(buf[8:16], h.FileLengthBytes)
	binary.LittleEndian.PutUint64(buf[16:24], h.SectionCount)
	binary.LittleEndian.PutUint64(buf[24:32], h.SectionsOffset)
	binary.LittleEndian.PutUint64(buf[32:40], h.Flags)
	return buf
}

// DecodeHeader parses and validates the header at the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, newError(KindTruncatedFile, int64(len(buf)), "header shorter than 40 bytes")
	}
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	if h.Magic != Magic {
		return h, newError(KindBadMagic, 0, "unexpected magic value")
	}
	h.VersionMajor = binary.LittleEndian.Uint16(buf[4:6])
	h.VersionMinor = binary.LittleEndian.Uint16(buf[6:8])
	if h.VersionMajor != VersionMajor {
		return h, newError(KindBadVersion, 4, "unsupported major version")
	}
	h.FileLengthBytes = binary.LittleEndian.Uint64(buf[8:16])
	h.SectionCount = binary.LittleEndian.Uint64(buf[16:24])
	h.SectionsOffset = binary.LittleEndian.Uint64(buf[24:32])
	h.Flags = binary.LittleEndian.Uint64(buf[32:40])
	return h, nil
}

// SectionEntry describes the location of one section within the file.
type SectionEntry struct {
	Kind     SectionKind
	Reserved uint32
	Offset   uint64
	Length   uint64
}

// Encode writes the section entry to a 24-byte buffer.
func (s SectionEntry) Encode() [SectionEntrySize]byte {
	var buf [SectionEntrySize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], s.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], s.Offset)
	binary.LittleEndian.PutUint64(buf[16:24], s.Length)
	return buf
}

// DecodeSectionEntry parses one section entry from buf.
func DecodeSectionEntry(buf []byte) SectionEntry {
	return SectionEntry{
		Kind:     SectionKind(binary.LittleEndian.Uint32(buf[0:4])),
		Reserved: binary.LittleEndian.Uint32(buf[4:8]),
		Offset:   binary.LittleEndian.Uint64(buf[8:16]),
		Length:   binary.LittleEndian.Uint64(buf[16:24]),
	}
}
