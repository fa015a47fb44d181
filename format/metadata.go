package format

import "encoding/binary"

// MetadataHeaderSize is the size of the Layer Metadata section header,
// preceding the UTF-8 JSON blob.
const MetadataHeaderSize = 24

// LayerMetadataFormatJSON identifies a JSON-encoded metadata blob, the only
// encoding defined.
const LayerMetadataFormatJSON uint32 = 1

// LayerMetadata is a decoded view of the optional Layer Metadata section:
// a version/format tag plus the raw embedding-profile JSON blob.
type LayerMetadata struct {
	Version uint32
	Format  uint32
	Blob    []byte
}

// EncodeLayerMetadata serializes a JSON blob into the section payload format.
func EncodeLayerMetadata(version uint32, blob []byte) []byte {
	out := make([]byte, MetadataHeaderSize+len(blob))
	binary.LittleEndian.PutUint32(out[0:4], version)
	binary.LittleEndian.PutUint32(out[4:8], LayerMetadataFormatJSON)
	binary.LittleEndian.PutUint64(out[8:16], MetadataHeaderSize)
	binary.LittleEndian.PutUint64(out[16:24], uint64(len(blob)))
	copy(out[MetadataHeaderSize:], blob)
	return out
}

// DecodeLayerMetadata parses a Layer Metadata section payload.
func DecodeLayerMetadata(payload []byte, sectionOffset int64) (*LayerMetadata, error) {
	if len(payload) < MetadataHeaderSize {
		return nil, newError(KindTruncatedFile, sectionOffset, "layer metadata header truncated")
	}
	m := &LayerMetadata{
		Version: binary.LittleEndian.Uint32(payload[0:4]),
		Format:  binary.LittleEndian.Uint32(payload[4:8]),
	}
	blobOffset := binary.LittleEndian.Uint64(payload[8:16])
	blobLength := binary.LittleEndian.Uint64(payload[16:24])
	if blobOffset+blobLength > uint64(len(payload)) {
		return nil, newError(KindCorruptReference, sectionOffset+int64(blobOffset), "layer metadata blob exceeds section")
	}
	m.Blob = payload[blobOffset : blobOffset+blobLength]
	return m, nil
}
