package format

import "encoding/binary"

// EmbeddingHeaderSize is the size of the Embedding Matrix section header,
// preceding the row-major packed data.
const EmbeddingHeaderSize = 40

// EmbeddingMatrix is a decoded view of the Embedding Matrix section: a
// row-major, tightly packed matrix of row_count x dim elements.
type EmbeddingMatrix struct {
	RowCount    uint64
	Dim         uint32
	ElementType ElementType
	QuantScale  float32
	data        []byte
}

func elementSize(t ElementType) int {
	switch t {
	case ElementF32:
		return 4
	case ElementI8:
		return 1
	default:
		return 0
	}
}

// Len returns the number of rows held.
func (m *EmbeddingMatrix) Len() int { return int(m.RowCount) }

// Row returns the 1-based row as a float32 slice, converting from the
// stored element type (i8 rows are expanded by quant_scale).
func (m *EmbeddingMatrix) Row(row uint32) ([]float32, error) {
	if row == 0 || uint64(row) > m.RowCount {
		return nil, newError(KindCorruptReference, int64(row), "embedding row out of range")
	}
	sz := elementSize(m.ElementType)
	idx := int(row-1) * sz * int(m.Dim)
	raw := m.data[idx : idx+sz*int(m.Dim)]

	out := make([]float32, m.Dim)
	switch m.ElementType {
	case ElementF32:
		for i := range out {
			out[i] = float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
		}
	case ElementI8:
		for i := range out {
			out[i] = float32(int8(raw[i])) * m.QuantScale
		}
	}
	return out, nil
}

// EncodeEmbeddingMatrix serializes float32 rows into the section payload
// format, converting them to the target element type: i8 values are
// v/quantScale truncated toward zero and clamped to [-128, 127].
func EncodeEmbeddingMatrix(rows [][]float32, elementType ElementType, quantScale float32) []byte {
	dim := 0
	if len(rows) > 0 {
		dim = len(rows[0])
	}
	sz := elementSize(elementType)
	data := make([]byte, len(rows)*sz*dim)
	for i, row := range rows {
		base := i * sz * dim
		switch elementType {
		case ElementF32:
			for j, v := range row {
				binary.LittleEndian.PutUint32(data[base+j*4:base+j*4+4], float32bits(v))
			}
		case ElementI8:
			for j, v := range row {
				q := int32(v / quantScale)
				if q > 127 {
					q = 127
				}
				if q < -128 {
					q = -128
				}
				data[base+j] = byte(int8(q))
			}
		}
	}

	out := make([]byte, EmbeddingHeaderSize+len(data))
	binary.LittleEndian.PutUint64(out[0:8], uint64(len(rows)))
	binary.LittleEndian.PutUint32(out[8:12], uint32(dim))
	binary.LittleEndian.PutUint32(out[12:16], uint32(elementType))
	binary.LittleEndian.PutUint64(out[16:24], EmbeddingHeaderSize)
	binary.LittleEndian.PutUint64(out[24:32], uint64(len(data)))
	scale := quantScale
	if elementType == ElementF32 {
		scale = 1.0
	}
	binary.LittleEndian.PutUint32(out[32:36], float32bits(scale))
	copy(out[EmbeddingHeaderSize:], data)
	return out
}

// DecodeEmbeddingMatrix parses an Embedding Matrix section payload.
func DecodeEmbeddingMatrix(payload []byte, sectionOffset int64) (*EmbeddingMatrix, error) {
	if len(payload) < EmbeddingHeaderSize {
		return nil, newError(KindTruncatedFile, sectionOffset, "embedding matrix header truncated")
	}
	m := &EmbeddingMatrix{
		RowCount:    binary.LittleEndian.Uint64(payload[0:8]),
		Dim:         binary.LittleEndian.Uint32(payload[8:12]),
		ElementType: ElementType(binary.LittleEndian.Uint32(payload[12:16])),
	}
	dataOffset := binary.LittleEndian.Uint64(payload[16:24])
	dataLength := binary.LittleEndian.Uint64(payload[24:32])
	m.QuantScale = float32frombits(binary.LittleEndian.Uint32(payload[32:36]))

	if m.ElementType != ElementF32 && m.ElementType != ElementI8 {
		return nil, newError(KindCorruptReference, sectionOffset+12, "unknown embedding element type")
	}
	if m.ElementType == ElementF32 && m.QuantScale != 1.0 {
		return nil, newError(KindCorruptReference, sectionOffset+32, "f32 matrix must have quant_scale == 1.0")
	}
	if m.ElementType == ElementI8 && m.QuantScale == 0 {
		return nil, newError(KindCorruptReference, sectionOffset+32, "i8 matrix must have non-zero quant_scale")
	}
	if dataOffset+dataLength > uint64(len(payload)) {
		return nil, newError(KindCorruptReference, sectionOffset+int64(dataOffset), "embedding data exceeds section")
	}
	want := m.RowCount * uint64(m.Dim) * uint64(elementSize(m.ElementType))
	if dataLength != want {
		return nil, newError(KindCorruptReference, sectionOffset+int64(dataOffset), "embedding data length does not match row_count*dim*element_size")
	}
	m.data = payload[dataOffset : dataOffset+dataLength]
	return m, nil
}
