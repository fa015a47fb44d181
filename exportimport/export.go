package exportimport

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
)

// ExportLayer builds a LayerDoc for one open layer handle, applying
// redaction to every chunk's content/embedding.
func ExportLayer(h *layer.Handle, relPath string, redact RedactionMode) (LayerDoc, error) {
	doc := LayerDoc{
		Path:  relPath,
		Layer: LogicalLayerForPath(relPath),
	}

	ids := h.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	doc.Chunks = make([]ChunkDoc, 0, len(ids))
	var dim uint32
	for _, id := range ids {
		rec, ok := h.ChunkByID(id)
		if !ok {
			continue
		}
		chunk, _, err := h.HydrateByID(id)
		if err != nil {
			return LayerDoc{}, fmt.Errorf("exportimport: hydrate chunk %d: %w", id, err)
		}
		embedding, err := h.Embedding(rec)
		if err != nil {
			return LayerDoc{}, fmt.Errorf("exportimport: embedding for chunk %d: %w", id, err)
		}
		dim = uint32(len(embedding))

		content, emb := applyRedaction(redact, chunk.Content, embedding)
		cd := ChunkDoc{
			ID:          chunk.ID,
			Kind:        chunk.Kind,
			Content:     content,
			Author:      chunk.Author,
			Confidence:  chunk.Confidence,
			CreatedAtMs: chunk.CreatedAtMs,
			Embedding:   emb,
		}
		if content != nil {
			cd.ContentSHA256 = contentSHA256Hex(*content)
		}
		for _, s := range chunk.Sources {
			cd.Sources = append(cd.Sources, sourceToDoc(s))
		}
		doc.Chunks = append(doc.Chunks, cd)
	}

	doc.Schema = LayerSchema{Dim: dim, ElementType: elementTypeString(format.ElementF32), QuantScale: 1}
	if blob := h.Profile(); len(blob) > 0 {
		doc.LayerMetadataRaw = string(blob)
	}
	return doc, nil
}

// ExportBundle writes one or more layers into a single JSON Bundle.
func ExportBundle(layers []LayerDoc, tool ToolInfo) Bundle {
	return Bundle{Format: BundleFormat, Tool: tool, Layers: layers}
}

// MarshalJSON renders a Bundle as pretty-printed JSON, matching the
// human-inspectable export file shape.
func MarshalJSON(b Bundle) ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// MarshalNDJSON renders layers as a newline-delimited record stream: one
// header record, then for each layer one layer record followed by one
// chunk record per chunk. This lets a consumer stream a large export
// without buffering the whole bundle.
func MarshalNDJSON(layers []LayerDoc, tool ToolInfo) ([]byte, error) {
	var out []byte
	header := NDJSONRecord{Type: "header", Format: NDJSONFormat, Tool: tool}
	line, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out = append(out, line...)
	out = append(out, '\n')

	for _, l := range layers {
		rec := NDJSONRecord{
			Type: "layer", Path: l.Path, Layer: l.Layer,
			Schema: l.Schema, LayerMetadataRaw: l.LayerMetadataRaw,
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, line...)
		out = append(out, '\n')

		for _, c := range l.Chunks {
			rec := NDJSONRecord{Type: "chunk", LayerPath: l.Path, Chunk: c}
			line, err := json.Marshal(rec)
			if err != nil {
				return nil, err
			}
			out = append(out, line...)
			out = append(out, '\n')
		}
	}
	return out, nil
}
