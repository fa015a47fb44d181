// Package exportimport implements the JSON and NDJSON export/import bundle
// format: a portable, versioned snapshot of one or more layer files with
// optional content/embedding redaction and content-hash dedupe on import.
package exportimport

import "github.com/agentsdb/agentsdb/format"

// BundleFormat is the value of Bundle.Format for the JSON envelope.
const BundleFormat = "agentsdb.export.v1"

// NDJSONFormat is the value of the header record's Format for the NDJSON
// envelope.
const NDJSONFormat = "agentsdb.export.ndjson.v1"

// ToolInfo identifies the program that produced a bundle.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Bundle is the top-level JSON export envelope: a versioned snapshot of one
// or more layer files.
type Bundle struct {
	Format string     `json:"format"`
	Tool   ToolInfo   `json:"tool"`
	Layers []LayerDoc `json:"layers"`
}

// LayerSchema records the embedding matrix shape a layer was exported
// with, so import can validate or recreate it. ElementType is "f32" or
// "i8", matching the on-disk element type names rather than the numeric
// format.ElementType encoding, for readability in the export file.
type LayerSchema struct {
	Dim         uint32  `json:"dim"`
	ElementType string  `json:"element_type"`
	QuantScale  float32 `json:"quant_scale"`
}

func elementTypeString(t format.ElementType) string {
	switch t {
	case format.ElementI8:
		return "i8"
	default:
		return "f32"
	}
}

func parseElementType(s string) format.ElementType {
	if s == "i8" {
		return format.ElementI8
	}
	return format.ElementF32
}

// LayerDoc is one exported layer file: its path, optional logical scope,
// schema, raw layer-metadata JSON (if present), and chunks.
type LayerDoc struct {
	Path             string      `json:"path"`
	Layer            string      `json:"layer,omitempty"`
	Schema           LayerSchema `json:"schema"`
	LayerMetadataRaw string      `json:"layer_metadata_json,omitempty"`
	Chunks           []ChunkDoc  `json:"chunks"`
}

// SourceDoc is the JSON shape of a format.Source, tagged by type so chunk
// id references and free-form strings round-trip unambiguously.
type SourceDoc struct {
	Type  string         `json:"type"`
	ID    format.ChunkID `json:"id,omitempty"`
	Value string         `json:"value,omitempty"`
}

func sourceToDoc(s format.Source) SourceDoc {
	if s.Kind == format.RelationChunkRef {
		return SourceDoc{Type: "chunk_id", ID: s.ChunkID}
	}
	return SourceDoc{Type: "source_string", Value: s.Ref}
}

func (d SourceDoc) toSource() format.Source {
	if d.Type == "chunk_id" {
		return format.SourceChunk(d.ID)
	}
	return format.SourceRef(d.Value)
}

// ChunkDoc is one exported chunk. Content is a pointer and Embedding a
// nil-able slice, both omitempty, so redaction can omit either independently; ContentSHA256 lets a consumer
// detect drift or dedupe even when Content itself was redacted away.
type ChunkDoc struct {
	ID            format.ChunkID `json:"id"`
	Kind          format.Kind    `json:"kind"`
	Content       *string        `json:"content,omitempty"`
	Author        format.Author  `json:"author"`
	Confidence    float32        `json:"confidence"`
	CreatedAtMs   uint64         `json:"created_at_unix_ms"`
	Sources       []SourceDoc    `json:"sources,omitempty"`
	Embedding     []float32      `json:"embedding,omitempty"`
	ContentSHA256 string         `json:"content_sha256,omitempty"`
}

// NDJSONRecord is one line of an NDJSON export: a discriminated union of
// header, layer, and chunk records so a layer's chunks can stream without
// buffering the whole layer in memory.
type NDJSONRecord struct {
	Type string `json:"type"`

	// header
	Format string   `json:"format,omitempty"`
	Tool   ToolInfo `json:"tool,omitempty"`

	// layer
	Path             string      `json:"path,omitempty"`
	Layer            string      `json:"layer,omitempty"`
	Schema           LayerSchema `json:"schema,omitempty"`
	LayerMetadataRaw string      `json:"layer_metadata_json,omitempty"`

	// chunk
	LayerPath string   `json:"layer_path,omitempty"`
	Chunk     ChunkDoc `json:"chunk,omitempty"`
}

// LogicalLayerForPath maps one of the four standard layer file names to its
// logical scope name, or "" if path isn't a standard name.
func LogicalLayerForPath(relPath string) string {
	switch relPath {
	case "AGENTS.db":
		return "base"
	case "AGENTS.user.db":
		return "user"
	case "AGENTS.delta.db":
		return "delta"
	case "AGENTS.local.db":
		return "local"
	default:
		return ""
	}
}
