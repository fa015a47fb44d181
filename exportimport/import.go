package exportimport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentsdb/agentsdb/embed"
	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layerfs"
)

// ParseBundle decodes either a JSON Bundle or an NDJSON record stream,
// detecting the shape from the first non-whitespace byte.
func ParseBundle(data []byte) (Bundle, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var b Bundle
		if err := json.Unmarshal(trimmed, &b); err == nil {
			return b, nil
		}
	}
	return parseNDJSON(trimmed)
}

func parseNDJSON(data []byte) (Bundle, error) {
	b := Bundle{Format: NDJSONFormat}
	indexByPath := map[string]int{}
	layerIndex := func(path string) int {
		if ix, ok := indexByPath[path]; ok {
			return ix
		}
		ix := len(b.Layers)
		b.Layers = append(b.Layers, LayerDoc{Path: path})
		indexByPath[path] = ix
		return ix
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec NDJSONRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return Bundle{}, fmt.Errorf("exportimport: parse ndjson line: %w", err)
		}
		switch rec.Type {
		case "header":
			b.Tool = rec.Tool
		case "layer":
			ix := layerIndex(rec.Path)
			b.Layers[ix].Layer = rec.Layer
			b.Layers[ix].Schema = rec.Schema
			b.Layers[ix].LayerMetadataRaw = rec.LayerMetadataRaw
		case "chunk":
			ix := layerIndex(rec.LayerPath)
			b.Layers[ix].Chunks = append(b.Layers[ix].Chunks, rec.Chunk)
		default:
			return Bundle{}, fmt.Errorf("exportimport: unknown ndjson record type %q", rec.Type)
		}
	}
	return b, nil
}

// ImportOptions configures ImportIntoLayer.
type ImportOptions struct {
	// DryRun validates and counts without writing.
	DryRun bool
	// Dedupe skips chunks whose content hash already exists in the
	// target, or that repeats earlier in this same import.
	Dedupe bool
	// PreserveIDs keeps each chunk's original id instead of letting the
	// target layer assign fresh ones; ids must be non-zero and unique.
	PreserveIDs bool
	// AllowBase permits writing to a file named AGENTS.db. Callers must
	// set this explicitly; it is never inferred from path.
	AllowBase bool
	// Dim is the embedding dimension to use when creating a brand new
	// layer with no embeddings present in the input and no existing file
	// to infer it from.
	Dim uint32
	// Embedder re-embeds content whose carried embedding is absent or
	// the wrong dimension. Required unless every chunk already carries
	// an embedding of the target dimension.
	Embedder embed.Embedder
}

// ImportOutcome reports what ImportIntoLayer did.
type ImportOutcome struct {
	Imported int
	Skipped  int
	DryRun   bool
}

// ImportIntoLayer appends the chunks in doc into the layer file at path,
// per spec.md's import scenario: redacted-content chunks are rejected,
// dedupe is by content hash against both the existing target and earlier
// chunks in this same call, and re-embedding only happens for chunks whose
// carried embedding is missing or the wrong dimension.
func ImportIntoLayer(ctx context.Context, path string, doc LayerDoc, opts ImportOptions) (ImportOutcome, error) {
	if err := layerfs.CheckWritable(path, opts.AllowBase); err != nil {
		return ImportOutcome{}, err
	}
	if len(doc.Chunks) == 0 {
		return ImportOutcome{}, fmt.Errorf("exportimport: no chunks in import")
	}

	existingBytes, err := layerfs.ReadAll(path)
	if err != nil {
		return ImportOutcome{}, err
	}
	var existing *format.File
	if existingBytes != nil {
		existing, err = format.Decode(existingBytes)
		if err != nil {
			return ImportOutcome{}, err
		}
	}

	existingHashes := map[string]bool{}
	existingIDs := map[format.ChunkID]bool{}
	if existing != nil {
		for i := 0; i < existing.Chunks.Len(); i++ {
			rec, _ := existing.Chunks.At(i)
			existingIDs[rec.ID] = true
			if opts.Dedupe {
				content, err := existing.Dict.Lookup(rec.ContentStrID)
				if err == nil {
					existingHashes[contentSHA256Hex(content)] = true
				}
			}
		}
	}

	dim := 0
	if existing != nil {
		dim = int(existing.Embeddings.Dim)
	} else if opts.Dim > 0 {
		dim = int(opts.Dim)
	} else {
		for _, c := range doc.Chunks {
			if len(c.Embedding) > 0 {
				dim = len(c.Embedding)
				break
			}
		}
	}
	if dim == 0 {
		return ImportOutcome{}, fmt.Errorf("exportimport: creating a new layer requires dim or input embeddings")
	}

	if opts.PreserveIDs {
		seen := map[format.ChunkID]bool{}
		for _, c := range doc.Chunks {
			if c.ID == 0 {
				return ImportOutcome{}, fmt.Errorf("exportimport: preserve_ids requires non-zero ids")
			}
			if existingIDs[c.ID] || seen[c.ID] {
				return ImportOutcome{}, fmt.Errorf("exportimport: id %d already exists in target", c.ID)
			}
			seen[c.ID] = true
		}
	}

	var prepared []format.NewChunk
	var skipped int
	for _, c := range doc.Chunks {
		if c.Content == nil {
			return ImportOutcome{}, fmt.Errorf("exportimport: chunk %d has redacted/missing content; cannot import", c.ID)
		}
		hash := contentSHA256Hex(*c.Content)
		if opts.Dedupe {
			if existingHashes[hash] {
				skipped++
				continue
			}
			existingHashes[hash] = true
		}

		embedding := c.Embedding
		if len(embedding) != dim {
			if opts.Embedder == nil {
				return ImportOutcome{}, fmt.Errorf("exportimport: chunk %d needs re-embedding but no embedder was supplied", c.ID)
			}
			vecs, err := opts.Embedder.Embed(ctx, []string{*c.Content})
			if err != nil {
				return ImportOutcome{}, fmt.Errorf("exportimport: embed chunk %d: %w", c.ID, err)
			}
			if len(vecs) != 1 || len(vecs[0]) != dim {
				return ImportOutcome{}, fmt.Errorf("exportimport: embedder returned unexpected dimension for chunk %d", c.ID)
			}
			embedding = vecs[0]
		}

		id := c.ID
		if !opts.PreserveIDs {
			id = 0
		}

		sources := make([]format.Source, 0, len(c.Sources))
		for _, s := range c.Sources {
			sources = append(sources, s.toSource())
		}

		prepared = append(prepared, format.NewChunk{
			ID:          id,
			Kind:        c.Kind,
			Content:     *c.Content,
			Author:      c.Author,
			Confidence:  c.Confidence,
			CreatedAtMs: c.CreatedAtMs,
			Embedding:   embedding,
			Sources:     sources,
		})
	}

	if len(prepared) == 0 {
		return ImportOutcome{Imported: 0, Skipped: skipped, DryRun: opts.DryRun}, nil
	}
	if opts.DryRun {
		return ImportOutcome{Imported: len(prepared), Skipped: skipped, DryRun: true}, nil
	}

	w := &format.Writer{ElementType: format.ElementF32}
	if existing != nil {
		w.ElementType = existing.Embeddings.ElementType
		w.QuantScale = existing.Embeddings.QuantScale
	}
	res, err := w.Build(existing, prepared)
	if err != nil {
		return ImportOutcome{}, err
	}
	if err := layerfs.Publish(path, res.Bytes); err != nil {
		return ImportOutcome{}, err
	}

	return ImportOutcome{Imported: len(prepared), Skipped: skipped, DryRun: false}, nil
}
