package exportimport_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/exportimport"
	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
	"github.com/agentsdb/agentsdb/layerfs"
)

func writeLayer(t *testing.T, path string, chunks []format.NewChunk) *layer.Handle {
	t.Helper()
	w := &format.Writer{ElementType: format.ElementF32}
	res, err := w.Build(nil, chunks)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, res.Bytes, 0o644))
	h, err := layer.Open(path, layer.Delta)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestExportLayerRoundTripsThroughJSONBundle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, layerfs.Delta)
	h := writeLayer(t, path, []format.NewChunk{
		{Kind: format.KindNote, Content: "a note", Author: format.AuthorHuman, Embedding: []float32{1, 0}},
		{Kind: format.KindDecision, Content: "a decision", Author: format.AuthorHuman,
			Embedding: []float32{0, 1}, Sources: []format.Source{format.SourceChunk(1)}},
	})

	doc, err := exportimport.ExportLayer(h, layerfs.Delta, exportimport.RedactNone)
	require.NoError(t, err)
	require.Equal(t, "delta", doc.Layer)
	require.Len(t, doc.Chunks, 2)

	bundle := exportimport.ExportBundle([]exportimport.LayerDoc{doc}, exportimport.ToolInfo{Name: "test", Version: "0"})
	data, err := exportimport.MarshalJSON(bundle)
	require.NoError(t, err)

	parsed, err := exportimport.ParseBundle(data)
	require.NoError(t, err)
	require.Len(t, parsed.Layers, 1)
	require.Len(t, parsed.Layers[0].Chunks, 2)
	require.NotNil(t, parsed.Layers[0].Chunks[0].Content)
	require.Equal(t, "a note", *parsed.Layers[0].Chunks[0].Content)
}

func TestExportLayerRedactsContentAndEmbeddings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, layerfs.Delta)
	h := writeLayer(t, path, []format.NewChunk{
		{Kind: format.KindNote, Content: "secret", Author: format.AuthorHuman, Embedding: []float32{1, 0}},
	})

	doc, err := exportimport.ExportLayer(h, layerfs.Delta, exportimport.RedactAll)
	require.NoError(t, err)
	require.Nil(t, doc.Chunks[0].Content)
	require.Nil(t, doc.Chunks[0].Embedding)

	doc, err = exportimport.ExportLayer(h, layerfs.Delta, exportimport.RedactContent)
	require.NoError(t, err)
	require.Nil(t, doc.Chunks[0].Content)
	require.NotNil(t, doc.Chunks[0].Embedding)
}

func TestMarshalAndParseNDJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, layerfs.Delta)
	h := writeLayer(t, path, []format.NewChunk{
		{Kind: format.KindNote, Content: "one", Author: format.AuthorHuman, Embedding: []float32{1, 0}},
		{Kind: format.KindNote, Content: "two", Author: format.AuthorHuman, Embedding: []float32{0, 1}},
	})
	doc, err := exportimport.ExportLayer(h, layerfs.Delta, exportimport.RedactNone)
	require.NoError(t, err)

	data, err := exportimport.MarshalNDJSON([]exportimport.LayerDoc{doc}, exportimport.ToolInfo{Name: "test", Version: "0"})
	require.NoError(t, err)

	parsed, err := exportimport.ParseBundle(data)
	require.NoError(t, err)
	require.Len(t, parsed.Layers, 1)
	require.Len(t, parsed.Layers[0].Chunks, 2)
}

func TestImportIntoLayerDedupesByContentHash(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "AGENTS.delta.src.db")
	h := writeLayer(t, srcPath, []format.NewChunk{
		{Kind: format.KindNote, Content: "shared content", Author: format.AuthorHuman, Embedding: []float32{1, 0}},
	})
	doc, err := exportimport.ExportLayer(h, layerfs.Delta, exportimport.RedactNone)
	require.NoError(t, err)
	// duplicate the chunk within the same import batch
	doc.Chunks = append(doc.Chunks, doc.Chunks[0])

	targetPath := filepath.Join(dir, layerfs.Delta)
	outcome, err := exportimport.ImportIntoLayer(context.Background(), targetPath, doc, exportimport.ImportOptions{
		Dedupe: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Imported)
	require.Equal(t, 1, outcome.Skipped)
}

func TestImportIntoLayerRejectsRedactedContent(t *testing.T) {
	dir := t.TempDir()
	doc := exportimport.LayerDoc{
		Path:   layerfs.Delta,
		Schema: exportimport.LayerSchema{Dim: 2, ElementType: "f32", QuantScale: 1},
		Chunks: []exportimport.ChunkDoc{
			{ID: 1, Kind: format.KindNote, Author: format.AuthorHuman, Embedding: []float32{1, 0}},
		},
	}
	_, err := exportimport.ImportIntoLayer(context.Background(), filepath.Join(dir, layerfs.Delta), doc, exportimport.ImportOptions{})
	require.Error(t, err)
}

func TestImportIntoLayerDryRunDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	content := "dry run me"
	doc := exportimport.LayerDoc{
		Path:   layerfs.Delta,
		Schema: exportimport.LayerSchema{Dim: 2, ElementType: "f32", QuantScale: 1},
		Chunks: []exportimport.ChunkDoc{
			{Kind: format.KindNote, Author: format.AuthorHuman, Content: &content, Embedding: []float32{1, 0}},
		},
	}
	path := filepath.Join(dir, layerfs.Delta)
	outcome, err := exportimport.ImportIntoLayer(context.Background(), path, doc, exportimport.ImportOptions{DryRun: true})
	require.NoError(t, err)
	require.True(t, outcome.DryRun)
	require.Equal(t, 1, outcome.Imported)
	require.False(t, layerfs.Exists(path))
}

func TestImportIntoLayerRefusesBaseWithoutOverride(t *testing.T) {
	dir := t.TempDir()
	content := "x"
	doc := exportimport.LayerDoc{
		Path:   layerfs.Base,
		Schema: exportimport.LayerSchema{Dim: 1, ElementType: "f32", QuantScale: 1},
		Chunks: []exportimport.ChunkDoc{
			{Kind: format.KindNote, Author: format.AuthorHuman, Content: &content, Embedding: []float32{1}},
		},
	}
	path := filepath.Join(dir, layerfs.Base)
	_, err := exportimport.ImportIntoLayer(context.Background(), path, doc, exportimport.ImportOptions{})
	require.Error(t, err)

	_, err = exportimport.ImportIntoLayer(context.Background(), path, doc, exportimport.ImportOptions{AllowBase: true})
	require.NoError(t, err)
}

func TestImportIntoLayerPreservesIDsWhenRequested(t *testing.T) {
	dir := t.TempDir()
	content := "preserved"
	doc := exportimport.LayerDoc{
		Path:   layerfs.Local,
		Schema: exportimport.LayerSchema{Dim: 1, ElementType: "f32", QuantScale: 1},
		Chunks: []exportimport.ChunkDoc{
			{ID: 42, Kind: format.KindNote, Author: format.AuthorHuman, Content: &content, Embedding: []float32{1}},
		},
	}
	path := filepath.Join(dir, layerfs.Local)
	_, err := exportimport.ImportIntoLayer(context.Background(), path, doc, exportimport.ImportOptions{PreserveIDs: true})
	require.NoError(t, err)

	h, err := layer.Open(path, layer.Local)
	require.NoError(t, err)
	defer h.Close()
	_, ok := h.ChunkByID(42)
	require.True(t, ok)
}
