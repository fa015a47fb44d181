package query_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
	"github.com/agentsdb/agentsdb/query"
)

func writeLayer(t *testing.T, path string, id layer.ID, chunks []format.NewChunk) *layer.Handle {
	t.Helper()
	w := &format.Writer{ElementType: format.ElementF32}
	res, err := w.Build(nil, chunks)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, res.Bytes, 0o644))
	h, err := layer.Open(path, id)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func unit(dims ...float32) []float32 { return dims }

func TestSearchRanksByDotProductAndTieBreaksOnPrecedence(t *testing.T) {
	dir := t.TempDir()

	base := writeLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []format.NewChunk{
		{Kind: format.KindNote, Content: "alpha note", Author: format.AuthorHuman, Embedding: unit(1, 0)},
		{Kind: format.KindNote, Content: "beta note", Author: format.AuthorHuman, Embedding: unit(0, 1)},
	})
	local := writeLayer(t, filepath.Join(dir, "AGENTS.local.db"), layer.Local, []format.NewChunk{
		{ID: 3, Kind: format.KindNote, Content: "gamma note", Author: format.AuthorHuman, Embedding: unit(1, 0)},
	})

	resp, err := query.Search(context.Background(), query.Request{
		Layers: []*layer.Handle{local, base},
		Vector: unit(1, 0),
		K:      5,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	// alpha (base, id 1) and gamma (local, id 3) both score 1.0 — local
	// wins the tie since it has higher precedence.
	require.Equal(t, format.ChunkID(3), resp.Results[0].ID)
	require.Equal(t, layer.Local, resp.Results[0].Layer)
	require.Equal(t, "gamma note", resp.Results[0].Content)

	require.Equal(t, format.ChunkID(1), resp.Results[1].ID)
	require.Equal(t, layer.Base, resp.Results[1].Layer)
	require.Equal(t, "alpha note", resp.Results[1].Content)

	require.Equal(t, format.ChunkID(2), resp.Results[2].ID)
	require.Equal(t, "beta note", resp.Results[2].Content)
}

func TestSearchExcludesTombstonedIDsByDefault(t *testing.T) {
	dir := t.TempDir()

	base := writeLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []format.NewChunk{
		{Kind: format.KindNote, Content: "tokens unique regions", Author: format.AuthorHuman, Embedding: unit(1, 0)},
		{Kind: format.KindNote, Content: "something else", Author: format.AuthorHuman, Embedding: unit(0, 1)},
	})
	local := writeLayer(t, filepath.Join(dir, "AGENTS.local.db"), layer.Local, []format.NewChunk{
		{Kind: format.KindTombstone, Author: format.AuthorHuman, Embedding: unit(0, 0),
			Sources: []format.Source{format.SourceChunk(1)}},
	})

	resp, err := query.Search(context.Background(), query.Request{
		Layers: []*layer.Handle{local, base},
		Vector: unit(1, 0),
		K:      5,
	})
	require.NoError(t, err)
	for _, r := range resp.Results {
		require.NotEqual(t, format.ChunkID(1), r.ID)
	}

	resp, err = query.Search(context.Background(), query.Request{
		Layers:         []*layer.Handle{local, base},
		Vector:         unit(1, 0),
		K:              5,
		IncludeRemoved: true,
	})
	require.NoError(t, err)
	var found bool
	for _, r := range resp.Results {
		if r.ID == 1 {
			found = true
		}
	}
	require.True(t, found)
}

func TestSearchExcludesOptionsAndTombstoneKindsByDefault(t *testing.T) {
	dir := t.TempDir()
	base := writeLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []format.NewChunk{
		{Kind: format.KindNote, Content: "a real chunk", Author: format.AuthorHuman, Embedding: unit(1, 0)},
		{Kind: format.KindOptions, Content: `{"embedding":{"backend":"hash"}}`, Author: format.AuthorHuman, Embedding: unit(1, 0)},
	})

	resp, err := query.Search(context.Background(), query.Request{
		Layers: []*layer.Handle{base},
		Vector: unit(1, 0),
		K:      5,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Equal(t, format.KindNote, resp.Results[0].Kind)

	resp, err = query.Search(context.Background(), query.Request{
		Layers: []*layer.Handle{base},
		Vector: unit(1, 0),
		K:      5,
		Kinds:  []format.Kind{format.KindOptions, format.KindNote},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
}

func TestSearchKindFilter(t *testing.T) {
	dir := t.TempDir()
	base := writeLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []format.NewChunk{
		{Kind: format.KindNote, Content: "a note", Author: format.AuthorHuman, Embedding: unit(1, 0)},
		{Kind: format.KindDecision, Content: "a decision", Author: format.AuthorHuman, Embedding: unit(1, 0)},
	})

	resp, err := query.Search(context.Background(), query.Request{
		Layers: []*layer.Handle{base},
		Vector: unit(1, 0),
		K:      5,
		Kinds:  []format.Kind{format.KindDecision},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Equal(t, format.KindDecision, resp.Results[0].Kind)
}

func TestSearchIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	dir := t.TempDir()
	base := writeLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []format.NewChunk{
		{Kind: format.KindNote, Content: "one", Author: format.AuthorHuman, Embedding: unit(0.6, 0.8)},
		{Kind: format.KindNote, Content: "two", Author: format.AuthorHuman, Embedding: unit(0.8, 0.6)},
		{Kind: format.KindNote, Content: "three", Author: format.AuthorHuman, Embedding: unit(1, 0)},
	})

	req := query.Request{Layers: []*layer.Handle{base}, Vector: unit(1, 0), K: 3}
	first, err := query.Search(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := query.Search(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, first.Results, again.Results)
	}
}

func TestSearchRequiresVectorOrEmbedder(t *testing.T) {
	dir := t.TempDir()
	base := writeLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []format.NewChunk{
		{Kind: format.KindNote, Content: "one", Author: format.AuthorHuman, Embedding: unit(1, 0)},
	})
	_, err := query.Search(context.Background(), query.Request{
		Layers: []*layer.Handle{base},
		K:      5,
	})
	require.ErrorIs(t, err, query.ErrNoQueryVector)
}

func TestSearchHybridBoostsLexicalMatch(t *testing.T) {
	dir := t.TempDir()
	base := writeLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []format.NewChunk{
		{Kind: format.KindNote, Content: "widget pricing strategy", Author: format.AuthorHuman, Embedding: unit(0.9, 0.1)},
		{Kind: format.KindNote, Content: "completely unrelated gardening tips", Author: format.AuthorHuman, Embedding: unit(0.91, 0.09)},
	})

	plain, err := query.Search(context.Background(), query.Request{
		Layers: []*layer.Handle{base}, Vector: unit(1, 0), K: 2,
	})
	require.NoError(t, err)

	hybrid, err := query.Search(context.Background(), query.Request{
		Layers: []*layer.Handle{base}, Vector: unit(1, 0), K: 2,
		Hybrid: true, Text: "widget pricing",
	})
	require.NoError(t, err)

	require.Greater(t, hybrid.Results[0].Score, plain.Results[0].Score)
	require.Equal(t, "widget pricing strategy", hybrid.Results[0].Content)
}
