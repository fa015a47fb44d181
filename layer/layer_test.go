package layer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
)

func writeLayer(t *testing.T, chunks []format.NewChunk) string {
	t.Helper()
	w := &format.Writer{ElementType: format.ElementF32}
	res, err := w.Build(nil, chunks)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "AGENTS.delta.db")
	require.NoError(t, os.WriteFile(path, res.Bytes, 0o644))
	return path
}

func TestOpenAndHydrate(t *testing.T) {
	path := writeLayer(t, []format.NewChunk{{
		ID:          0,
		Kind:        format.KindNote,
		Content:     "the cache key must include tenant_id",
		Author:      format.AuthorHuman,
		Confidence:  0.8,
		CreatedAtMs: 42,
		Embedding:   []float32{0.1, 0.2, 0.3, 0.4},
	}})

	h, err := layer.Open(path, layer.Delta)
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, 1, h.ChunkCount())
	chunk, ok, err := h.HydrateByID(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "the cache key must include tenant_id", chunk.Content)
	require.Equal(t, layer.Delta, chunk.Layer)
}

func TestCloneSharesMappingUntilAllClosed(t *testing.T) {
	path := writeLayer(t, []format.NewChunk{{
		Kind: format.KindNote, Content: "x", Author: format.AuthorHuman,
		Embedding: []float32{1, 2},
	}})
	h, err := layer.Open(path, layer.Base)
	require.NoError(t, err)
	clone := h.Clone()

	require.NoError(t, h.Close())
	// clone must still be usable after the original is closed.
	_, ok, err := clone.HydrateByID(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, clone.Close())
}

func TestTombstonedIDs(t *testing.T) {
	w := &format.Writer{ElementType: format.ElementF32}
	res1, err := w.Build(nil, []format.NewChunk{{
		Kind: format.KindNote, Content: "victim", Author: format.AuthorHuman,
		Embedding: []float32{1, 2},
	}})
	require.NoError(t, err)
	f1, err := format.Decode(res1.Bytes)
	require.NoError(t, err)

	res2, err := w.Build(f1, []format.NewChunk{{
		Kind: format.KindTombstone, Content: "", Author: format.AuthorMCP,
		Embedding: []float32{0, 0},
		Sources:   []format.Source{format.SourceChunk(1)},
	}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "AGENTS.local.db")
	require.NoError(t, os.WriteFile(path, res2.Bytes, 0o644))

	h, err := layer.Open(path, layer.Local)
	require.NoError(t, err)
	defer h.Close()

	tombstoned, err := h.TombstonedIDs()
	require.NoError(t, err)
	require.True(t, tombstoned[1])
	require.False(t, tombstoned[2])
}
