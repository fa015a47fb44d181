package rollup_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
	"github.com/agentsdb/agentsdb/rollup"
)

func writeOptionsLayer(t *testing.T, path string, id layer.ID, contents []string) *layer.Handle {
	t.Helper()
	w := &format.Writer{ElementType: format.ElementF32}
	chunks := make([]format.NewChunk, len(contents))
	for i, c := range contents {
		chunks[i] = format.NewChunk{
			Kind: format.KindOptions, Content: c, Author: format.AuthorHuman,
			Confidence: 1, Embedding: []float32{0, 0},
		}
	}
	res, err := w.Build(nil, chunks)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, res.Bytes, 0o644))
	h, err := layer.Open(path, id)
	require.NoError(t, err)
	return h
}

func TestRollUpScalarOverrideAndProvenance(t *testing.T) {
	dir := t.TempDir()
	base := writeOptionsLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []string{
		`{"embedding":{"backend":"hash","dim":8,"cache_enabled":false}}`,
	})
	defer base.Close()
	local := writeOptionsLayer(t, filepath.Join(dir, "AGENTS.local.db"), layer.Local, []string{
		`{"embedding":{"cache_enabled":true,"cache_dir":"/tmp/cache"}}`,
	})
	defer local.Close()

	opts, err := rollup.RollUp([]*layer.Handle{local, base})
	require.NoError(t, err)

	require.Equal(t, "hash", opts.Embedding.Backend)
	require.Equal(t, 8, opts.Embedding.Dim)
	require.True(t, opts.Embedding.CacheEnabled)
	require.Equal(t, "/tmp/cache", opts.Embedding.CacheDir)

	prov := opts.Provenance()
	require.Equal(t, layer.Base, prov["embedding.backend"])
	require.Equal(t, layer.Local, prov["embedding.cache_enabled"])
}

func TestRollUpArraysReplaceWholesale(t *testing.T) {
	dir := t.TempDir()
	base := writeOptionsLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []string{
		`{"tags":["a","b","c"]}`,
	})
	defer base.Close()
	delta := writeOptionsLayer(t, filepath.Join(dir, "AGENTS.delta.db"), layer.Delta, []string{
		`{"tags":["z"]}`,
	})
	defer delta.Close()

	opts, err := rollup.RollUp([]*layer.Handle{delta, base})
	require.NoError(t, err)
	require.Equal(t, []any{"z"}, opts.Raw()["tags"])
}

func TestRollUpAllowlistDeepMergesPerModel(t *testing.T) {
	dir := t.TempDir()
	base := writeOptionsLayer(t, filepath.Join(dir, "AGENTS.db"), layer.Base, []string{
		`{"embedding":{"allowlist":{"all-minilm-l6-v2":{"revision":"main","sha256":"aaa"}}}}`,
	})
	defer base.Close()
	local := writeOptionsLayer(t, filepath.Join(dir, "AGENTS.local.db"), layer.Local, []string{
		`{"embedding":{"allowlist":{"all-minilm-l6-v2":{"revision":"pinned","sha256":"bbb"}}}}`,
	})
	defer local.Close()

	opts, err := rollup.RollUp([]*layer.Handle{local, base})
	require.NoError(t, err)
	require.Equal(t, "pinned", opts.Embedding.Allowlist["all-minilm-l6-v2"].Revision)
	require.Equal(t, "bbb", opts.Embedding.Allowlist["all-minilm-l6-v2"].SHA256)
}

func TestRollUpSkipsNonOptionsChunks(t *testing.T) {
	dir := t.TempDir()
	w := &format.Writer{ElementType: format.ElementF32}
	res, err := w.Build(nil, []format.NewChunk{
		{Kind: format.KindNote, Content: "not options", Author: format.AuthorHuman, Embedding: []float32{0, 0}},
		{Kind: format.KindOptions, Content: `{"embedding":{"backend":"local"}}`, Author: format.AuthorHuman, Embedding: []float32{0, 0}},
	})
	require.NoError(t, err)
	path := filepath.Join(dir, "AGENTS.db")
	require.NoError(t, os.WriteFile(path, res.Bytes, 0o644))
	h, err := layer.Open(path, layer.Base)
	require.NoError(t, err)
	defer h.Close()

	opts, err := rollup.RollUp([]*layer.Handle{h})
	require.NoError(t, err)
	require.Equal(t, "local", opts.Embedding.Backend)
}
