package layerfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentsdb/agentsdb/layerfs"
)

func TestPublishIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, layerfs.Delta)

	require.NoError(t, layerfs.Publish(path, []byte("v1")))
	data, err := layerfs.ReadAll(path)
	require.NoError(t, err)
	require.Equal(t, "v1", string(data))

	require.NoError(t, layerfs.Publish(path, []byte("v2")))
	data, err = layerfs.ReadAll(path)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover temp files after a successful publish")
}

func TestReadAllOfMissingFileIsNilNil(t *testing.T) {
	dir := t.TempDir()
	data, err := layerfs.ReadAll(filepath.Join(dir, layerfs.Local))
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestCheckWritableRejectsBaseWithoutOverride(t *testing.T) {
	err := layerfs.CheckWritable("/data/"+layerfs.Base, false)
	require.Error(t, err)

	require.NoError(t, layerfs.CheckWritable("/data/"+layerfs.Base, true))
	require.NoError(t, layerfs.CheckWritable("/data/"+layerfs.Delta, false))
}
