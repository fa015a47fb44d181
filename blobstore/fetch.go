package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/agentsdb/agentsdb/internal/hash"
)

// FetchToLocal downloads name from store into cacheDir and returns the
// local path, for callers that need a real file descriptor (layer.Open
// mmaps its argument, so a remote base layer has to land on disk first).
//
// Blob carries no ETag, so the cache key is name+size: the local file is
// named by both, and a cache hit (matching name and size already on disk)
// skips the download entirely after the one Open call needed to learn the
// remote size. Layer files are published by atomic rename and never
// mutated in place, so a size match is a reliable enough proxy for "same
// content" in this domain. A download whose byte count differs from the
// blob size is rejected as truncated; the CRC32C checksum computed while
// copying is only reported in that error, since Blob has no remote
// checksum to compare it against.
//
// Download writes to a sibling temp file and renames over the final path,
// so a crash mid-fetch never leaves a partial file at the path layer.Open
// would mmap.
func FetchToLocal(ctx context.Context, store BlobStore, name, cacheDir string) (string, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return "", fmt.Errorf("blobstore: open %q: %w", name, err)
	}
	defer blob.Close()

	size := blob.Size()
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}

	finalPath := filepath.Join(cacheDir, cacheFileName(name, size))
	if fi, err := os.Stat(finalPath); err == nil && fi.Size() == size {
		return finalPath, nil
	}

	r, err := blob.ReadRange(ctx, 0, size)
	if err != nil {
		return "", fmt.Errorf("blobstore: read %q: %w", name, err)
	}
	defer r.Close()

	tmpPath := finalPath + ".tmp-" + uuid.New().String()
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	h := hash.NewCRC32C()
	n, err := io.Copy(f, io.TeeReader(r, h))
	if err != nil {
		cleanup()
		return "", fmt.Errorf("blobstore: download %q: %w", name, err)
	}
	if n != size {
		cleanup()
		return "", fmt.Errorf("blobstore: download %q: got %d bytes, want %d (checksum %08x)", name, n, size, h.Sum32())
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	return finalPath, nil
}

func cacheFileName(name string, size int64) string {
	return fmt.Sprintf("%s.%d", filepath.Base(name), size)
}
