// Package layerfs publishes layer files atomically: a new successor file's
// bytes are written to a sibling temp file, fsynced, then renamed over the
// target so a crash mid-publish always leaves either the prior valid file
// or the new valid file on disk, never a half-written one.
package layerfs

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// The four conventional layer file names; their precedence order is
// local > user > delta > base (spec §3).
const (
	Base  = "AGENTS.db"
	User  = "AGENTS.user.db"
	Delta = "AGENTS.delta.db"
	Local = "AGENTS.local.db"
)

// IsBase reports whether path's base name matches the base layer's
// conventional file name.
func IsBase(path string) bool {
	return filepath.Base(path) == Base
}

// Publish atomically replaces path's contents with data: it writes data to
// a temp file in the same directory (so the rename is atomic on the same
// filesystem), fsyncs it, renames it over path, then best-effort fsyncs the
// parent directory so the rename itself is durable on POSIX.
//
// The temp file name uses a uuid suffix rather than os.CreateTemp's random
// suffix, matching the temp-naming convention used elsewhere in this repo
// (the embedding cache, blobstore.FetchToLocal) for consistency across all
// publish-by-rename call sites.
func Publish(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpPath := filepath.Join(dir, filepath.Base(path)+".tmp-"+uuid.New().String())
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Exists reports whether path already has a published layer file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadAll reads the current published bytes of path, or (nil, nil) if the
// file does not exist yet (a brand new layer).
func ReadAll(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}
