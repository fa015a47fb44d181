package cache

import "context"

// CacheKind separates key spaces so unrelated block types never collide.
type CacheKind uint8

const (
	CacheKindUnknown CacheKind = iota
	// CacheKindBlob caches fixed-size blocks of a remote layer-file blob,
	// keyed by the blob's name and block offset.
	CacheKindBlob
)

// CacheKey must be stable across processes: it is used to cache blocks of
// layer files fetched from a blobstore.BlobStore before they are mmap'd.
type CacheKey struct {
	Kind CacheKind
	// Path identifies the blob, typically the layer file's store-relative name.
	Path string
	// Offset is a logical block index (byte offset / blockSize).
	Offset uint64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key CacheKey) (b []byte, ok bool)
	// Set caches a block. Implementations may copy or retain; caller must treat b as immutable.
	Set(ctx context.Context, key CacheKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	// Close releases any resources (e.g. background workers).
	Close() error
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
