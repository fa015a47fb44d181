// Package blobstore provides storage abstraction for agentsdb's layer files
// and export bundles.
//
// BlobStore is the interface for reading and writing layer-file blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap support
//   - MemoryStore: In-memory store for tests
//   - CachingStore: Block-level read cache wrapping any BlobStore
//   - s3.Store / minio.Store: object storage with range reads and parallel uploads
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)      // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for writing
//	    Put(ctx, name, data) error         // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
//	type Blob interface {
//	    ReadAt(ctx, p, off int64) (int, error)
//	    io.Closer
//	    Size() int64
//	    ReadRange(ctx, off, len int64) (io.ReadCloser, error)
//	}
package blobstore
