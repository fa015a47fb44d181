// Package cache provides block-level caching for blobstore reads.
//
// # Block Cache (RAM)
//
// ShardedLRUBlockCache stores recently fetched blocks from remote layer
// files. It uses 64-way sharding for high concurrency.
//
// # Disk Cache (L2)
//
// For cloud backends, DiskBlockCache provides a persistent L2 cache so a
// base layer fetched once from S3/MinIO survives process restarts without
// a full re-download:
//   - Async writes to avoid blocking the read path
//   - LRU eviction with configurable size limits
//   - Rebuilds its index from disk on startup
package cache
