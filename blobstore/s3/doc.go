// Package s3 provides an S3 implementation of the blobstore.BlobStore interface,
// used to host the remote copy of an agent's layer files and export bundles.
//
// # Usage
//
//	client := s3.NewFromConfig(cfg)
//	store := s3blob.NewStore(client, "my-bucket", "agents/acme-support/")
//
// # Features
//
//   - Range reads for efficient partial layer-file fetches
//   - Multipart uploads for large layer files
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
