package agentsdb

// Close releases resources held by this Store: the embedding cache has
// nothing to flush (every write is already durable on its own), but this
// exists as the conventional counterpart to Open for callers that hold a
// Store for a process lifetime and want a single place to release it.
func (s *Store) Close() error {
	return nil
}
