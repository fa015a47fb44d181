package ops

import (
	"path/filepath"
	"sync"
)

// pathLocks serializes writes to each layer file: spec §5 requires a
// single writer per file while readers stay lock-free over the mapping.
// Keyed by absolute path so two relative spellings of the same file still
// serialize against each other.
var pathLocks sync.Map // map[string]*sync.Mutex

func lockPath(path string) func() {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	v, _ := pathLocks.LoadOrStore(abs, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
