package layerfs

import "fmt"

// ErrBaseLayerReadOnly is returned when a write targets the base layer
// without the explicit override.
type ErrBaseLayerReadOnly struct {
	Path string
}

func (e *ErrBaseLayerReadOnly) Error() string {
	return fmt.Sprintf("layerfs: %s is the base layer and is read-only (pass an explicit override to recompact)", e.Path)
}

// CheckWritable enforces spec's base-layer refusal: any write targeting a
// file whose base name is AGENTS.db is rejected unless allowBaseOverride is
// set (the escape hatch for recompaction).
func CheckWritable(path string, allowBaseOverride bool) error {
	if IsBase(path) && !allowBaseOverride {
		return &ErrBaseLayerReadOnly{Path: path}
	}
	return nil
}
