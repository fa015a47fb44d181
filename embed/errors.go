package embed

import (
	"errors"
	"fmt"
)

// Sentinel errors callers can match with errors.Is.
var (
	// ErrBackendUnavailable is returned when a configured backend cannot
	// serve a request (remote backend down, local runtime missing, etc).
	ErrBackendUnavailable = errors.New("embed: backend unavailable")

	// ErrTimeout is returned when a request is cancelled or exceeds its
	// deadline before the backend responds.
	ErrTimeout = errors.New("embed: request timed out")

	// ErrModelNotAllowed is returned when a local model/revision pair is
	// not present in the rolled-up allowlist, or its content hash does not
	// match the pinned value.
	ErrModelNotAllowed = errors.New("embed: model not allowed")
)

// ErrDimensionMismatch indicates a backend returned a vector whose length
// disagrees with the configured embedding.dim.
type ErrDimensionMismatch struct {
	Backend  string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embed: backend %q returned dim=%d, expected dim=%d", e.Backend, e.Actual, e.Expected)
}

// ErrProfileMismatch indicates two layers carry incompatible embedding
// profiles and cannot be queried together.
type ErrProfileMismatch struct {
	A, B string
}

func (e *ErrProfileMismatch) Error() string {
	return fmt.Sprintf("embed: incompatible embedding profiles: %s vs %s", e.A, e.B)
}
