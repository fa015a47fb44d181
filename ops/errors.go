package ops

import (
	"fmt"

	"github.com/agentsdb/agentsdb/format"
)

// ErrScopeMismatch is returned when the supplied layer.ID does not match
// the standard file name at path, per spec §4.7 ("scope must match the
// file").
type ErrScopeMismatch struct {
	Path  string
	Scope string
}

func (e *ErrScopeMismatch) Error() string {
	return fmt.Sprintf("ops: %s does not match scope %q", e.Path, e.Scope)
}

// ErrScopeNotWritable is returned when an ordinary (non-admin) write
// targets base or user scope.
type ErrScopeNotWritable struct {
	Scope string
}

func (e *ErrScopeNotWritable) Error() string {
	return fmt.Sprintf("ops: %q scope is not writable through this entry point", e.Scope)
}

// ErrChunkNotFound is returned when an operation references a chunk id
// absent from the source layer.
type ErrChunkNotFound struct {
	ID any
}

func (e *ErrChunkNotFound) Error() string {
	return fmt.Sprintf("ops: chunk %v not found", e.ID)
}

// ErrProposalNotPending is returned by Accept/Reject when the proposal id
// they target has already been decided.
type ErrProposalNotPending struct {
	ID     format.ChunkID
	Status ProposalStatus
}

func (e *ErrProposalNotPending) Error() string {
	return fmt.Sprintf("ops: proposal %d is not pending (status=%s)", e.ID, e.Status)
}
