package agentsdb

import (
	"errors"
	"fmt"

	"github.com/agentsdb/agentsdb/embed"
	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/ops"
	"github.com/agentsdb/agentsdb/query"
)

// ErrNotFound is the common sentinel every family's "not found" case wraps,
// so callers can do a single errors.Is(err, agentsdb.ErrNotFound) check
// without caring which family produced it.
var ErrNotFound = errors.New("agentsdb: not found")

// errNoEmbedder is returned internally when a write or search needs to
// compute an embedding but the store was opened with no backend resolved
// (no explicit WithEmbedder, no backend in the layer set's options
// roll-up, and no default in agentsdb.yaml).
var errNoEmbedder = errors.New("agentsdb: no embedder configured")

// FormatError wraps a structural problem found while decoding a layer
// file (bad magic, bad version, truncated file, corrupt reference).
type FormatError struct{ cause error }

func (e *FormatError) Error() string { return fmt.Sprintf("format: %v", e.cause) }
func (e *FormatError) Kind() string  { return "FormatError" }
func (e *FormatError) Unwrap() error { return e.cause }

// WriteError wraps a failure in the Append/Edit/Remove/Promote write path:
// scope mismatch, a write targeting a non-writable scope, or a chunk id
// that does not exist in the layer being written against.
type WriteError struct{ cause error }

func (e *WriteError) Error() string { return fmt.Sprintf("write: %v", e.cause) }
func (e *WriteError) Kind() string  { return "WriteError" }
func (e *WriteError) Unwrap() error { return e.cause }

// EmbedError wraps a failure to produce or validate an embedding: an
// unknown backend name, a dimension mismatch against a layer's existing
// profile, or an embedding-profile incompatibility.
type EmbedError struct{ cause error }

func (e *EmbedError) Error() string { return fmt.Sprintf("embed: %v", e.cause) }
func (e *EmbedError) Kind() string  { return "EmbedError" }
func (e *EmbedError) Unwrap() error { return e.cause }

// QueryError wraps a failure in Search: an empty layer set or a missing
// query vector. Incompatible embedding profiles across the requested layers
// are reported as EmbedError.
type QueryError struct{ cause error }

func (e *QueryError) Error() string { return fmt.Sprintf("query: %v", e.cause) }
func (e *QueryError) Kind() string  { return "QueryError" }
func (e *QueryError) Unwrap() error { return e.cause }

// PromotionError wraps a failure in Promote: a destination scope of base
// (also when Accept is the caller), or a requested id missing from the
// source layer.
type PromotionError struct{ cause error }

func (e *PromotionError) Error() string { return fmt.Sprintf("promotion: %v", e.cause) }
func (e *PromotionError) Kind() string  { return "PromotionError" }
func (e *PromotionError) Unwrap() error { return e.cause }

// ProposalError wraps a failure in Propose/Accept/Reject: an unknown
// proposal id, or one that has already been decided.
type ProposalError struct{ cause error }

func (e *ProposalError) Error() string { return fmt.Sprintf("proposal: %v", e.cause) }
func (e *ProposalError) Kind() string  { return "ProposalError" }
func (e *ProposalError) Unwrap() error { return e.cause }

// errCtx disambiguates which public family a shared ops error type (used
// by more than one ops entry point) should be translated into.
type errCtx int

const (
	ctxWrite errCtx = iota
	ctxPromotion
	ctxProposal
)

// translateError maps an error from format/layer/ops/query/embed into the
// public error taxonomy, centralizing the mapping the way the teacher's
// own translateError did for engine/index errors. ctx narrows ops error
// types shared across entry points (ErrChunkNotFound, ErrScopeNotWritable)
// to the family the caller actually belongs to.
func translateError(err error, ctx errCtx) error {
	if err == nil {
		return nil
	}

	var fe *format.Error
	if errors.As(err, &fe) {
		return &FormatError{cause: err}
	}

	var pnp *ops.ErrProposalNotPending
	if errors.As(err, &pnp) {
		return &ProposalError{cause: err}
	}
	var cnf *ops.ErrChunkNotFound
	if errors.As(err, &cnf) {
		wrapped := fmt.Errorf("%w: %w", ErrNotFound, err)
		switch ctx {
		case ctxProposal:
			return &ProposalError{cause: wrapped}
		case ctxPromotion:
			return &PromotionError{cause: wrapped}
		default:
			return &WriteError{cause: wrapped}
		}
	}
	var sm *ops.ErrScopeMismatch
	if errors.As(err, &sm) {
		return &WriteError{cause: err}
	}
	var snw *ops.ErrScopeNotWritable
	if errors.As(err, &snw) {
		// Promote (and Accept, which calls it internally) unconditionally
		// rejects a base-scope destination via this same type; that
		// rejection is a promotion failure, not an ordinary write-scope
		// violation, regardless of which public entry point triggered it.
		switch ctx {
		case ctxPromotion, ctxProposal:
			return &PromotionError{cause: err}
		default:
			return &WriteError{cause: err}
		}
	}

	if errors.Is(err, errNoEmbedder) {
		return &EmbedError{cause: err}
	}
	var ub *embed.ErrUnknownBackend
	if errors.As(err, &ub) {
		return &EmbedError{cause: err}
	}
	var dm *embed.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &EmbedError{cause: err}
	}
	var pm *embed.ErrProfileMismatch
	if errors.As(err, &pm) {
		return &EmbedError{cause: err}
	}
	if errors.Is(err, embed.ErrBackendUnavailable) || errors.Is(err, embed.ErrTimeout) || errors.Is(err, embed.ErrModelNotAllowed) {
		return &EmbedError{cause: err}
	}

	if errors.Is(err, query.ErrEmptyLayerSet) || errors.Is(err, query.ErrNoQueryVector) {
		return &QueryError{cause: err}
	}

	return err
}
