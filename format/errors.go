package format

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-stable classification of a format validation
// failure, matching spec's FormatError variants.
type ErrorKind string

const (
	KindBadMagic         ErrorKind = "BadMagic"
	KindBadVersion       ErrorKind = "BadVersion"
	KindTruncatedFile    ErrorKind = "TruncatedFile"
	KindCorruptReference ErrorKind = "CorruptReference"
	KindMissingSection   ErrorKind = "MissingSection"
)

// Error is returned for any structural problem found while validating or
// parsing a layer file. It carries the byte offset of the failure for
// diagnostics, the way the teacher's binary reader wraps ErrInvalidMagic
// with the offending value.
type Error struct {
	Kind   ErrorKind
	Offset int64
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("format: %s at offset %d: %s", e.Kind, e.Offset, e.Detail)
	}
	return fmt.Sprintf("format: %s at offset %d", e.Kind, e.Offset)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, offset int64, detail string) *Error {
	return &Error{Kind: kind, Offset: offset, Detail: detail}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
