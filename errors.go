package tupelo

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of a diagnostic produced by the engine
// core.
type ErrorCode int

const (
	ErrOutOfMemory ErrorCode = iota
	ErrTupleFormatLimit
	ErrIndexType
	ErrModifyIndex
	ErrFormatMismatchIndexPart
	ErrIndexPartTypeMismatch
	ErrNullableMismatch
	ErrActionMismatch
	ErrIndexFieldCountLimit
	ErrExactFieldCount
	ErrMinFieldCount
	ErrFieldType
)

var errorCodeNames = [...]string{
	ErrOutOfMemory:             "OUT_OF_MEMORY",
	ErrTupleFormatLimit:        "TUPLE_FORMAT_LIMIT",
	ErrIndexType:               "INDEX_TYPE",
	ErrModifyIndex:             "MODIFY_INDEX",
	ErrFormatMismatchIndexPart: "FORMAT_MISMATCH_INDEX_PART",
	ErrIndexPartTypeMismatch:   "INDEX_PART_TYPE_MISMATCH",
	ErrNullableMismatch:        "NULLABLE_MISMATCH",
	ErrActionMismatch:          "ACTION_MISMATCH",
	ErrIndexFieldCountLimit:    "INDEX_FIELD_COUNT_LIMIT",
	ErrExactFieldCount:         "EXACT_FIELD_COUNT",
	ErrMinFieldCount:           "MIN_FIELD_COUNT",
	ErrFieldType:               "FIELD_TYPE",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return "UNKNOWN"
}

// ClientError is the structured diagnostic surfaced by the core. FieldNo
// is a 1-based tuple field index when the error concerns a specific
// field, 0 otherwise.
type ClientError struct {
	Code    ErrorCode
	FieldNo int
	Msg     string
}

func clientErrf(code ErrorCode, fieldNo int, format string, args ...any) error {
	return &ClientError{code, fieldNo, fmt.Sprintf(format, args...)}
}

func (e *ClientError) Error() string {
	return e.Code.String() + ": " + e.Msg
}

// CodeOf extracts the diagnostic code from an error chain: the code of a
// ClientError, ErrOutOfMemory for an OutOfMemoryError, or -1 if the chain
// holds neither.
func CodeOf(err error) ErrorCode {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var oom *OutOfMemoryError
	if errors.As(err, &oom) {
		return ErrOutOfMemory
	}
	return -1
}

// OutOfMemoryError reports a failed allocation with the attempted size
// and a stable string identifying the allocation site.
type OutOfMemoryError struct {
	Size int
	Site string
	What string
}

func oomErrf(size int, site, what string) error {
	return &OutOfMemoryError{size, site, what}
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("OUT_OF_MEMORY: failed to allocate %d bytes in %s for %s", e.Size, e.Site, e.What)
}
