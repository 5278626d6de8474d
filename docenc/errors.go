// Package docenc implements the streaming structured-document codec used to
// write and read crash reports and the persistent session-state file. The
// encoder is a push API driven entirely by the caller and writes through a
// sink callback rather than an in-memory buffer, so it can run with a fixed,
// caller-supplied scratch buffer on the crash path.
package docenc

import "errors"

// Sink status codes, returned by the caller-supplied Sink function.
const (
	// SinkOK indicates the sink accepted the bytes.
	SinkOK SinkStatus = iota
	// SinkCannotAddData indicates the sink rejected the bytes (e.g. a
	// write(2) failure on the destination file descriptor).
	SinkCannotAddData
)

// SinkStatus is the result of a single Sink invocation.
type SinkStatus int

var (
	// ErrCannotAddData is returned when the sink rejects data mid-encode.
	ErrCannotAddData = errors.New("docenc: cannot add data")
	// ErrInvalidCharacter is returned when a string contains a byte below
	// 0x20 that is not one of the recognised short escapes, or when the
	// decoder encounters a structurally invalid escape sequence.
	ErrInvalidCharacter = errors.New("docenc: invalid character")
	// ErrInvalidData is returned for structural violations during decode
	// (unexpected token, unmatched container), and by EndContainer when no
	// container is open. A misplaced or missing name has its own error
	// (ErrNameRequired, ErrNameDisallowed).
	ErrInvalidData = errors.New("docenc: invalid data")
	// ErrIncomplete is returned when the decoder reaches the end of input
	// mid-value.
	ErrIncomplete = errors.New("docenc: incomplete")
	// ErrDepthExceeded is returned when container nesting exceeds the
	// encoder's maximum depth (DefaultMaxDepth unless changed by SetMaxDepth).
	ErrDepthExceeded = errors.New("docenc: container depth exceeded")
	// ErrNameRequired is returned when begin/add is called without a name
	// while the enclosing container is an object.
	ErrNameRequired = errors.New("docenc: name required inside object")
	// ErrNameDisallowed is returned when a name is supplied while the
	// enclosing container is an array or the document root.
	ErrNameDisallowed = errors.New("docenc: name disallowed outside object")
)

// Sink receives encoded bytes. Implementations on the crash path must not
// allocate or block indefinitely; a typical implementation is an unbuffered
// write(2) to a pre-opened file descriptor.
type Sink func(p []byte) SinkStatus
