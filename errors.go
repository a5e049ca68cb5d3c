// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"errors"
	"fmt"
)

// Error kinds reported by an export. Every error returned by the engine or
// a backend wraps exactly one of them, so callers can test with [errors.Is].
var (
	// ErrInvalidTargetLocation is returned before traversal when the output
	// location does not satisfy the backend's preconditions.
	ErrInvalidTargetLocation = errors.New("invalid target location")

	// ErrDirectoryCreationFailed is returned when a directory of the exploded
	// output cannot be created.
	ErrDirectoryCreationFailed = errors.New("directory creation failed")

	// ErrAssetUnreadable is returned when an asset source cannot be opened or read.
	ErrAssetUnreadable = errors.New("asset unreadable")

	// ErrAssetWriteFailed is returned when resolved asset bytes cannot be written.
	ErrAssetWriteFailed = errors.New("asset write failed")

	// ErrContainerWriteFailed is returned on framing or codec failures of a packed container.
	ErrContainerWriteFailed = errors.New("container write failed")

	// ErrCyclicNesting is returned when a nested archive transitively contains itself.
	ErrCyclicNesting = errors.New("cyclic nesting")

	// ErrInvalidPath is returned for paths containing parent references or NUL bytes.
	ErrInvalidPath = errors.New("invalid path")

	// ErrMaxFilesExceeded indicates that the maximum number of entries is exceeded.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExportSizeExceeded indicates that the maximum export size is exceeded.
	ErrMaxExportSizeExceeded = errors.New("maximum export size exceeded")

	// ErrUnsupportedArchive is returned by importers for unknown input formats.
	ErrUnsupportedArchive = errors.New("unsupported archive")
)

// ExportError records the kind of a failure, the archive path it happened
// at and the underlying cause.
type ExportError struct {
	Kind error
	Path Path
	Err  error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	msg := e.Kind.Error()
	if !e.Path.IsRoot() {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns both the kind and the cause, so that [errors.Is] matches
// either of them.
func (e *ExportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// newExportError wraps err as an [ExportError] of the given kind.
func newExportError(kind error, p Path, err error) *ExportError {
	return &ExportError{Kind: kind, Path: p, Err: err}
}

// StreamError is returned by the reader of a streaming export when emission
// had already started. Offset is the number of bytes handed to the caller
// before the failure.
type StreamError struct {
	Offset int64
	Err    error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("stream failed after %d bytes: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsStreamError reports whether err happened while a stream was being
// consumed, as opposed to during the export call itself.
func IsStreamError(err error) bool {
	var se *StreamError
	return errors.As(err, &se)
}
