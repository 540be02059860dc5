// Package errs contains the sentinel errors shared by the clip, store and
// transport layers. Callers wrap them with fmt.Errorf("...: %w", err) and the
// transport maps them onto status codes with errors.Is.
package errs

import "errors"

var (
	// ErrPermissionDenied indicates the caller may not perform the operation
	// or may not see the clip.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrBusy indicates an operation of the same kind is already in flight.
	ErrBusy = errors.New("operation already being processed")

	// ErrInvalidArgument covers malformed TLV, out-of-range indices and
	// oversized fields.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable indicates the distributed transport is absent or disabled.
	ErrUnavailable = errors.New("unavailable")

	// ErrTimeout indicates a paste exceeded its escalated wait.
	ErrTimeout = errors.New("timed out")

	// ErrNotFound indicates there is no clip for the user.
	ErrNotFound = errors.New("not found")
)
