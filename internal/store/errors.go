package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule,
	// such as a duplicate project slug or admin email.
	ErrConflict = errors.New("already exists")

	// ErrUnsupported is returned when an operation is not available in the
	// current storage configuration. The file-backed variant returns it for
	// reordering and all customization writes; callers must surface it
	// explicitly rather than pretending the write succeeded.
	ErrUnsupported = errors.New("operation not supported in this configuration")

	// ErrInvalidValue is returned when a customization value does not match
	// its declared type.
	ErrInvalidValue = errors.New("value does not match declared type")
)
