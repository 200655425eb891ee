package vector

import "errors"

var (
	// ErrInvalidDimension is returned when a store is created with a non-positive dimension.
	ErrInvalidDimension = errors.New("dimension must be positive")

	// ErrDimensionMismatch is returned when a vector or query length differs from the store dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrLengthMismatch is returned when the number of vectors and identifiers differ.
	ErrLengthMismatch = errors.New("vectors and identifiers length mismatch")

	// ErrNotFound is returned when a persisted index artifact is missing.
	ErrNotFound = errors.New("index artifact not found")

	// ErrCorruptData is returned when persisted artifacts are malformed or disagree with each other.
	ErrCorruptData = errors.New("corrupt index data")

	// ErrIO wraps read and write failures of persisted artifacts.
	ErrIO = errors.New("index i/o failure")
)
