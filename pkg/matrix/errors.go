package matrix

import "errors"

// Sentinel errors. Callers match them with errors.Is; call sites add context
// with fmt.Errorf("...: %w", ErrX).
var (
	// ErrBadShape is returned when a requested shape has a non-positive
	// dimension or more elements than an int can count.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrOutOfRange is returned by At/Set for an index outside the matrix.
	ErrOutOfRange = errors.New("matrix: index out of range")

	// ErrRagged is returned when rows of differing length are assembled into a matrix.
	ErrRagged = errors.New("matrix: rows have differing lengths")

	// ErrNonSquare is returned when a square matrix is required.
	ErrNonSquare = errors.New("matrix: matrix is not square")
)
