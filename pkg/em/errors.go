package em

import (
	"errors"
	"fmt"
)

// Error kinds reported by the fitting run. Use errors.Is to test for them.
var (
	// ErrImageRead is returned when the input image cannot be read or decoded
	ErrImageRead = errors.New("could not read image")

	// ErrDegenerateClass is returned when a class has zero intensity variance
	// and the engine is configured to fail on it
	ErrDegenerateClass = errors.New("degenerate class variance")

	// ErrClassVanished is returned when a class receives no pixels in an
	// expectation step
	ErrClassVanished = errors.New("class vanished")

	// ErrNotConverged is returned when the iteration bound is reached
	ErrNotConverged = errors.New("did not converge")

	// ErrInvalidParams is returned for inconsistent or out of range parameters
	ErrInvalidParams = errors.New("invalid parameters")
)

// ClassError reports a failure tied to a single class
type ClassError struct {
	// Kind is one of the package error kinds
	Kind error

	// Class is the index of the offending class
	Class int
}

func (e *ClassError) Error() string {
	return fmt.Sprintf("class %d: %v", e.Class, e.Kind)
}

func (e *ClassError) Unwrap() error {
	return e.Kind
}
