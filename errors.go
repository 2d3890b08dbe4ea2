package lambert

import (
	"errors"
	"fmt"

	"github.com/ChristopherRabotin/lambert/rootfind"
)

var (
	// ErrInvalidGeometry is returned for malformed position vectors or gravitational parameters.
	ErrInvalidGeometry = errors.New("lambert: invalid geometry")
	// ErrDegenerateChord is returned when both positions coincide.
	ErrDegenerateChord = errors.New("lambert: degenerate chord (r1 == r2)")
	// ErrDomain is returned when the equations are evaluated outside of their domain.
	ErrDomain = errors.New("lambert: parameters out of domain")
	// ErrNonConvergence flags a sample whose solve did not converge.
	ErrNonConvergence = errors.New("lambert: solver did not converge")
	// ErrSingularRecovery is returned when velocities cannot be recovered from a triple.
	ErrSingularRecovery = errors.New("lambert: singular velocity recovery")
	// ErrInvalidRequest is returned for inconsistent sweep bounds.
	ErrInvalidRequest = errors.New("lambert: invalid request")
)

// SampleError explains why a sample was flagged invalid.
type SampleError struct {
	DT         float64
	Status     rootfind.Status
	Iterations int
	Err        error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("dt=%.6f s: %s (%s after %d iterations)", e.DT, e.Err, e.Status, e.Iterations)
}

func (e *SampleError) Unwrap() error {
	return e.Err
}
