package rootfind

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDimension is returned when the initial guess does not match the problem dimension.
var ErrDimension = errors.New("rootfind: dimension mismatch")

// ErrOutOfDomain is returned by a Solve call whose initial guess cannot be evaluated.
var ErrOutOfDomain = errors.New("rootfind: initial guess out of domain")

// Problem defines a square nonlinear system f(x) = 0.
// Residual must return a non-nil error (and leave dst unspecified) when x is outside
// of the domain of f instead of returning NaN.
type Problem interface {
	Dims() int
	Residual(dst, x []float64) error
}

// Jacobianer is implemented by problems which provide an analytic Jacobian.
type Jacobianer interface {
	Jacobian(dst *mat.Dense, x []float64) error
}

// Solver finds a root of a Problem from an initial guess.
// Implementations must not keep state between calls.
type Solver interface {
	Solve(p Problem, x0 []float64) (*Result, error)
}

// Status defines how a Solve call ended.
type Status uint8

const (
	// Converged means that the infinity norm of the residual is within tolerance.
	Converged Status = iota + 1
	// IterationLimit means that the maximum number of iterations was reached.
	IterationLimit
	// Stalled means that no acceptable step could be found.
	Stalled
	// OutOfDomain means that the residual could not be evaluated.
	OutOfDomain
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case IterationLimit:
		return "iteration-limit"
	case Stalled:
		return "stalled"
	case OutOfDomain:
		return "out-of-domain"
	default:
		return "unknown"
	}
}

// Result is the outcome of a Solve call.
type Result struct {
	X          []float64 // last accepted iterate
	F          []float64 // residual at X
	Norm       float64   // infinity norm of F
	Iterations int
	Converged  bool
	Status     Status
}

func (r Result) String() string {
	return fmt.Sprintf("%s after %d iterations (|f|=%.3e)", r.Status, r.Iterations, r.Norm)
}

// Settings are the numerical tolerances shared by the solvers.
type Settings struct {
	MaxIterations int
	Tolerance     float64 // on the infinity norm of the residual
	StepTolerance float64 // relative step size under which the iteration is stalled
}

// DefaultSettings returns the default tolerances.
func DefaultSettings() Settings {
	return Settings{MaxIterations: 200, Tolerance: 1e-8, StepTolerance: 1e-14}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.Tolerance <= 0 {
		s.Tolerance = d.Tolerance
	}
	if s.StepTolerance <= 0 {
		s.StepTolerance = d.StepTolerance
	}
	return s
}

// infNorm returns the infinity norm, or +Inf if any component is not finite.
func infNorm(f []float64) float64 {
	for _, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.Inf(1)
		}
	}
	return floats.Norm(f, math.Inf(1))
}

// jacobian fills dst with the analytic Jacobian if available, and uses central
// finite differences otherwise.
func jacobian(dst *mat.Dense, p Problem, x, fx []float64) error {
	if jp, ok := p.(Jacobianer); ok {
		return jp.Jacobian(dst, x)
	}
	var domainErr error
	n := p.Dims()
	fd.Jacobian(dst, func(y, xi []float64) {
		if err := p.Residual(y, xi); err != nil {
			domainErr = err
			for i := range y {
				y[i] = math.NaN()
			}
		}
	}, x, &fd.JacobianSettings{Formula: fd.Central})
	if domainErr != nil {
		// Fall back on a one sided forward difference from the origin value.
		domainErr = nil
		fd.Jacobian(dst, func(y, xi []float64) {
			if err := p.Residual(y, xi); err != nil {
				domainErr = err
				for i := range y {
					y[i] = math.NaN()
				}
			}
		}, x, &fd.JacobianSettings{Formula: fd.Forward, OriginValue: fx})
	}
	if domainErr != nil {
		return domainErr
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if v := dst.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("rootfind: non finite Jacobian at (%d, %d)", i, j)
			}
		}
	}
	return nil
}

func checkGuess(p Problem, x0 []float64) error {
	if len(x0) != p.Dims() {
		return fmt.Errorf("%w: guess has %d components, problem has %d", ErrDimension, len(x0), p.Dims())
	}
	return nil
}
