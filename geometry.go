package lambert

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// chordε is the relative chord length under which both positions are considered equal.
const chordε = 1e-12

// Geometry is the immutable transfer triangle of a Lambert problem.
type Geometry struct {
	R1, R2 []float64 // initial and final positions
	Mu     float64   // gravitational parameter, in units consistent with R1 and R2
	r1, r2 float64
	c, s   float64
}

// NewGeometry validates the positions and gravitational parameter, and returns
// the transfer geometry. The position slices are copied.
func NewGeometry(mu float64, r1, r2 []float64) (Geometry, error) {
	if len(r1) != 3 || len(r2) != 3 {
		return Geometry{}, fmt.Errorf("%w: initial and final radii must be 3x1 vectors", ErrInvalidGeometry)
	}
	if !(mu > 0) || math.IsInf(mu, 0) {
		return Geometry{}, fmt.Errorf("%w: μ must be positive (got %f)", ErrInvalidGeometry, mu)
	}
	if !finite(r1...) || !finite(r2...) {
		return Geometry{}, fmt.Errorf("%w: non finite position", ErrInvalidGeometry)
	}
	g := Geometry{R1: make([]float64, 3), R2: make([]float64, 3), Mu: mu}
	copy(g.R1, r1)
	copy(g.R2, r2)
	g.r1 = norm(g.R1)
	g.r2 = norm(g.R2)
	if scalar.EqualWithinAbs(g.r1, 0, 1e-12) || scalar.EqualWithinAbs(g.r2, 0, 1e-12) {
		return Geometry{}, fmt.Errorf("%w: position at the center of the body", ErrInvalidGeometry)
	}
	g.c = norm(sub(g.R2, g.R1))
	if g.c <= chordε*math.Max(g.r1, g.r2) {
		return Geometry{}, ErrDegenerateChord
	}
	g.s = (g.r1 + g.r2 + g.c) / 2
	return g, nil
}

// RNorms returns |r1| and |r2|.
func (g Geometry) RNorms() (r1, r2 float64) {
	return g.r1, g.r2
}

// Chord returns the distance between both positions.
func (g Geometry) Chord() float64 {
	return g.c
}

// SemiPerimeter returns the semi-perimeter of the transfer triangle.
func (g Geometry) SemiPerimeter() float64 {
	return g.s
}

// NeutralGuess returns the cold start guess: the mean radius as the semi-major
// axis and both angles at π/2.
func (g Geometry) NeutralGuess() Params {
	return Params{A: (g.r1 + g.r2) / 2, Alpha: math.Pi / 2, Beta: math.Pi / 2}
}

// TransferAngle returns the angle between both positions, in [0, π].
func (g Geometry) TransferAngle() float64 {
	cosΔν := dot(g.R1, g.R2) / (g.r1 * g.r2)
	return math.Acos(math.Max(-1, math.Min(1, cosΔν)))
}

func (g Geometry) String() string {
	return fmt.Sprintf("r1=%v r2=%v μ=%g (c=%.3f s=%.3f)", g.R1, g.R2, g.Mu, g.c, g.s)
}
