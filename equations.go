package lambert

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Params is the solution triple of the geometric Lambert equations.
type Params struct {
	A     float64 // semi-major axis of the transfer ellipse
	Alpha float64 // auxiliary angle α, sin(α/2) = sqrt(s/2a)
	Beta  float64 // auxiliary angle β, sin(β/2) = sqrt((s-c)/2a)
}

// Vec returns the triple as a slice in the solver order.
func (p Params) Vec() []float64 {
	return []float64{p.A, p.Alpha, p.Beta}
}

// ParamsFromVec converts a solver vector back into a triple.
func ParamsFromVec(x []float64) Params {
	return Params{A: x[0], Alpha: x[1], Beta: x[2]}
}

func (p Params) String() string {
	return fmt.Sprintf("a=%.6f α=%.6f β=%.6f", p.A, p.Alpha, p.Beta)
}

// checkDomain returns an error wrapping ErrDomain if a cannot satisfy the second
// and third equations for this geometry.
func checkDomain(a float64, g Geometry) error {
	switch {
	case !finite(a) || a <= 0:
		return fmt.Errorf("%w: a=%f must be positive", ErrDomain, a)
	case 2*a < g.s:
		return fmt.Errorf("%w: a=%f < s/2=%f", ErrDomain, a, g.s/2)
	case 2*a < g.s-g.c:
		return fmt.Errorf("%w: a=%f < (s-c)/2=%f", ErrDomain, a, (g.s-g.c)/2)
	}
	return nil
}

// Residual evaluates the three Lambert equations at p for the transfer time dt
// and the revolution count revs, and stores them in dst.
// It returns an error wrapping ErrDomain instead of propagating a NaN.
func Residual(dst []float64, p Params, dt float64, g Geometry, revs int) error {
	if err := checkDomain(p.A, g); err != nil {
		return err
	}
	sα, sβ := math.Sin(p.Alpha), math.Sin(p.Beta)
	dst[0] = math.Sqrt(math.Pow(p.A, 3)/g.Mu)*(2*math.Pi*float64(revs)+(p.Alpha-p.Beta)-(sα-sβ)) - dt
	dst[1] = math.Sqrt(g.s/(2*p.A)) - math.Sin(p.Alpha/2)
	dst[2] = math.Sqrt((g.s-g.c)/(2*p.A)) - math.Sin(p.Beta/2)
	return nil
}

// TimeOfFlight reconstructs the transfer time from the first Lambert equation.
func TimeOfFlight(p Params, g Geometry, revs int) float64 {
	return math.Sqrt(math.Pow(p.A, 3)/g.Mu) * (2*math.Pi*float64(revs) + (p.Alpha - p.Beta) - (math.Sin(p.Alpha) - math.Sin(p.Beta)))
}

// MinEnergy returns the minimum energy transfer of the direct case: its
// semi-major axis (s/2) and its time of flight.
func MinEnergy(g Geometry) (Params, float64) {
	a := g.s / 2
	p := Params{A: a, Alpha: math.Pi, Beta: 2 * math.Asin(math.Sqrt((g.s-g.c)/g.s))}
	return p, TimeOfFlight(p, g, 0)
}

// System is the Lambert equation system at one transfer time. It implements
// rootfind.Problem and rootfind.Jacobianer.
type System struct {
	Geometry Geometry
	DT       float64 // transfer time
	Revs     int     // number of complete revolutions, zero for the direct case
}

// Dims implements rootfind.Problem.
func (s System) Dims() int {
	return 3
}

// Residual implements rootfind.Problem.
func (s System) Residual(dst, x []float64) error {
	return Residual(dst, ParamsFromVec(x), s.DT, s.Geometry, s.Revs)
}

// Jacobian implements rootfind.Jacobianer.
func (s System) Jacobian(dst *mat.Dense, x []float64) error {
	p := ParamsFromVec(x)
	g := s.Geometry
	if err := checkDomain(p.A, g); err != nil {
		return err
	}
	sα, cα := math.Sincos(p.Alpha)
	sβ, cβ := math.Sincos(p.Beta)
	k := math.Sqrt(math.Pow(p.A, 3) / g.Mu)
	angles := 2*math.Pi*float64(s.Revs) + (p.Alpha - p.Beta) - (sα - sβ)
	dst.Zero()
	dst.Set(0, 0, 1.5*math.Sqrt(p.A/g.Mu)*angles)
	dst.Set(0, 1, k*(1-cα))
	dst.Set(0, 2, k*(cβ-1))
	dst.Set(1, 0, -math.Sqrt(g.s/(2*p.A))/(2*p.A))
	dst.Set(1, 1, -0.5*math.Cos(p.Alpha/2))
	dst.Set(2, 0, -math.Sqrt((g.s-g.c)/(2*p.A))/(2*p.A))
	dst.Set(2, 2, -0.5*math.Cos(p.Beta/2))
	return nil
}
