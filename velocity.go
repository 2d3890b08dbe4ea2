package lambert

import (
	"fmt"
	"math"
)

// tanε is the magnitude under which tan(α/2) or tan(β/2) is considered null.
const tanε = 1e-12

// Velocities recovers the inertial velocities at both ends of the transfer
// described by the converged triple p.
// An α or β multiple of 2π returns ErrSingularRecovery. Note that α = π (the
// minimum energy transfer) is regular.
func (g Geometry) Velocities(p Params) (v1, v2 []float64, err error) {
	if !finite(p.A, p.Alpha, p.Beta) || p.A <= 0 {
		return nil, nil, fmt.Errorf("%w: cannot recover velocities from %s", ErrDomain, p)
	}
	tα := math.Tan(p.Alpha / 2)
	tβ := math.Tan(p.Beta / 2)
	if math.Abs(tα) < tanε || math.Abs(tβ) < tanε {
		return nil, nil, fmt.Errorf("%w: tan(α/2)=%g tan(β/2)=%g", ErrSingularRecovery, tα, tβ)
	}
	rc := unit(sub(g.R2, g.R1))
	u1 := unit(g.R1)
	u2 := unit(g.R2)
	k := math.Sqrt(g.Mu / (4 * p.A))
	z := k / tβ
	y := k / tα
	v1 = make([]float64, 3)
	v2 = make([]float64, 3)
	for i := 0; i < 3; i++ {
		v1[i] = (z+y)*rc[i] + (z-y)*u1[i]
		v2[i] = (z+y)*rc[i] - (z-y)*u2[i]
	}
	if !finite(v1...) || !finite(v2...) {
		return nil, nil, fmt.Errorf("%w: non finite velocities for %s", ErrSingularRecovery, p)
	}
	return v1, v2, nil
}

// SolveVelocities recovers the velocity pair of a converged triple (a, α, β)
// for the transfer from r1 to r2 about a body of gravitational parameter mu.
func SolveVelocities(mu float64, r1, r2 []float64, a, alpha, beta float64) (v1, v2 []float64, err error) {
	g, err := NewGeometry(mu, r1, r2)
	if err != nil {
		return nil, nil, err
	}
	return g.Velocities(Params{A: a, Alpha: alpha, Beta: beta})
}
