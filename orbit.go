package lambert

import (
	"fmt"
	"math"
)

// TransferOrbit holds the shape of the conic flown by a Lambert transfer.
type TransferOrbit struct {
	A  float64   // semi-major axis (negative for hyperbolas)
	E  float64   // eccentricity
	I  float64   // inclination, in radians
	H  []float64 // specific angular momentum
	Mu float64
}

// NewTransferOrbit returns the orbit of a state (R, V) about a body of gravitational parameter μ.
// Computed as in Vallado's RV2COE, page 113.
func NewTransferOrbit(μ float64, R, V []float64) TransferOrbit {
	hVec := cross(R, V)
	v := norm(V)
	r := norm(R)
	ξ := (v*v)/2 - μ/r
	a := -μ / (2 * ξ)
	eVec := make([]float64, 3)
	for i := 0; i < 3; i++ {
		eVec[i] = ((v*v-μ/r)*R[i] - dot(R, V)*V[i]) / μ
	}
	i := math.Acos(math.Max(-1, math.Min(1, hVec[2]/norm(hVec))))
	return TransferOrbit{A: a, E: norm(eVec), I: i, H: hVec, Mu: μ}
}

// Energyξ returns the specific mechanical energy ξ.
func (o TransferOrbit) Energyξ() float64 {
	return -o.Mu / (2 * o.A)
}

// Periapsis returns the periapsis radius.
func (o TransferOrbit) Periapsis() float64 {
	return o.A * (1 - o.E)
}

// Apoapsis returns the apoapsis radius.
func (o TransferOrbit) Apoapsis() float64 {
	return o.A * (1 + o.E)
}

// Period returns the period of this orbit in seconds, or +Inf if it is not closed.
func (o TransferOrbit) Period() float64 {
	if o.E >= 1 || o.A <= 0 {
		return math.Inf(1)
	}
	return 2 * math.Pi * math.Sqrt(math.Pow(o.A, 3)/o.Mu)
}

func (o TransferOrbit) String() string {
	return fmt.Sprintf("a=%.3f e=%.6f i=%.3f deg", o.A, o.E, Rad2deg(o.I))
}
