package lambert

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// R3R1R3 performs a 3-1-3 Euler parameter rotation.
// From Schaub and Junkins.
func R3R1R3(θ1, θ2, θ3 float64) *mat.Dense {
	sθ1, cθ1 := math.Sincos(θ1)
	sθ2, cθ2 := math.Sincos(θ2)
	sθ3, cθ3 := math.Sincos(θ3)
	return mat.NewDense(3, 3, []float64{cθ3*cθ1 - sθ3*cθ2*sθ1, cθ3*sθ1 + sθ3*cθ2*cθ1, sθ3 * sθ2,
		-sθ3*cθ1 - cθ3*cθ2*sθ1, -sθ3*sθ1 + cθ3*cθ2*cθ1, cθ3 * sθ2,
		sθ2 * sθ1, -sθ2 * cθ1, cθ2})
}

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat.Matrix, v []float64) []float64 {
	var rVec mat.VecDense
	rVec.MulVec(m, mat.NewVecDense(len(v), v))
	return []float64{rVec.AtVec(0), rVec.AtVec(1), rVec.AtVec(2)}
}

// PQW2ECI converts a vector from the perifocal (or transfer plane) frame to the
// inertial frame, given the inclination i, the argument ω and the right
// ascension of the ascending node Ω, all in radians.
func PQW2ECI(i, ω, Ω float64, v []float64) []float64 {
	return MxV33(R3R1R3(-ω, -i, -Ω), v)
}

// PlaneTransfer defines both positions of a transfer by their radii and the
// orientation of the transfer plane. Angles are in degrees.
type PlaneTransfer struct {
	R1, R2        float64 // km
	TransferAngle float64 // Δν from R1 to R2, in the direction of motion
	Inclination   float64
	RAAN          float64
	ArgLatitude   float64 // argument of latitude of R1
}

// Positions returns the inertial positions of the departure and the arrival.
func (p PlaneTransfer) Positions() (r1, r2 []float64) {
	i, Ω, u := p.Inclination*deg2rad, p.RAAN*deg2rad, p.ArgLatitude*deg2rad
	sΔν, cΔν := math.Sincos(p.TransferAngle * deg2rad)
	r1 = PQW2ECI(i, u, Ω, []float64{p.R1, 0, 0})
	r2 = PQW2ECI(i, u, Ω, []float64{p.R2 * cΔν, p.R2 * sΔν, 0})
	return
}
