package lambert

import (
	"math"
)

// Hohmann computes an Hohmann transfer between two circular orbits of radii rI and rF.
// It returns the departure and arrival velocities on the transfer ellipse, and the
// time of flight in seconds.
// To get final computations:
// ΔvInit = vDepature - vI
// ΔvFinal = vArrival - vF
func Hohmann(rI, rF, μ float64) (vDeparture, vArrival, tof float64) {
	aTransfer := 0.5 * (rI + rF)
	vDeparture = math.Sqrt((2 * μ / rI) - (μ / aTransfer))
	vArrival = math.Sqrt((2 * μ / rF) - (μ / aTransfer))
	tof = math.Pi * math.Sqrt(math.Pow(aTransfer, 3)/μ)
	return
}

// HohmannΔv returns the total Δv of an Hohmann transfer between two circular orbits.
func HohmannΔv(rI, rF, μ float64) float64 {
	vDeparture, vArrival, _ := Hohmann(rI, rF, μ)
	vI := math.Sqrt(μ / rI)
	vF := math.Sqrt(μ / rF)
	return math.Abs(vDeparture-vI) + math.Abs(vF-vArrival)
}

// PlaneChangeΔv returns the Δv of a pure inclination change of Δi radians at speed v.
func PlaneChangeΔv(v, Δi float64) float64 {
	return 2 * v * math.Sin(Δi/2)
}

// CombinedΔvSurface returns the Δv (same units as the body) of raising a circular
// orbit of altitude altitude0 to each of the altitudes with an Hohmann transfer,
// followed by a plane change of each inclination (in degrees) on the final orbit.
// Rows are inclinations, columns are altitudes.
func CombinedΔvSurface(body CelestialObject, altitude0 float64, altitudes, inclinations []float64) [][]float64 {
	rI := body.Radius + altitude0
	surface := make([][]float64, len(inclinations))
	for i, incl := range inclinations {
		surface[i] = make([]float64, len(altitudes))
		for j, alt := range altitudes {
			rF := body.Radius + alt
			vF := math.Sqrt(body.μ / rF)
			surface[i][j] = HohmannΔv(rI, rF, body.μ) + PlaneChangeΔv(vF, incl*deg2rad)
		}
	}
	return surface
}
