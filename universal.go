package lambert

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// TransferType defines the type of Lambert transfer
type TransferType uint8

// Longway returns whether or not this is the long way.
func (t TransferType) Longway() bool {
	switch t {
	case TType1:
		fallthrough
	case TType3:
		return false
	case TType2:
		fallthrough
	case TType4:
		return true
	default:
		panic(fmt.Errorf("cannot determine whether long or short way for %s", t))
	}
}

// Revs returns the number of revolutions given the type.
func (t TransferType) Revs() float64 {
	switch t {
	case TTypeAuto:
		fallthrough // auto-revs is limited to zero revolutions
	case TType1:
		fallthrough
	case TType2:
		return 0
	case TType3:
		fallthrough
	case TType4:
		return 1
	default:
		panic("unknown transfer type")
	}
}

func (t TransferType) String() string {
	switch t {
	case TTypeAuto:
		return "auto-revs"
	case TType1:
		return "type-1"
	case TType2:
		return "type-2"
	case TType3:
		return "type-3"
	case TType4:
		return "type-4"
	default:
		panic("unknown transfer type")
	}
}

const (
	// TTypeAuto lets the Lambert solver determine the type
	TTypeAuto TransferType = iota + 1
	// TType1 is transfer of type 1 (zero revolution, short way)
	TType1
	// TType2 is transfer of type 2 (zero revolution, long way)
	TType2
	// TType3 is transfer of type 3 (one revolutions, short way)
	TType3
	// TType4 is transfer of type 4 (one revolutions, long way)
	TType4
	lambertε  = 1e-4                   // General epsilon
	lambertTε = 1e-6                   // Time epsilon, in seconds
	lambertνε = (5e-5 / 180) * math.Pi // 0.00005 degrees
)

// Lambert solves the Lambert boundary problem with universal variables:
// Given the initial and final radii, a transfer time Δt0 (in seconds) and a
// gravitational parameter, it returns the needed initial and final velocities
// along with φ which is the square of the difference in eccentric anomaly.
// This is a bisection on φ, which is robust but slow; the continuation sweeps
// rely on it for seeding and cross-checks only.
func Lambert(Ri, Rf *mat.VecDense, Δt0 float64, ttype TransferType, μ float64) (Vi, Vf *mat.VecDense, φ float64, err error) {
	// Initialize return variables
	Vi = mat.NewVecDense(3, nil)
	Vf = mat.NewVecDense(3, nil)
	// Sanity checks
	if Ri.Len() != Rf.Len() || Ri.Len() != 3 {
		err = errors.New("initial and final radii must be 3x1 vectors")
		return
	}
	if μ <= 0 || Δt0 <= 0 {
		err = errors.New("μ and Δt must be positive")
		return
	}
	rI := mat.Norm(Ri, 2)
	rF := mat.Norm(Rf, 2)
	cosΔν := mat.Dot(Ri, Rf) / (rI * rF)
	// Compute the direction of motion
	νI := math.Atan2(Ri.AtVec(1), Ri.AtVec(0))
	νF := math.Atan2(Rf.AtVec(1), Rf.AtVec(0))
	dm := 1.0
	if ttype == TType2 || ttype == TType4 {
		dm = -1.0
	} else if ttype == TTypeAuto {
		Δν := νF - νI
		if Δν > 2*math.Pi {
			Δν -= 2 * math.Pi
		} else if Δν < 0 {
			Δν += 2 * math.Pi
		}
		if Δν > math.Pi {
			dm = -1.0
		} // We don't do the < math.Pi case because that's the initial value anyway.
	}

	A := dm * math.Sqrt(rI*rF*(1+cosΔν))
	if math.Abs(νF-νI) < lambertνε && scalar.EqualWithinAbs(A, 0, lambertε) {
		err = errors.New("cannot compute trajectory: Δν ~=0 and A ~=0")
		return
	}

	φup := 4 * math.Pow(math.Pi, 2) * math.Pow(ttype.Revs()+1, 2)
	φlow := -4 * math.Pi

	if ttype.Revs() > 0 {
		// Find the φ of the minimum time of flight for one revolution.
		Δtmin := math.Inf(1)
		φBound := 0.0

		for φP := 4*math.Pow(math.Pi, 2) + 0.1; φP < φup; φP += 0.1 {
			c2 := (1 - math.Cos(math.Sqrt(φP))) / φP
			c3 := (math.Sqrt(φP) - math.Sin(math.Sqrt(φP))) / math.Sqrt(math.Pow(φP, 3))
			y := rI + rF + A*(φP*c3-1)/math.Sqrt(c2)
			if y < 0 {
				continue
			}
			χ := math.Sqrt(y / c2)
			Δt := (math.Pow(χ, 3)*c3 + A*math.Sqrt(y)) / math.Sqrt(μ)
			if Δtmin > Δt {
				Δtmin = Δt
				φBound = φP
			}
		}
		if Δt0 < Δtmin {
			err = fmt.Errorf("Δt=%f s is below the minimum one revolution time of flight (%f s)", Δt0, Δtmin)
			return
		}

		// Determine whether we are going up or down bounds.
		if ttype == TType3 {
			φlow = φup
			φup = φBound
		} else if ttype == TType4 {
			φlow = φBound
		}
	}
	// Initial guesses for c2 and c3
	c2 := 1 / 2.
	c3 := 1 / 6.
	var Δt, y float64
	var iteration uint
	for math.Abs(Δt-Δt0) > lambertTε {
		if iteration > 10000 {
			err = errors.New("did not converge after 10000 iterations")
			return
		}
		iteration++
		y = rI + rF + A*(φ*c3-1)/math.Sqrt(c2)
		if A > 0 && y < 0 {
			tmpIt := 0
			for y < 0 {
				φ += 0.1
				y = rI + rF + A*(φ*c3-1)/math.Sqrt(c2)
				if tmpIt > 10000 {
					err = errors.New("did not converge after 10000 attempts to increase φ")
					return
				}
				tmpIt++
			}
		}
		χ := math.Sqrt(y / c2)
		Δt = (math.Pow(χ, 3)*c3 + A*math.Sqrt(y)) / math.Sqrt(μ)
		if ttype != TType3 {
			if Δt <= Δt0 {
				φlow = φ
			} else {
				φup = φ
			}
		} else {
			if Δt >= Δt0 {
				φlow = φ
			} else {
				φup = φ
			}
		}
		φ = (φup + φlow) / 2
		if math.Abs(φup-φlow) < 1e-14 {
			// The bracket cannot shrink any further.
			break
		}
		if φ > lambertε {
			sφ := math.Sqrt(φ)
			ssφ, csφ := math.Sincos(sφ)
			c2 = (1 - csφ) / φ
			c3 = (sφ - ssφ) / math.Sqrt(math.Pow(φ, 3))
		} else if φ < -lambertε {
			sφ := math.Sqrt(-φ)
			c2 = (1 - math.Cosh(sφ)) / φ
			c3 = (math.Sinh(sφ) - sφ) / math.Sqrt(math.Pow(-φ, 3))
		} else {
			c2 = 1 / 2.
			c3 = 1 / 6.
		}
	}
	f := 1 - y/rI
	gDot := 1 - y/rF
	g := (A * math.Sqrt(y/μ))
	// Compute velocities
	Rf2 := mat.NewVecDense(3, nil)
	Vi.AddScaledVec(Rf, -f, Ri)
	Vi.ScaleVec(1/g, Vi)
	Rf2.ScaleVec(gDot, Rf)
	Vf.AddScaledVec(Rf2, -1, Ri)
	Vf.ScaleVec(1/g, Vf)
	return
}

// UniversalGuess returns the triple of the short way transfer of Δt seconds with
// revs revolutions (0 or 1), computed with the universal variable solver.
// It is an accurate seed for a continuation sweep.
func UniversalGuess(g Geometry, dt float64, revs int) (Params, error) {
	var ttype TransferType
	switch revs {
	case 0:
		ttype = TType1
	case 1:
		ttype = TType3
	default:
		return Params{}, fmt.Errorf("%w: universal variable seed supports 0 or 1 revolution (got %d)", ErrInvalidRequest, revs)
	}
	Vi, _, _, err := Lambert(mat.NewVecDense(3, g.R1), mat.NewVecDense(3, g.R2), dt, ttype, g.Mu)
	if err != nil {
		return Params{}, err
	}
	v := mat.Norm(Vi, 2)
	ξ := v*v/2 - g.Mu/g.r1
	if ξ >= 0 {
		return Params{}, fmt.Errorf("%w: transfer of %f s is not elliptical", ErrDomain, dt)
	}
	a := -g.Mu / (2 * ξ)
	if 2*a < g.s {
		// Rounding of a minimum energy transfer.
		a = g.s / 2
	}
	α := 2 * math.Asin(math.Min(1, math.Sqrt(g.s/(2*a))))
	β := 2 * math.Asin(math.Min(1, math.Sqrt((g.s-g.c)/(2*a))))
	// α and 2π-α both satisfy the second equation: keep the one matching the time of flight.
	best := Params{A: a, Alpha: α, Beta: β}
	alt := Params{A: a, Alpha: 2*math.Pi - α, Beta: β}
	if math.Abs(TimeOfFlight(alt, g, revs)-dt) < math.Abs(TimeOfFlight(best, g, revs)-dt) {
		best = alt
	}
	return best, nil
}
