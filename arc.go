package lambert

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/lambert/integrator"
)

// DefaultArcSteps is the default number of RK4 steps used to verify a transfer arc.
const DefaultArcSteps = 5000

// twoBody is the Keplerian motion of a state [R, V], integrated for a fixed number of steps.
type twoBody struct {
	μ     float64
	steps uint64
	state []float64
}

func (b *twoBody) GetState() []float64 {
	return b.state
}

func (b *twoBody) SetState(i uint64, s []float64) {
	b.state = s
}

func (b *twoBody) Stop(i uint64) bool {
	return i >= b.steps
}

func (b *twoBody) Func(t float64, f []float64) []float64 {
	fDot := make([]float64, 6)
	r := norm(f[:3])
	bodyAcc := -b.μ / (r * r * r)
	// d\vec{R}/dt
	fDot[0] = f[3]
	fDot[1] = f[4]
	fDot[2] = f[5]
	// d\vec{V}/dt
	fDot[3] = bodyAcc * f[0]
	fDot[4] = bodyAcc * f[1]
	fDot[5] = bodyAcc * f[2]
	return fDot
}

// PropagateArc propagates the state (R1, v1) for dt seconds of two-body motion
// with steps RK4 steps, and returns the final position and velocity.
func (g Geometry) PropagateArc(v1 []float64, dt float64, steps int) (R, V []float64, err error) {
	if len(v1) != 3 || !finite(v1...) {
		return nil, nil, fmt.Errorf("%w: invalid initial velocity", ErrInvalidGeometry)
	}
	if !(dt > 0) || steps <= 0 {
		return nil, nil, fmt.Errorf("%w: dt=%f with %d steps", ErrInvalidRequest, dt, steps)
	}
	state := make([]float64, 6)
	copy(state, g.R1)
	copy(state[3:], v1)
	arc := &twoBody{μ: g.Mu, steps: uint64(steps), state: state}
	rk, err := integrator.NewRK4(0, dt/float64(steps), arc)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := rk.Solve(); err != nil {
		return nil, nil, err
	}
	return arc.state[:3], arc.state[3:], nil
}

// VerifyArc propagates the recovered departure velocity v1 for dt seconds and
// returns the distance between the propagated arrival position and R2.
func (g Geometry) VerifyArc(v1 []float64, dt float64, steps int) (float64, error) {
	R, _, err := g.PropagateArc(v1, dt, steps)
	if err != nil {
		return math.NaN(), err
	}
	return norm(sub(R, g.R2)), nil
}
