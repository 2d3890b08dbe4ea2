package rootfind

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	lmλInit = 1e-3
	lmλUp   = 10.
	lmλDown = 10.
	lmλMax  = 1e16
	lmλMin  = 1e-15
	lmDiagε = 1e-12 // floor of the Marquardt scaling
)

// LevenbergMarquardt solves a nonlinear system with a Marquardt-scaled
// Levenberg-Marquardt iteration on the normal equations.
// The equations are equilibrated by the row norms of the Jacobian at the initial
// guess, so that residuals of different units weigh alike in the cost; convergence
// is still assessed on the unweighted residual.
// Steps which leave the domain of the problem are rejected and damped.
type LevenbergMarquardt struct {
	Settings Settings
}

// NewLevenbergMarquardt returns a solver with the default settings.
func NewLevenbergMarquardt() LevenbergMarquardt {
	return LevenbergMarquardt{Settings: DefaultSettings()}
}

// Solve implements the Solver interface.
func (lm LevenbergMarquardt) Solve(p Problem, x0 []float64) (*Result, error) {
	if err := checkGuess(p, x0); err != nil {
		return nil, err
	}
	set := lm.Settings.withDefaults()
	n := p.Dims()
	x := make([]float64, n)
	copy(x, x0)
	f := make([]float64, n)
	if err := p.Residual(f, x); err != nil {
		return &Result{X: x, F: f, Norm: math.Inf(1), Status: OutOfDomain}, fmt.Errorf("%w: %s", ErrOutOfDomain, err)
	}
	rslt := &Result{X: x, F: f, Norm: infNorm(f)}
	if rslt.Norm <= set.Tolerance {
		rslt.Converged = true
		rslt.Status = Converged
		return rslt, nil
	}

	J := mat.NewDense(n, n, nil)
	if err := jacobian(J, p, x, f); err != nil {
		rslt.Status = OutOfDomain
		return rslt, nil
	}
	w := rowWeights(J)
	var JtJ mat.Dense
	var g mat.VecDense
	M := mat.NewDense(n, n, nil)
	δ := mat.NewVecDense(n, nil)
	fw := mat.NewVecDense(n, nil)
	xNew := make([]float64, n)
	fNew := make([]float64, n)
	cost := weightedCost(w, f)
	λ := lmλInit

	for rslt.Iterations < set.MaxIterations {
		if rslt.Iterations > 0 {
			if err := jacobian(J, p, x, f); err != nil {
				rslt.Status = OutOfDomain
				return rslt, nil
			}
		}
		rslt.Iterations++
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				J.Set(i, j, w[i]*J.At(i, j))
			}
			fw.SetVec(i, w[i]*f[i])
		}
		JtJ.Mul(J.T(), J)
		g.MulVec(J.T(), fw)

		accepted := false
		for !accepted {
			M.Copy(&JtJ)
			for i := 0; i < n; i++ {
				M.Set(i, i, JtJ.At(i, i)+λ*math.Max(JtJ.At(i, i), lmDiagε))
			}
			if err := δ.SolveVec(M, &g); err != nil {
				// Singular normal equations: damp harder.
				λ *= lmλUp
				if λ > lmλMax {
					break
				}
				continue
			}
			for i := 0; i < n; i++ {
				xNew[i] = x[i] - δ.AtVec(i)
			}
			if err := p.Residual(fNew, xNew); err == nil {
				if newCost := weightedCost(w, fNew); !math.IsNaN(newCost) && newCost < cost {
					accepted = true
					cost = newCost
					break
				}
			}
			λ *= lmλUp
			if λ > lmλMax {
				break
			}
		}
		if !accepted {
			rslt.Status = Stalled
			return rslt, nil
		}
		stepNorm := mat.Norm(δ, 2)
		copy(x, xNew)
		copy(f, fNew)
		rslt.Norm = infNorm(f)
		λ = math.Max(λ/lmλDown, lmλMin)
		if rslt.Norm <= set.Tolerance {
			rslt.Converged = true
			rslt.Status = Converged
			return rslt, nil
		}
		if stepNorm <= set.StepTolerance*(floats.Norm(x, 2)+set.StepTolerance) {
			rslt.Status = Stalled
			return rslt, nil
		}
	}
	rslt.Status = IterationLimit
	return rslt, nil
}

// rowWeights returns the inverse of the Euclidean norm of each row of J, or one for a null row.
func rowWeights(J *mat.Dense) []float64 {
	n, _ := J.Dims()
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
		if rn := floats.Norm(J.RawRowView(i), 2); rn > 0 {
			w[i] = 1 / rn
		}
	}
	return w
}

func weightedCost(w, f []float64) float64 {
	cost := 0.
	for i, v := range f {
		cost += (w[i] * v) * (w[i] * v)
	}
	return cost
}
