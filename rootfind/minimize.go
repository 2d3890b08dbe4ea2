package rootfind

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Minimizer finds a root by minimizing ½‖Wf(x)‖² with gonum's optimize package,
// where W equilibrates the rows of the Jacobian at the initial guess.
// Points outside of the domain of the problem evaluate to +Inf.
type Minimizer struct {
	Settings Settings
	// Method is the optimization method, Nelder-Mead if nil.
	// A new method is created on each Solve call if nil, so a shared non-nil
	// Method makes the Minimizer unsafe for concurrent use.
	Method optimize.Method
}

// NewMinimizer returns a Nelder-Mead based solver with the default settings.
func NewMinimizer() Minimizer {
	return Minimizer{Settings: DefaultSettings()}
}

// Solve implements the Solver interface.
func (m Minimizer) Solve(p Problem, x0 []float64) (*Result, error) {
	if err := checkGuess(p, x0); err != nil {
		return nil, err
	}
	set := m.Settings.withDefaults()
	n := p.Dims()
	f0 := make([]float64, n)
	if err := p.Residual(f0, x0); err != nil {
		x := make([]float64, n)
		copy(x, x0)
		return &Result{X: x, F: f0, Norm: math.Inf(1), Status: OutOfDomain}, fmt.Errorf("%w: %s", ErrOutOfDomain, err)
	}

	w := make([]float64, n)
	floats.AddConst(1, w)
	if J0 := mat.NewDense(n, n, nil); jacobian(J0, p, x0, f0) == nil {
		w = rowWeights(J0)
	}
	buf := make([]float64, n)
	prob := optimize.Problem{
		Func: func(x []float64) float64 {
			if err := p.Residual(buf, x); err != nil {
				return math.Inf(1)
			}
			return 0.5 * weightedCost(w, buf)
		},
		Grad: func(grad, x []float64) {
			fx := make([]float64, n)
			J := mat.NewDense(n, n, nil)
			if err := p.Residual(fx, x); err != nil {
				for i := range grad {
					grad[i] = math.NaN()
				}
				return
			}
			if err := jacobian(J, p, x, fx); err != nil {
				for i := range grad {
					grad[i] = math.NaN()
				}
				return
			}
			for i := range fx {
				fx[i] *= w[i] * w[i]
			}
			gv := mat.NewVecDense(n, grad)
			gv.MulVec(J.T(), mat.NewVecDense(n, fx))
		},
	}
	method := m.Method
	if method == nil {
		method = &optimize.NelderMead{}
	}
	// The objective is quadratic in the residual, so its threshold is too.
	fTol := 0.5 * set.Tolerance * set.Tolerance
	opt := &optimize.Settings{
		MajorIterations: set.MaxIterations * 50,
		FuncEvaluations: set.MaxIterations * 200,
		Converger: &optimize.FunctionConverge{
			Absolute:   fTol,
			Relative:   set.StepTolerance,
			Iterations: 100,
		},
	}
	res, err := optimize.Minimize(prob, x0, opt, method)
	rslt := &Result{X: make([]float64, n), F: make([]float64, n)}
	if res != nil {
		copy(rslt.X, res.X)
		rslt.Iterations = res.Stats.MajorIterations
	} else {
		copy(rslt.X, x0)
	}
	if rerr := p.Residual(rslt.F, rslt.X); rerr != nil {
		rslt.Norm = math.Inf(1)
		rslt.Status = OutOfDomain
		return rslt, nil
	}
	rslt.Norm = infNorm(rslt.F)
	switch {
	case rslt.Norm <= set.Tolerance:
		rslt.Converged = true
		rslt.Status = Converged
	case err != nil || (res != nil && res.Status == optimize.IterationLimit):
		rslt.Status = IterationLimit
	default:
		rslt.Status = Stalled
	}
	return rslt, nil
}
