package lambert

import (
	"context"
	"fmt"
	"math"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/ChristopherRabotin/lambert/rootfind"
)

const (
	// MaxSamples is the largest number of samples a single sweep may compute.
	MaxSamples = 1 << 20
	// ClosureTolerance is the default infinity norm under which a re-evaluated
	// residual is accepted.
	ClosureTolerance = 1e-6
	// DefaultRetries is the default number of perturbed re-seeds after a failed solve.
	DefaultRetries = 4
	// DefaultPerturbation is the default relative perturbation of a on each re-seed.
	DefaultPerturbation = 0.05
)

// Sample is one solution of the Lambert equations at one transfer time.
// An invalid sample keeps the last iterate of the solver for diagnostics; it is
// never used to seed another solve.
type Sample struct {
	DT float64
	Params
	Valid      bool
	Iterations int
	Residual   float64 // infinity norm of the residual at Params
	Err        error   // *SampleError if not Valid
}

func (s Sample) String() string {
	if !s.Valid {
		return fmt.Sprintf("dt=%.3f INVALID (%s)", s.DT, s.Err)
	}
	return fmt.Sprintf("dt=%.3f %s", s.DT, s.Params)
}

// Branch is a sequence of samples ordered by increasing transfer time.
type Branch []Sample

// Valid returns only the valid samples.
func (b Branch) Valid() Branch {
	valid := make(Branch, 0, len(b))
	for _, s := range b {
		if s.Valid {
			valid = append(valid, s)
		}
	}
	return valid
}

// Gaps returns the indexes of the invalid samples.
func (b Branch) Gaps() []int {
	var gaps []int
	for i, s := range b {
		if !s.Valid {
			gaps = append(gaps, i)
		}
	}
	return gaps
}

// MaxJump returns the largest change of semi-major axis between two consecutive valid samples.
func (b Branch) MaxJump() float64 {
	jump := 0.
	valid := b.Valid()
	for i := 1; i < len(valid); i++ {
		jump = math.Max(jump, math.Abs(valid[i].A-valid[i-1].A))
	}
	return jump
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithRetries sets the number of perturbed re-seeds tried after a failed solve.
func WithRetries(k int) Option {
	return func(sw *Sweeper) {
		sw.retries = k
	}
}

// WithPerturbation sets the relative perturbation of the semi-major axis used when re-seeding.
func WithPerturbation(p float64) Option {
	return func(sw *Sweeper) {
		sw.perturbation = p
	}
}

// WithClosureTolerance sets the residual norm under which a converged solve is accepted.
func WithClosureTolerance(tol float64) Option {
	return func(sw *Sweeper) {
		sw.closure = tol
	}
}

// WithLogger sets the logger.
func WithLogger(l kitlog.Logger) Option {
	return func(sw *Sweeper) {
		sw.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(sw *Sweeper) {
		sw.metrics = m
	}
}

// WithConcurrency sets whether both directions of a sweep are traced concurrently.
func WithConcurrency(enabled bool) Option {
	return func(sw *Sweeper) {
		sw.concurrent = enabled
	}
}

// Sweeper traces solution branches of the Lambert equations by continuation:
// each solve is seeded with the previous converged solution.
// A Sweeper holds no sweep state and may be shared between goroutines if its
// solver, logger and metrics may.
type Sweeper struct {
	solver       rootfind.Solver
	retries      int
	perturbation float64
	closure      float64
	concurrent   bool
	logger       kitlog.Logger
	metrics      *Metrics
}

// NewSweeper returns a new Sweeper. A nil solver uses the default Levenberg-Marquardt.
func NewSweeper(solver rootfind.Solver, opts ...Option) *Sweeper {
	if solver == nil {
		solver = rootfind.NewLevenbergMarquardt()
	}
	sw := &Sweeper{solver: solver, retries: DefaultRetries, perturbation: DefaultPerturbation,
		closure: ClosureTolerance, concurrent: true, logger: kitlog.NewNopLogger()}
	for _, opt := range opts {
		opt(sw)
	}
	sw.logger = kitlog.With(sw.logger, "subsys", "continuation")
	return sw
}

// RangeRequest defines a fixed grid sweep.
type RangeRequest struct {
	T0, TF float64 // bounds of the transfer time
	TGuess float64 // transfer time where the sweep starts, in [T0, TF]
	Points int     // points of each of the two grids, at least 2
	Revs   int     // number of complete revolutions
	Guess  *Params // initial guess at TGuess, the neutral guess if nil
}

// Validate checks the consistency of the request.
func (r RangeRequest) Validate() error {
	switch {
	case !finite(r.T0, r.TF, r.TGuess):
		return fmt.Errorf("%w: non finite times", ErrInvalidRequest)
	case r.T0 <= 0:
		return fmt.Errorf("%w: t0=%f must be positive", ErrInvalidRequest, r.T0)
	case r.TGuess < r.T0 || r.TGuess > r.TF:
		return fmt.Errorf("%w: tguess=%f not in [%f, %f]", ErrInvalidRequest, r.TGuess, r.T0, r.TF)
	case r.Points < 2 || r.Points > MaxSamples/2:
		return fmt.Errorf("%w: %d points per grid", ErrInvalidRequest, r.Points)
	case r.Revs < 0:
		return fmt.Errorf("%w: negative revolution count", ErrInvalidRequest)
	}
	return nil
}

// AutoRequest defines an expanding step sweep of the direct equations.
type AutoRequest struct {
	T0, TF float64 // bounds of the transfer time
	Step   float64 // spacing of the samples
}

// Validate checks the consistency of the request.
func (r AutoRequest) Validate() error {
	switch {
	case !finite(r.T0, r.TF, r.Step):
		return fmt.Errorf("%w: non finite times", ErrInvalidRequest)
	case r.T0 < 0 || r.TF <= r.T0:
		return fmt.Errorf("%w: bounds [%f, %f]", ErrInvalidRequest, r.T0, r.TF)
	case r.Step <= 0:
		return fmt.Errorf("%w: step=%f must be positive", ErrInvalidRequest, r.Step)
	case (r.TF-r.T0)/r.Step > MaxSamples:
		return fmt.Errorf("%w: step=%f yields more than %d samples", ErrInvalidRequest, r.Step, MaxSamples)
	}
	return nil
}

// SolveRange solves the Lambert equations over two linear grids, from TGuess up to TF
// and from TGuess down to T0, each warm started from the solution at TGuess.
// The returned branch covers [T0, TF] in increasing transfer time. If the context
// is canceled, the samples computed so far are returned along with the context error.
func (sw *Sweeper) SolveRange(ctx context.Context, g Geometry, req RangeRequest) (Branch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	guess := g.NeutralGuess()
	if req.Guess != nil {
		guess = *req.Guess
	}
	var up, down []float64
	if req.TF > req.TGuess {
		up = floats.Span(make([]float64, req.Points), req.TGuess, req.TF)[1:]
	}
	if req.T0 < req.TGuess {
		down = floats.Span(make([]float64, req.Points), req.TGuess, req.T0)[1:]
	}
	level.Info(sw.logger).Log("sweep", "range", "t0", req.T0, "tf", req.TF, "tguess", req.TGuess, "points", req.Points, "revs", req.Revs)
	return sw.sweep(ctx, g, req.Revs, req.TGuess, up, down, guess)
}

// AutoSolve solves the direct Lambert equations from the middle of [T0, TF]
// outwards, by Step increments, starting from the neutral guess.
// Each direction stops at its own bound.
func (sw *Sweeper) AutoSolve(ctx context.Context, g Geometry, req AutoRequest) (Branch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	mid := (req.T0 + req.TF) / 2
	slack := req.Step * 1e-9
	var up, down []float64
	for k := 1; ; k++ {
		dt := mid + float64(k)*req.Step
		if dt > req.TF+slack {
			break
		}
		up = append(up, dt)
	}
	for k := 1; ; k++ {
		dt := mid - float64(k)*req.Step
		if dt < req.T0-slack || dt <= 0 {
			break
		}
		down = append(down, dt)
	}
	level.Info(sw.logger).Log("sweep", "auto", "t0", req.T0, "tf", req.TF, "step", req.Step, "samples", len(up)+len(down)+1)
	return sw.sweep(ctx, g, 0, mid, up, down, g.NeutralGuess())
}

// sweep solves the seed transfer time, then traces both directions from it and
// merges them in increasing transfer time.
func (sw *Sweeper) sweep(ctx context.Context, g Geometry, revs int, seedDT float64, up, down []float64, guess Params) (Branch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := sw.solveAt(g, revs, seedDT, guess)
	if seed.Valid {
		guess = seed.Params
	}

	var upB, downB Branch
	var err error
	if sw.concurrent {
		grp, gctx := errgroup.WithContext(ctx)
		grp.Go(func() error {
			var terr error
			upB, terr = sw.trace(gctx, g, revs, up, guess)
			return terr
		})
		grp.Go(func() error {
			var terr error
			downB, terr = sw.trace(gctx, g, revs, down, guess)
			return terr
		})
		err = grp.Wait()
	} else {
		upB, err = sw.trace(ctx, g, revs, up, guess)
		if err == nil {
			downB, err = sw.trace(ctx, g, revs, down, guess)
		}
	}

	branch := make(Branch, 0, len(downB)+1+len(upB))
	for i := len(downB) - 1; i >= 0; i-- {
		branch = append(branch, downB[i])
	}
	branch = append(branch, seed)
	branch = append(branch, upB...)
	level.Info(sw.logger).Log("samples", len(branch), "invalid", len(branch.Gaps()))
	return branch, err
}

// trace solves each transfer time in order, seeding each solve with the last valid solution.
func (sw *Sweeper) trace(ctx context.Context, g Geometry, revs int, dts []float64, guess Params) (Branch, error) {
	out := make(Branch, 0, len(dts))
	for _, dt := range dts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		smp := sw.solveAt(g, revs, dt, guess)
		out = append(out, smp)
		if smp.Valid {
			guess = smp.Params
		}
	}
	return out, nil
}

// solveAt solves one transfer time from guess, and re-seeds on failure.
func (sw *Sweeper) solveAt(g Geometry, revs int, dt float64, guess Params) Sample {
	sys := System{Geometry: g, DT: dt, Revs: revs}
	smp := sw.attempt(sys, guess)
	if !smp.Valid {
		for _, seed := range sw.reseeds(g, guess) {
			sw.metrics.retried()
			if retry := sw.attempt(sys, seed); retry.Valid {
				level.Debug(sw.logger).Log("dt", dt, "reseeded", seed, "first", smp.Err)
				smp = retry
				break
			}
		}
	}
	sw.metrics.observe(smp)
	if smp.Valid {
		level.Debug(sw.logger).Log("dt", dt, "a", smp.A, "α", smp.Alpha, "β", smp.Beta, "iterations", smp.Iterations)
	} else {
		level.Warn(sw.logger).Log("dt", dt, "err", smp.Err)
	}
	return smp
}

// attempt runs the solver once and validates its result.
func (sw *Sweeper) attempt(sys System, guess Params) Sample {
	smp := Sample{DT: sys.DT, Params: guess}
	rslt, err := sw.solver.Solve(sys, guess.Vec())
	if err != nil {
		smp.Err = &SampleError{DT: sys.DT, Status: rootfind.OutOfDomain, Err: fmt.Errorf("%w: %s", ErrDomain, err)}
		return smp
	}
	smp.Params = ParamsFromVec(rslt.X)
	smp.Iterations = rslt.Iterations
	smp.Residual = rslt.Norm
	if !rslt.Converged {
		smp.Err = &SampleError{DT: sys.DT, Status: rslt.Status, Iterations: rslt.Iterations, Err: ErrNonConvergence}
		return smp
	}
	// The solver's word is not enough: re-evaluate the equations.
	f := make([]float64, 3)
	if err := Residual(f, smp.Params, sys.DT, sys.Geometry, sys.Revs); err != nil {
		smp.Err = &SampleError{DT: sys.DT, Status: rslt.Status, Iterations: rslt.Iterations, Err: err}
		return smp
	}
	smp.Residual = floats.Norm(f, math.Inf(1))
	if !finite(smp.A, smp.Alpha, smp.Beta) || !(smp.Residual <= sw.closure) {
		smp.Err = &SampleError{DT: sys.DT, Status: rslt.Status, Iterations: rslt.Iterations,
			Err: fmt.Errorf("%w: residual %.3e above %.3e", ErrNonConvergence, smp.Residual, sw.closure)}
		return smp
	}
	smp.Valid = true
	return smp
}

// reseeds returns the guesses tried after a failed solve: the semi-major axis is
// perturbed alternately up and down by growing amounts (kept within the domain),
// and the neutral guess comes last.
func (sw *Sweeper) reseeds(g Geometry, guess Params) []Params {
	seeds := make([]Params, 0, sw.retries+1)
	aMin := g.s / 2 * (1 + 1e-9)
	for k := 1; k <= sw.retries; k++ {
		factor := 1 + float64((k+1)/2)*sw.perturbation
		if k%2 == 0 {
			factor = 1 - float64(k/2)*sw.perturbation
		}
		seed := guess
		seed.A = math.Max(guess.A*factor, aMin)
		seeds = append(seeds, seed)
	}
	if neutral := g.NeutralGuess(); neutral != guess {
		neutral.A = math.Max(neutral.A, aMin)
		seeds = append(seeds, neutral)
	}
	return seeds
}

// SolveRange solves the Lambert equations with n revolutions over [t0, tf],
// starting from the neutral guess at tguess, with `iterations` points on each
// side of tguess. See Sweeper.SolveRange.
func SolveRange(mu float64, r1, r2 []float64, t0, tf, tguess float64, iterations, n int) (Branch, error) {
	g, err := NewGeometry(mu, r1, r2)
	if err != nil {
		return nil, err
	}
	return NewSweeper(nil).SolveRange(context.Background(), g, RangeRequest{T0: t0, TF: tf, TGuess: tguess, Points: iterations, Revs: n})
}

// AutoSolve solves the direct Lambert equations over [t0, tf] by step increments
// from the middle of the interval. See Sweeper.AutoSolve.
func AutoSolve(mu float64, r1, r2 []float64, t0, tf, step float64) (Branch, error) {
	g, err := NewGeometry(mu, r1, r2)
	if err != nil {
		return nil, err
	}
	return NewSweeper(nil).AutoSolve(context.Background(), g, AutoRequest{T0: t0, TF: tf, Step: step})
}
