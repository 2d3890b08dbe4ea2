package lambert

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/ChristopherRabotin/lambert/rootfind"
)

// flakySolver wraps the Levenberg-Marquardt solver and reports a failure
// whenever fails returns true for the transfer time and the call count at
// this transfer time.
type flakySolver struct {
	fails func(dt float64, call int) bool
	mu    sync.Mutex
	calls map[float64]int
}

func (s *flakySolver) Solve(p rootfind.Problem, x0 []float64) (*rootfind.Result, error) {
	sys := p.(System)
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[float64]int)
	}
	s.calls[sys.DT]++
	call := s.calls[sys.DT]
	s.mu.Unlock()
	if s.fails(sys.DT, call) {
		x := make([]float64, len(x0))
		copy(x, x0)
		return &rootfind.Result{X: x, F: make([]float64, 3), Norm: 1, Iterations: 200, Status: rootfind.IterationLimit}, nil
	}
	return rootfind.NewLevenbergMarquardt().Solve(p, x0)
}

// cancelingSolver cancels the sweep after a number of solves.
type cancelingSolver struct {
	after  int
	calls  int
	cancel context.CancelFunc
}

func (s *cancelingSolver) Solve(p rootfind.Problem, x0 []float64) (*rootfind.Result, error) {
	s.calls++
	if s.calls == s.after {
		s.cancel()
	}
	return rootfind.NewLevenbergMarquardt().Solve(p, x0)
}

// checkBranch checks the ordering of the branch and the closure of each valid sample.
func checkBranch(t *testing.T, g Geometry, b Branch, revs int) {
	t.Helper()
	f := make([]float64, 3)
	for i, smp := range b {
		if i > 0 && !(smp.DT > b[i-1].DT) {
			t.Fatalf("samples %d and %d are not in increasing dt: %f %f", i-1, i, b[i-1].DT, smp.DT)
		}
		if !smp.Valid {
			continue
		}
		require.NoError(t, Residual(f, smp.Params, smp.DT, g, revs), "sample %d", i)
		if res := floats.Norm(f, math.Inf(1)); res > ClosureTolerance {
			t.Fatalf("sample %d (%s): residual %e", i, smp, res)
		}
		if 2*smp.A < g.SemiPerimeter() {
			t.Fatalf("sample %d (%s): a < s/2", i, smp)
		}
		if !scalar.EqualWithinAbs(TimeOfFlight(smp.Params, g, revs), smp.DT, 1e-6) {
			t.Fatalf("sample %d (%s): time of flight %f", i, smp, TimeOfFlight(smp.Params, g, revs))
		}
	}
}

// checkContinuity checks that each change of a between consecutive valid samples
// is bounded by the spacing times the largest |da/dt| at both ends, where da/dt
// is taken along the exact solution curve.
func checkContinuity(t *testing.T, g Geometry, b Branch) {
	t.Helper()
	slope := func(p Params) float64 {
		long := p.Alpha > math.Pi
		h := 1e-6 * p.A
		// Both points stay strictly above s/2.
		return h / math.Abs(TimeOfFlight(exactTriple(g, p.A+2*h, long), g, 0)-TimeOfFlight(exactTriple(g, p.A+h, long), g, 0))
	}
	valid := b.Valid()
	bound := 0.
	for i := 1; i < len(valid); i++ {
		spacing := valid[i].DT - valid[i-1].DT
		maxSlope := math.Max(slope(valid[i].Params), slope(valid[i-1].Params))
		jump := math.Abs(valid[i].A - valid[i-1].A)
		if jump > 1.5*spacing*maxSlope {
			t.Fatalf("discontinuity between %s and %s: |Δa|=%f > 1.5*%f*%f", valid[i-1], valid[i], jump, spacing, maxSlope)
		}
		bound = math.Max(bound, 1.5*spacing*maxSlope)
	}
	if b.MaxJump() > bound {
		t.Fatalf("max jump %f above %f", b.MaxJump(), bound)
	}
}

func TestSolveRangeQuarterOrbit(t *testing.T) {
	g := quarterGeometry(t)
	b, err := NewSweeper(nil).SolveRange(context.Background(), g, RangeRequest{T0: 1000, TF: 3000, TGuess: 1500, Points: 20})
	require.NoError(t, err)
	require.Len(t, b, 39)
	assert.Equal(t, 1000., b[0].DT)
	assert.Equal(t, 3000., b[len(b)-1].DT)
	assert.Empty(t, b.Gaps())
	assert.Len(t, b.Valid(), 39)
	checkBranch(t, g, b, 0)
	checkContinuity(t, g, b)

	// The branch is continuous: a decreases down to s/2 at the minimum energy
	// transfer, and increases after.
	_, tm := MinEnergy(g)
	for i := 1; i < len(b); i++ {
		if b[i].DT < tm && !(b[i].A < b[i-1].A) {
			t.Fatalf("a increases before the minimum energy transfer: %s -> %s", b[i-1], b[i])
		}
		if b[i-1].DT > tm && !(b[i].A > b[i-1].A) {
			t.Fatalf("a decreases after the minimum energy transfer: %s -> %s", b[i-1], b[i])
		}
		if b[i].DT > tm && b[i].Alpha < math.Pi {
			t.Fatalf("α < π after the minimum energy transfer: %s", b[i])
		}
	}
}

func TestSolveRangeCircularTransfer(t *testing.T) {
	g := quarterGeometry(t)
	b, err := NewSweeper(nil).SolveRange(context.Background(), g, RangeRequest{T0: 1100, TF: 2000, TGuess: circularDT, Points: 10})
	require.NoError(t, err)
	require.Len(t, b, 19)
	checkBranch(t, g, b, 0)
	circ := b[9]
	require.Equal(t, circularDT, circ.DT)
	require.True(t, circ.Valid, "%s", circ)
	assert.InDelta(t, 7000, circ.A, 1e-4)
	assert.InDelta(t, 3*math.Pi/4, circ.Alpha, 1e-6)
	assert.InDelta(t, math.Pi/4, circ.Beta, 1e-6)
	v1, v2, err := g.Velocities(circ.Params)
	require.NoError(t, err)
	if !floats.EqualApprox(v1, []float64{0, 7.546, 0}, 1e-3) || !floats.EqualApprox(v2, []float64{-7.546, 0, 0}, 1e-3) {
		t.Fatalf("v1=%v v2=%v", v1, v2)
	}
}

func TestAutoSolveMatchesSolveRange(t *testing.T) {
	g := quarterGeometry(t)
	sw := NewSweeper(nil)
	auto, err := sw.AutoSolve(context.Background(), g, AutoRequest{T0: 1200, TF: 2800, Step: 100})
	require.NoError(t, err)
	rng, err := sw.SolveRange(context.Background(), g, RangeRequest{T0: 1200, TF: 2800, TGuess: 2000, Points: 9})
	require.NoError(t, err)
	require.Len(t, auto, 17)
	require.Len(t, rng, 17)
	checkBranch(t, g, auto, 0)
	checkContinuity(t, g, auto)
	// The steepest part of the branch is at the lowest transfer times.
	assert.InDelta(t, auto[0].A-auto[1].A, auto.MaxJump(), 1e-9)
	for i := range auto {
		require.True(t, auto[i].Valid, "%s", auto[i])
		assert.InDelta(t, rng[i].DT, auto[i].DT, 1e-9)
		assert.InDelta(t, rng[i].A, auto[i].A, 1e-6)
		assert.InDelta(t, rng[i].Alpha, auto[i].Alpha, 1e-8)
	}
	assert.Equal(t, 1200., auto[0].DT)
	assert.Equal(t, 2800., auto[16].DT)

	// A step larger than half of the interval only solves the middle.
	auto, err = sw.AutoSolve(context.Background(), g, AutoRequest{T0: 1000, TF: 2000, Step: 600})
	require.NoError(t, err)
	require.Len(t, auto, 1)
	assert.Equal(t, 1500., auto[0].DT)
}

func TestSweepIsolatesFailure(t *testing.T) {
	g := quarterGeometry(t)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var buf bytes.Buffer
	solver := &flakySolver{fails: func(dt float64, call int) bool { return dt == 1500 }}
	sw := NewSweeper(solver, WithMetrics(metrics), WithLogger(NewLogger(&buf, "warn")))
	b, err := sw.SolveRange(context.Background(), g, RangeRequest{T0: 1200, TF: 2800, TGuess: 2000, Points: 9})
	require.NoError(t, err)
	require.Len(t, b, 17)
	assert.Equal(t, []int{3}, b.Gaps())
	assert.Len(t, b.Valid(), 16)
	checkBranch(t, g, b, 0)

	failed := b[3]
	assert.Equal(t, 1500., failed.DT)
	assert.False(t, failed.Valid)
	assert.True(t, errors.Is(failed.Err, ErrNonConvergence))
	var smpErr *SampleError
	require.True(t, errors.As(failed.Err, &smpErr))
	assert.Equal(t, 1500., smpErr.DT)
	assert.Equal(t, rootfind.IterationLimit, smpErr.Status)
	assert.True(t, finite(failed.A, failed.Alpha, failed.Beta))

	// The samples around the gap are on the same branch.
	assert.Less(t, b[4].A, b[2].A)

	assert.Equal(t, 16., testutil.ToFloat64(metrics.Samples.WithLabelValues("valid")))
	assert.Equal(t, 1., testutil.ToFloat64(metrics.Samples.WithLabelValues("invalid")))
	// All the perturbed re-seeds and the cold start were tried.
	assert.Equal(t, float64(DefaultRetries+1), testutil.ToFloat64(metrics.Retries))
	assert.Contains(t, buf.String(), "level=warn")
	assert.Contains(t, buf.String(), "subsys=continuation")
}

func TestSweepReseeds(t *testing.T) {
	g := quarterGeometry(t)
	metrics := NewMetrics(nil)
	solver := &flakySolver{fails: func(dt float64, call int) bool { return call == 1 }}
	sw := NewSweeper(solver, WithMetrics(metrics))
	b, err := sw.SolveRange(context.Background(), g, RangeRequest{T0: 1200, TF: 2800, TGuess: 2000, Points: 9})
	require.NoError(t, err)
	require.Len(t, b, 17)
	assert.Empty(t, b.Gaps())
	checkBranch(t, g, b, 0)
	assert.Equal(t, 17., testutil.ToFloat64(metrics.Retries))

	// Without perturbed re-seeds, the seed starts from the neutral guess so that
	// the cold start is not retried, and every sample fails.
	sw = NewSweeper(&flakySolver{fails: func(dt float64, call int) bool { return call == 1 }}, WithRetries(0))
	b, err = sw.SolveRange(context.Background(), g, RangeRequest{T0: 1200, TF: 2800, TGuess: 2000, Points: 9})
	require.NoError(t, err)
	assert.Len(t, b.Gaps(), 17)
	assert.Empty(t, b.Valid())
}

func TestReseedsStayInDomain(t *testing.T) {
	g := quarterGeometry(t)
	sw := NewSweeper(nil, WithRetries(6), WithPerturbation(0.2))
	guess := Params{A: g.SemiPerimeter() / 2 * 1.01, Alpha: 3, Beta: 1}
	seeds := sw.reseeds(g, guess)
	require.Len(t, seeds, 7)
	assert.Equal(t, g.NeutralGuess().A, seeds[6].A)
	for i, seed := range seeds[:6] {
		if 2*seed.A < g.SemiPerimeter() {
			t.Fatalf("seed %d out of domain: %s", i, seed)
		}
		assert.Equal(t, guess.Alpha, seed.Alpha)
	}
	assert.InDelta(t, guess.A*1.2, seeds[0].A, 1e-9)
	assert.InDelta(t, guess.A*1.4, seeds[2].A, 1e-9)
}

func TestSolveRangeUniversalSeed(t *testing.T) {
	g := quarterGeometry(t)
	guess, err := UniversalGuess(g, 3000, 0)
	require.NoError(t, err)
	assert.Greater(t, guess.Alpha, math.Pi)
	assert.InDelta(t, 6230.03, guess.A, 0.01)
	b, err := NewSweeper(nil).SolveRange(context.Background(), g, RangeRequest{T0: 2400, TF: 5000, TGuess: 3000, Points: 14, Guess: &guess})
	require.NoError(t, err)
	require.Len(t, b, 27)
	assert.Empty(t, b.Gaps())
	checkBranch(t, g, b, 0)
}

func TestSolveRangeMultiRevolution(t *testing.T) {
	g := quarterGeometry(t)
	for _, long := range []bool{false, true} {
		guess := exactTriple(g, 9000, long)
		dt := TimeOfFlight(guess, g, 1)
		b, err := NewSweeper(nil).SolveRange(context.Background(), g, RangeRequest{T0: dt - 600, TF: dt + 600, TGuess: dt, Points: 5, Revs: 1, Guess: &guess})
		require.NoError(t, err)
		require.Len(t, b, 9)
		assert.Empty(t, b.Gaps())
		checkBranch(t, g, b, 1)
		assert.InDelta(t, 9000, b[4].A, 1e-6)
		for i := 1; i < len(b); i++ {
			assert.Greater(t, b[i].A, b[i-1].A)
		}
	}
}

func TestSweepCancellation(t *testing.T) {
	g := quarterGeometry(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	solver := &cancelingSolver{after: 5, cancel: cancel}
	sw := NewSweeper(solver, WithConcurrency(false))
	b, err := sw.SolveRange(ctx, g, RangeRequest{T0: 1000, TF: 3000, TGuess: 1500, Points: 20})
	require.True(t, errors.Is(err, context.Canceled), "%v", err)
	// The seed and the four first samples of the upward grid.
	require.Len(t, b, 5)
	assert.Equal(t, 1500., b[0].DT)
	assert.Empty(t, b.Gaps())
	checkBranch(t, g, b, 0)

	// Nothing is solved with an already canceled context.
	b, err = NewSweeper(nil).AutoSolve(ctx, g, AutoRequest{T0: 1000, TF: 3000, Step: 100})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, b)
}

func TestSweepConcurrencyIsTransparent(t *testing.T) {
	g := quarterGeometry(t)
	req := RangeRequest{T0: 1000, TF: 3000, TGuess: 1500, Points: 10}
	seq, err := NewSweeper(nil, WithConcurrency(false)).SolveRange(context.Background(), g, req)
	require.NoError(t, err)
	conc, err := NewSweeper(nil, WithConcurrency(true)).SolveRange(context.Background(), g, req)
	require.NoError(t, err)
	require.Equal(t, len(seq), len(conc))
	for i := range seq {
		assert.Equal(t, seq[i].DT, conc[i].DT)
		assert.Equal(t, seq[i].Params, conc[i].Params)
	}
}

func TestSolveRangeBounds(t *testing.T) {
	g := quarterGeometry(t)
	sw := NewSweeper(nil)
	// tguess on a bound only traces one grid.
	b, err := sw.SolveRange(context.Background(), g, RangeRequest{T0: 1200, TF: 2000, TGuess: 1200, Points: 5})
	require.NoError(t, err)
	require.Len(t, b, 5)
	assert.Equal(t, 1200., b[0].DT)
	assert.Equal(t, 2000., b[4].DT)
	b, err = sw.SolveRange(context.Background(), g, RangeRequest{T0: 1200, TF: 2000, TGuess: 2000, Points: 5})
	require.NoError(t, err)
	require.Len(t, b, 5)
	checkBranch(t, g, b, 0)
}

func TestRequestValidation(t *testing.T) {
	g := quarterGeometry(t)
	sw := NewSweeper(nil)
	for _, req := range []RangeRequest{
		{T0: 0, TF: 2000, TGuess: 1000, Points: 5},
		{T0: 1000, TF: 2000, TGuess: 3000, Points: 5},
		{T0: 1000, TF: 2000, TGuess: 500, Points: 5},
		{T0: 1000, TF: 2000, TGuess: 1500, Points: 1},
		{T0: 1000, TF: 2000, TGuess: 1500, Points: MaxSamples},
		{T0: 1000, TF: 2000, TGuess: 1500, Points: 5, Revs: -1},
		{T0: 1000, TF: math.NaN(), TGuess: 1500, Points: 5},
	} {
		if _, err := sw.SolveRange(context.Background(), g, req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%+v: expected an invalid request, got %v", req, err)
		}
	}
	for _, req := range []AutoRequest{
		{T0: 1000, TF: 1000, Step: 10},
		{T0: 2000, TF: 1000, Step: 10},
		{T0: -1, TF: 1000, Step: 10},
		{T0: 1000, TF: 2000, Step: 0},
		{T0: 1000, TF: 2000, Step: -10},
		{T0: 0, TF: 2 * MaxSamples, Step: 1},
		{T0: 1000, TF: math.Inf(1), Step: 1},
	} {
		if _, err := sw.AutoSolve(context.Background(), g, req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%+v: expected an invalid request, got %v", req, err)
		}
	}
}

func TestPackageSweeps(t *testing.T) {
	b, err := SolveRange(quarterμ, quarterR1, quarterR2, 1000, 3000, 1500, 20, 0)
	require.NoError(t, err)
	require.Len(t, b, 39)
	assert.Empty(t, b.Gaps())

	b, err = AutoSolve(quarterμ, quarterR1, quarterR2, 1200, 2800, 100)
	require.NoError(t, err)
	require.Len(t, b, 17)
	assert.Empty(t, b.Gaps())

	_, err = SolveRange(quarterμ, quarterR1, quarterR1, 1000, 3000, 1500, 20, 0)
	assert.True(t, errors.Is(err, ErrDegenerateChord))
	_, err = AutoSolve(quarterμ, quarterR1, []float64{1, 2}, 1200, 2800, 100)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
}

func TestBranchHelpers(t *testing.T) {
	b := Branch{
		{DT: 1, Params: Params{A: 10}, Valid: true},
		{DT: 2, Params: Params{A: 100}},
		{DT: 3, Params: Params{A: 13}, Valid: true},
		{DT: 4, Params: Params{A: 12}, Valid: true},
	}
	assert.Equal(t, []int{1}, b.Gaps())
	assert.Len(t, b.Valid(), 3)
	assert.Equal(t, 3., b.MaxJump())
	assert.Equal(t, 0., Branch{}.MaxJump())
	assert.Contains(t, b[1].String(), "INVALID")
}
