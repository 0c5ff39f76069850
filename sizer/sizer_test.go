package sizer_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/rwcarlsen/abc"
	"github.com/rwcarlsen/abc/sizer"
	"github.com/rwcarlsen/abc/transition"
)

const seed = 42

func seedrng(seed uint64) {
	abc.Rand = rand.New(rand.NewSource(seed))
}

// fitKernel returns a kernel fitted to n uniformly weighted draws of a
// dim-dimensional uniform variate.
func fitKernel(t *testing.T, n, dim int) abc.Transition {
	t.Helper()
	pop := make(abc.Population, n)
	for i := range pop {
		pos := make([]float64, dim)
		for j := range pos {
			pos[j] = abc.RandFloat()
		}
		pop[i] = abc.Particle{Par: abc.NewParams(pos), W: 1 / float64(n)}
	}
	k := transition.NewMVNormal()
	require.NoError(t, k.Fit(pop))
	return k
}

func popFromVals(vals ...float64) abc.Population {
	pop := make(abc.Population, len(vals))
	for i, v := range vals {
		pop[i] = abc.Particle{Par: abc.NewParams([]float64{v}), W: 1}
	}
	return pop
}

// strategies returns one of each strategy started at 100 particles, the
// shared surface every Adapt test runs against.
func strategies(t *testing.T) map[string]abc.Sizer {
	t.Helper()
	ad, err := sizer.NewAdaptive(100)
	require.NoError(t, err)
	con, err := sizer.NewConstant(100)
	require.NoError(t, err)
	return map[string]abc.Sizer{"adaptive": ad, "constant": con}
}

func TestAdaptSingleModel(t *testing.T) {
	seedrng(seed)
	k := fitKernel(t, 10, 1)
	for name, s := range strategies(t) {
		n, err := s.Adapt([]abc.Transition{k}, []float64{1})
		require.NoError(t, err, name)
		assert.True(t, n > 0, "%v: adapted size %v, want > 0", name, n)
		assert.Equal(t, n, s.N(), "%v: N does not report the adapted size", name)
	}
}

func TestAdaptTwoModels(t *testing.T) {
	seedrng(seed)
	ks := []abc.Transition{fitKernel(t, 10, 1), fitKernel(t, 10, 1)}
	// deliberately unnormalized weights
	ws := []float64{0.7, 0.2}
	for name, s := range strategies(t) {
		n, err := s.Adapt(ks, ws)
		require.NoError(t, err, name)
		assert.True(t, n > 0, "%v: adapted size %v, want > 0", name, n)
	}
}

func TestAdaptNoParameters(t *testing.T) {
	seedrng(seed)
	ks := []abc.Transition{fitKernel(t, 10, 0)}
	for name, s := range strategies(t) {
		n, err := s.Adapt(ks, []float64{1})
		require.NoError(t, err, name)
		assert.True(t, n > 0, "%v: adapted size %v, want > 0", name, n)
	}
}

func TestAdaptMixedParameters(t *testing.T) {
	seedrng(seed)
	ks := []abc.Transition{fitKernel(t, 10, 1), fitKernel(t, 10, 0)}
	ws := []float64{0.7, 0.3}
	for name, s := range strategies(t) {
		n, err := s.Adapt(ks, ws)
		require.NoError(t, err, name)
		assert.True(t, n > 0, "%v: adapted size %v, want > 0", name, n)
	}
}

func TestTransitionsNotModified(t *testing.T) {
	seedrng(seed)
	ks := []abc.Transition{fitKernel(t, 10, 0), fitKernel(t, 10, 1)}
	ws := []float64{0.5, 0.5}

	probes := make([]abc.Params, 20)
	for i := range probes {
		probes[i] = abc.NewParams([]float64{2 * abc.RandFloat()})
	}
	before := densities(ks, probes)

	for name, s := range strategies(t) {
		_, err := s.Adapt(ks, ws)
		require.NoError(t, err, name)
		assert.Equal(t, before, densities(ks, probes), "%v modified the kernels", name)
	}
}

func densities(ks []abc.Transition, probes []abc.Params) [][]float64 {
	out := make([][]float64, len(ks))
	for i, k := range ks {
		out[i] = make([]float64, len(probes))
		for j, p := range probes {
			out[i][j] = k.PDF(p)
		}
	}
	return out
}

func TestAdaptAllDegenerate(t *testing.T) {
	k := fitKernel(t, 10, 0)

	ad, err := sizer.NewAdaptive(137)
	require.NoError(t, err)
	n, err := ad.Adapt([]abc.Transition{k}, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, 137, n, "a run of parameterless models should hold the current size")

	ad, err = sizer.NewAdaptive(137, sizer.MinParticles(150))
	require.NoError(t, err)
	n, err = ad.Adapt([]abc.Transition{k}, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, 150, n, "the held size should still respect the lower bound")
}

func TestAdaptBounds(t *testing.T) {
	seedrng(seed)
	k := fitKernel(t, 10, 1)
	ks := []abc.Transition{k}
	ws := []float64{1}

	ad, err := sizer.NewAdaptive(100, sizer.MinParticles(250), sizer.MaxParticles(300))
	require.NoError(t, err)
	n, err := ad.Adapt(ks, ws)
	require.NoError(t, err)
	assert.True(t, 250 <= n && n <= 300, "adapted size %v outside [250, 300]", n)

	// An absurdly loose target drives the raw requirement to zero but the
	// result stays positive.
	ad, err = sizer.NewAdaptive(100, sizer.TargetCV(1000))
	require.NoError(t, err)
	n, err = ad.Adapt(ks, ws)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// An absurdly tight target saturates at the upper bound.
	ad, err = sizer.NewAdaptive(100, sizer.TargetCV(1e-9), sizer.MaxParticles(777))
	require.NoError(t, err)
	n, err = ad.Adapt(ks, ws)
	require.NoError(t, err)
	assert.Equal(t, 777, n)
}

func TestAdaptErrors(t *testing.T) {
	seedrng(seed)
	k := fitKernel(t, 10, 1)
	ad, err := sizer.NewAdaptive(100)
	require.NoError(t, err)

	_, err = ad.Adapt(nil, nil)
	assert.Equal(t, sizer.EmptyErr, err)

	_, err = ad.Adapt([]abc.Transition{k}, []float64{0.7, 0.3})
	assert.Equal(t, sizer.ShapeErr, err)

	_, err = ad.Adapt([]abc.Transition{k}, []float64{-1})
	assert.Equal(t, sizer.WeightErr, err)

	_, err = ad.Adapt([]abc.Transition{k}, []float64{0})
	assert.Equal(t, sizer.WeightErr, err)

	_, err = ad.Adapt([]abc.Transition{k}, []float64{math.NaN()})
	assert.Equal(t, sizer.WeightErr, err)

	// failed calls leave the stored size alone
	assert.Equal(t, 100, ad.N())
}

func TestConfigErrors(t *testing.T) {
	_, err := sizer.NewAdaptive(0)
	assert.Error(t, err)
	_, err = sizer.NewAdaptive(-5)
	assert.Error(t, err)
	_, err = sizer.NewAdaptive(10, sizer.MinParticles(20), sizer.MaxParticles(5))
	assert.Error(t, err)
	_, err = sizer.NewAdaptive(10, sizer.MinParticles(-1))
	assert.Error(t, err)
	_, err = sizer.NewAdaptive(10, sizer.TargetCV(0))
	assert.Error(t, err)
	_, err = sizer.NewAdaptive(10, sizer.TargetCV(-0.1))
	assert.Error(t, err)
	_, err = sizer.NewConstant(0)
	assert.Error(t, err)
}

func TestConstantIgnoresInput(t *testing.T) {
	con, err := sizer.NewConstant(64)
	require.NoError(t, err)
	assert.Equal(t, 64, con.N())

	n, err := con.Adapt(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
	assert.Equal(t, 64, con.N())
}

func TestMoreSpreadNeedsMore(t *testing.T) {
	even := popFromVals(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	spread := popFromVals(0, 1, 2, 3, 4, 5, 6, 7, 8, 60)

	keven := transition.NewMVNormal()
	require.NoError(t, keven.Fit(even))
	kspread := transition.NewMVNormal()
	require.NoError(t, kspread.Fit(spread))

	cveven := sizer.CV(keven)
	cvspread := sizer.CV(kspread)
	assert.True(t, cvspread > cveven,
		"outlier sample CV %v should exceed even sample CV %v", cvspread, cveven)

	adeven, err := sizer.NewAdaptive(100)
	require.NoError(t, err)
	neven, err := adeven.Adapt([]abc.Transition{keven}, []float64{1})
	require.NoError(t, err)

	adspread, err := sizer.NewAdaptive(100)
	require.NoError(t, err)
	nspread, err := adspread.Adapt([]abc.Transition{kspread}, []float64{1})
	require.NoError(t, err)

	assert.True(t, nspread >= neven,
		"outlier sample size %v should not undercut even sample size %v", nspread, neven)
}

func TestAdaptDeterministic(t *testing.T) {
	seedrng(seed)
	ks := []abc.Transition{fitKernel(t, 10, 1), fitKernel(t, 12, 2)}
	ws := []float64{0.6, 0.4}

	ad1, err := sizer.NewAdaptive(100)
	require.NoError(t, err)
	n1, err := ad1.Adapt(ks, ws)
	require.NoError(t, err)

	ad2, err := sizer.NewAdaptive(100)
	require.NoError(t, err)
	n2, err := ad2.Adapt(ks, ws)
	require.NoError(t, err)
	assert.Equal(t, n1, n2, "fresh strategies disagree on identical inputs")

	// Nondegenerate inputs do not involve the stored size, so a repeat call
	// on the same strategy agrees too.
	n3, err := ad1.Adapt(ks, ws)
	require.NoError(t, err)
	assert.Equal(t, n1, n3, "repeat call disagrees on identical inputs")
}

type stubKernel struct {
	pop abc.Population
	dim int
	pdf func(p abc.Params) float64
}

func (k stubKernel) Fit(pop abc.Population) error { return nil }
func (k stubKernel) PDF(p abc.Params) float64     { return k.pdf(p) }
func (k stubKernel) Propose() abc.Params          { return abc.Params{} }
func (k stubKernel) Dim() int                     { return k.dim }
func (k stubKernel) Fitted() abc.Population       { return k.pop }

func TestCVZeroDensity(t *testing.T) {
	// One fitted point reports zero density.  Its weight must saturate
	// finite and dominate, not poison the CV with NaN or Inf.
	k := stubKernel{
		pop: popFromVals(0, 1, 2),
		dim: 1,
		pdf: func(p abc.Params) float64 {
			if p.At(0) == 0 {
				return 0
			}
			return 1
		},
	}

	cv := sizer.CV(k)
	assert.False(t, math.IsNaN(cv), "CV is NaN")
	assert.False(t, math.IsInf(cv, 0), "CV is Inf")
	assert.True(t, cv > 1, "saturated weight should dominate the spread, got CV %v", cv)
}
