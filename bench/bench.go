// Package bench provides inference problems with known answers for testing
// ABC-SMC solvers.
package bench

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rwcarlsen/abc"
	"github.com/rwcarlsen/abc/distance"
	"github.com/rwcarlsen/abc/eps"
	"github.com/rwcarlsen/abc/prior"
	"github.com/rwcarlsen/abc/sizer"
	"github.com/rwcarlsen/abc/transition"
)

type Problem interface {
	Name() string
	// Models returns fresh candidate models for the problem.
	Models() []*abc.Model
	// Observed returns the observed summary statistics.
	Observed() []float64
}

// Solve builds a solver for p with the package defaults: gaussian kernels, a
// median threshold schedule, and an adaptive sizer starting at n and bounded
// to [n/4+1, 4n], running for the given number of generations.
func Solve(p Problem, n, gens int) *abc.Solver {
	sz, err := sizer.NewAdaptive(n,
		sizer.MinParticles(n/4+1),
		sizer.MaxParticles(4*n),
	)
	if err != nil {
		panic(err.Error())
	}

	return &abc.Solver{
		Models: p.Models(),
		Obs:    p.Observed(),
		Dist:   distance.Euclidean(),
		Eps:    eps.NewMedian(),
		Sizer:  sz,
		Kernel: func() abc.Transition { return transition.NewMVNormal() },
		MaxGen: gens,
	}
}

// GaussMean infers the location of a normal sample with known noise from its
// observed mean.  The posterior is conjugate, so solver output can be
// checked against PosteriorMean and PosteriorStd exactly.
type GaussMean struct {
	// Mu0 and Sigma0 are the prior location and spread.
	Mu0, Sigma0 float64
	// Sigma is the known observation noise.
	Sigma float64
	// Nobs is the number of observations behind the observed mean.
	Nobs int
	// Ybar is the observed sample mean.
	Ybar float64
}

func NewGaussMean() GaussMean {
	return GaussMean{Mu0: 0, Sigma0: 2, Sigma: 1, Nobs: 10, Ybar: 1.3}
}

func (p GaussMean) Name() string { return "GaussMean" }

func (p GaussMean) Observed() []float64 { return []float64{p.Ybar} }

func (p GaussMean) Models() []*abc.Model {
	sim := func(par abc.Params, rng *rand.Rand) ([]float64, error) {
		tot := 0.0
		for i := 0; i < p.Nobs; i++ {
			tot += par.At(0) + p.Sigma*rng.NormFloat64()
		}
		return []float64{tot / float64(p.Nobs)}, nil
	}
	return []*abc.Model{{
		Name:     "gauss",
		Prior:    prior.Indep(distuv.Normal{Mu: p.Mu0, Sigma: p.Sigma0, Src: abc.Rand}),
		Simulate: sim,
	}}
}

func (p GaussMean) prec() (p0, pk float64) {
	return 1 / (p.Sigma0 * p.Sigma0), float64(p.Nobs) / (p.Sigma * p.Sigma)
}

func (p GaussMean) PosteriorMean() float64 {
	p0, pk := p.prec()
	return (p.Mu0*p0 + p.Ybar*pk) / (p0 + pk)
}

func (p GaussMean) PosteriorStd() float64 {
	p0, pk := p.prec()
	return math.Sqrt(1 / (p0 + pk))
}

// PointOrShift is a two-model selection toy: a fixed standard normal against
// a location family with a uniform prior.  The observation sits far enough
// from zero that the location model should collect most of the probability.
// The point model has no free parameters, so the problem exercises
// zero-dimension priors and kernels end to end.
type PointOrShift struct {
	// Y is the single observed value.
	Y float64
	// Lo and Hi bound the location prior.
	Lo, Hi float64
}

func NewPointOrShift() PointOrShift {
	return PointOrShift{Y: 2.5, Lo: -3, Hi: 3}
}

func (p PointOrShift) Name() string { return "PointOrShift" }

func (p PointOrShift) Observed() []float64 { return []float64{p.Y} }

func (p PointOrShift) Models() []*abc.Model {
	point := &abc.Model{
		Name:  "point",
		Prior: prior.Indep(),
		Simulate: func(par abc.Params, rng *rand.Rand) ([]float64, error) {
			return []float64{rng.NormFloat64()}, nil
		},
	}
	shift := &abc.Model{
		Name:  "shift",
		Prior: prior.Indep(distuv.Uniform{Min: p.Lo, Max: p.Hi, Src: abc.Rand}),
		Simulate: func(par abc.Params, rng *rand.Rand) ([]float64, error) {
			return []float64{par.At(0) + rng.NormFloat64()}, nil
		},
	}
	return []*abc.Model{point, shift}
}

// TrueBayesFactor returns the exact evidence ratio of the location model
// over the point model.
func (p PointOrShift) TrueBayesFactor() float64 {
	std := distuv.Normal{Mu: 0, Sigma: 1}
	point := std.Prob(p.Y)
	shift := (std.CDF(p.Y-p.Lo) - std.CDF(p.Y-p.Hi)) / (p.Hi - p.Lo)
	return shift / point
}
