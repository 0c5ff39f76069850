// Package abc provides sequential Monte Carlo approximate Bayesian
// computation (ABC-SMC) for likelihood-free parameter inference and model
// selection.  The sampling scheme follows:
//
//	Toni, T., Welch, D., Strelkowa, N., Ipsen, A., Stumpf, M.P.H.
//	"Approximate Bayesian computation scheme for parameter inference and
//	model selection in dynamical systems" J. R. Soc. Interface 6, 187-202,
//	2009.
//
// The root package holds the particle and population types, the contracts the
// solver consumes (priors, perturbation kernels, acceptance thresholds,
// population sizers, samplers), and the solver itself.  Concrete
// implementations live in subpackages.
package abc

import (
	"golang.org/x/exp/rand"
)

// Rand is the source used for all random numbers in this package and its
// subpackages.  Reassign it with a seeded source for reproducible runs.  Its
// type doubles as the rand.Source consumed by gonum distributions.
var Rand = rand.New(rand.NewSource(1))

func RandFloat() float64 { return Rand.Float64() }

// Params is an immutable parameter vector for a single model.  A model with
// no free parameters has a zero-length Params.
type Params struct {
	pos []float64
}

func NewParams(pos []float64) Params {
	cpos := make([]float64, len(pos))
	copy(cpos, pos)
	return Params{pos: cpos}
}

func (p Params) At(i int) float64 { return p.pos[i] }

func (p Params) Len() int { return len(p.pos) }

func (p Params) Pos() []float64 {
	pos := make([]float64, len(p.pos))
	copy(pos, p.pos)
	return pos
}

// Distance measures the discrepancy between two equal-length summary
// statistic vectors.  Lower is closer.
type Distance func(x, y []float64) float64

// A Prior describes the prior distribution over one model's parameters.
type Prior interface {
	// Rand draws a parameter vector from the prior.
	Rand() Params

	// PDF returns the prior density at p.
	PDF(p Params) float64

	// Dim returns the number of free parameters.
	Dim() int
}

// A Transition is a perturbation kernel fitted to a weighted particle
// population.  Fitting estimates a density over parameter space; proposing
// draws an ancestor from the fitted population and perturbs it.
type Transition interface {
	// Fit fits the kernel to the weighted population pop.  Weights need not
	// be normalized.
	Fit(pop Population) error

	// PDF returns the fitted kernel density at p.  For a kernel fitted on a
	// zero-parameter model PDF is the constant 1.
	PDF(p Params) float64

	// Propose draws a perturbed parameter vector from the fitted kernel.
	Propose() Params

	// Dim returns the dimension of the fitted parameter space.
	Dim() int

	// Fitted returns the population the kernel was fitted on.
	Fitted() Population
}

// A Sizer decides how many particles the next generation needs.  Implementors
// must treat the kernels as read only.
type Sizer interface {
	// Adapt returns the population size for the next generation given the
	// kernels fitted to the current generation and the corresponding model
	// weights.  kernels[i] pairs with weights[i].  The returned size is
	// strictly positive, and a successful call updates the size reported by
	// N.
	Adapt(kernels []Transition, weights []float64) (int, error)

	// N reports the population size currently in effect.
	N() int
}

// An Epsilon is an acceptance threshold schedule.
type Epsilon interface {
	// Current returns the acceptance threshold for the running generation.
	Current() float64

	// Update derives the following generation's threshold from the accepted
	// population.
	Update(pop Population)
}

// A Model couples a prior with a stochastic simulator.  Simulate generates
// summary statistics for the given parameters using rng for all randomness so
// that samplers can run simulations concurrently.
type Model struct {
	Name     string
	Prior    Prior
	Simulate func(p Params, rng *rand.Rand) ([]float64, error)
}
