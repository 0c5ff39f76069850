// Package sizer decides how many particles each ABC-SMC generation gets.
//
// The adaptive strategy follows the scheme described in:
//
//	Klinger, E. and Hasenauer, J.  "A scheme for adaptive selection of
//	population sizes in Approximate Bayesian Computation - Sequential
//	Monte Carlo."  Computational Methods in Systems Biology, 2017.
//
// It bounds the coefficient of variation of the importance weights implied
// by each model's fitted perturbation kernel: the wider the weight spread,
// the more particles the next generation needs to hold the Monte Carlo error
// of a self-normalized estimate at the target.
package sizer

import (
	"errors"
	"fmt"
	"math"

	"github.com/rwcarlsen/abc"
)

// DefaultTargetCV is the weight coefficient of variation the adaptive
// strategy steers toward when no target is configured.
const DefaultTargetCV = 0.05

var (
	EmptyErr  = errors.New("sizer: no kernels given")
	ShapeErr  = errors.New("sizer: kernel and model weight counts differ")
	WeightErr = errors.New("sizer: model weights must be nonnegative with a positive sum")
)

// Constant keeps the population size fixed for the whole run.
type Constant struct {
	n int
}

func NewConstant(n int) (*Constant, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sizer: population size must be positive, got %v", n)
	}
	return &Constant{n: n}, nil
}

// Adapt ignores the kernels and weights and returns the configured size.
func (c *Constant) Adapt(kernels []abc.Transition, weights []float64) (int, error) {
	return c.n, nil
}

func (c *Constant) N() int { return c.n }

type Option func(*Adaptive)

// MinParticles bounds adapted sizes from below.
func MinParticles(n int) Option {
	return func(a *Adaptive) { a.min = n }
}

// MaxParticles bounds adapted sizes from above.
func MaxParticles(n int) Option {
	return func(a *Adaptive) { a.max = n }
}

// TargetCV sets the weight coefficient of variation adapted sizes aim for.
// Smaller targets demand more particles.
func TargetCV(cv float64) Option {
	return func(a *Adaptive) { a.target = cv }
}

// Adaptive rescales the population between generations from the weight
// spread of the current generation's kernels.  It remembers the size most
// recently decided, so a freshly constructed strategy reports its starting
// size and every later N call reports the last Adapt result.
type Adaptive struct {
	n      int
	min    int
	max    int
	target float64
}

func NewAdaptive(start int, opts ...Option) (*Adaptive, error) {
	a := &Adaptive{n: start, target: DefaultTargetCV}
	for _, opt := range opts {
		opt(a)
	}

	switch {
	case start <= 0:
		return nil, fmt.Errorf("sizer: starting population size must be positive, got %v", start)
	case a.min < 0 || a.max < 0:
		return nil, fmt.Errorf("sizer: population bounds cannot be negative, got [%v, %v]", a.min, a.max)
	case a.min > 0 && a.max > 0 && a.min > a.max:
		return nil, fmt.Errorf("sizer: lower population bound %v exceeds upper bound %v", a.min, a.max)
	case a.target <= 0 || math.IsNaN(a.target):
		return nil, fmt.Errorf("sizer: target CV must be positive, got %v", a.target)
	}
	return a, nil
}

// Adapt returns the population size for the next generation.  Each kernel's
// weight coefficient of variation maps to a per-model requirement
// (cv/target)^2 and the requirements combine weighted by the renormalized
// model weights.  kernels[i] pairs with weights[i].  The kernels are only
// read, never refitted or perturbed, so equal inputs always give equal
// results.
func (a *Adaptive) Adapt(kernels []abc.Transition, weights []float64) (int, error) {
	if len(kernels) == 0 {
		return 0, EmptyErr
	}
	if len(kernels) != len(weights) {
		return 0, ShapeErr
	}

	tot := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return 0, WeightErr
		}
		tot += w
	}
	if tot <= 0 || math.IsInf(tot, 0) {
		return 0, WeightErr
	}

	req := 0.0
	for i, k := range kernels {
		cv := CV(k)
		req += weights[i] / tot * (cv / a.target) * (cv / a.target)
	}

	// Keep the float64 to int conversion in defined range.
	if req > math.MaxInt32 {
		req = math.MaxInt32
	}

	n := int(math.Ceil(req))
	if n < 1 {
		// Every model is degenerate.  Hold the current size.
		n = a.n
	}
	n = a.clamp(n)
	a.n = n
	return n, nil
}

func (a *Adaptive) clamp(n int) int {
	if a.min > 0 && n < a.min {
		n = a.min
	}
	if a.max > 0 && n > a.max {
		n = a.max
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (a *Adaptive) N() int { return a.n }
