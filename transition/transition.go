// Package transition provides perturbation kernels for ABC-SMC.  A kernel is
// fitted to the weighted particle population of one model for one generation
// and then serves density evaluations and perturbed proposals for the next.
package transition

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/rwcarlsen/abc"
)

var EmptyFitErr = errors.New("transition: cannot fit a kernel to an empty population")

// DefaultScaling is the factor applied to the weighted sample covariance to
// obtain the kernel bandwidth.
const DefaultScaling = 1.0

type Option func(*MVNormal)

// Scaling sets the covariance scaling factor.  Values below 1 narrow the
// kernel, values above 1 widen it.
func Scaling(s float64) Option {
	if s <= 0 {
		panic("transition: scaling factor must be positive")
	}
	return func(t *MVNormal) {
		t.scaling = s
	}
}

// Src sets the random source used for proposals.  The default is abc.Rand,
// bound at Fit time.
func Src(src rand.Source) Option {
	return func(t *MVNormal) {
		t.src = src
	}
}

// MVNormal is a gaussian kernel density estimate over a weighted particle
// population.  The bandwidth is the weighted sample covariance of the fitted
// particles times a scaling factor, shared by all mixture components.  A fit
// to a zero-parameter population is valid: the density is the constant 1 and
// proposals are empty.
type MVNormal struct {
	scaling float64
	src     rand.Source

	pop   abc.Population
	cumw  []float64
	dim   int
	noise *distmv.Normal
	rnd   *rand.Rand
}

func NewMVNormal(opts ...Option) *MVNormal {
	t := &MVNormal{scaling: DefaultScaling}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MVNormal) Fit(pop abc.Population) error {
	if len(pop) == 0 {
		return EmptyFitErr
	}

	// Keep a normalized private copy so caller-side reweighting cannot drift
	// the fitted state.
	cp := make(abc.Population, len(pop))
	copy(cp, pop)
	cp.Normalize()

	t.pop = cp
	t.dim = cp[0].Par.Len()
	t.cumw = make([]float64, len(cp))
	sum := 0.0
	for i, p := range cp {
		sum += p.W
		t.cumw[i] = sum
	}

	src := t.src
	if src == nil {
		src = abc.Rand
	}
	t.rnd = rand.New(src)

	if t.dim == 0 {
		t.noise = nil
		return nil
	}

	x := mat.NewDense(len(cp), t.dim, nil)
	for i, p := range cp {
		x.SetRow(i, p.Par.Pos())
	}

	cov := mat.NewSymDense(t.dim, nil)
	if len(cp) < 2 {
		// A single support point has no spread.  Unit bandwidth keeps the
		// kernel proper.
		for i := 0; i < t.dim; i++ {
			cov.SetSym(i, i, 1)
		}
	} else {
		stat.CovarianceMatrix(cov, x, cp.Weights())
	}

	for i := 0; i < t.dim; i++ {
		for j := i; j < t.dim; j++ {
			v := cov.At(i, j) * t.scaling
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			cov.SetSym(i, j, v)
		}
	}

	// Collapsed or degenerate samples give a singular covariance.  Inflate
	// the diagonal until the Cholesky factorization succeeds.
	ridge := 1e-6
	for try := 0; ; try++ {
		nd, ok := distmv.NewNormal(make([]float64, t.dim), cov, src)
		if ok {
			t.noise = nd
			return nil
		}
		if try == 6 {
			return fmt.Errorf("transition: covariance is not positive definite after ridge repair")
		}
		for i := 0; i < t.dim; i++ {
			cov.SetSym(i, i, cov.At(i, i)+ridge)
		}
		ridge *= 10
	}
}

// PDF returns the fitted mixture density at p.  It panics if the kernel has
// not been fitted.
func (t *MVNormal) PDF(p abc.Params) float64 {
	if t.pop == nil {
		panic("transition: PDF called before Fit")
	}
	if t.dim == 0 {
		return 1
	}

	diff := make([]float64, t.dim)
	dens := 0.0
	for _, q := range t.pop {
		for i := range diff {
			diff[i] = p.At(i) - q.Par.At(i)
		}
		dens += q.W * t.noise.Prob(diff)
	}
	return dens
}

// Propose draws an ancestor from the fitted population proportionally to its
// weight and perturbs it with the kernel bandwidth.  It panics if the kernel
// has not been fitted.
func (t *MVNormal) Propose() abc.Params {
	if t.pop == nil {
		panic("transition: Propose called before Fit")
	}
	if t.dim == 0 {
		return abc.Params{}
	}

	anc := t.pop[t.pick()].Par
	pos := t.noise.Rand(nil)
	for i := range pos {
		pos[i] += anc.At(i)
	}
	return abc.NewParams(pos)
}

func (t *MVNormal) pick() int {
	r := t.rnd.Float64() * t.cumw[len(t.cumw)-1]
	for i, c := range t.cumw {
		if r <= c {
			return i
		}
	}
	return len(t.cumw) - 1
}

func (t *MVNormal) Dim() int { return t.dim }

func (t *MVNormal) Fitted() abc.Population {
	cp := make(abc.Population, len(t.pop))
	copy(cp, t.pop)
	return cp
}
