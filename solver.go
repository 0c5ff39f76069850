package abc

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/petar/GoLLRB/llrb"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// minDensity floors kernel densities in importance weights so particles
// proposed from a vanishing density get saturated, finite weight.
const minDensity = 1e-300

// GenStats summarizes one completed generation.
type GenStats struct {
	Gen   int
	Eps   float64
	N     int
	Nsim  int
	NextN int
	// Probs holds the model probabilities, indexed like Solver.Models.
	Probs []float64
}

// Solver runs the ABC-SMC loop.  Each generation samples candidate
// parameters (from the priors in the first generation, from fitted
// perturbation kernels afterwards), simulates them, and accepts those whose
// summaries land within the current threshold of the observations.  Between
// generations the threshold schedule tightens, fresh kernels are fitted per
// surviving model, and the sizer decides how many particles the next
// generation gets.
type Solver struct {
	// Models are the candidate models.  Model choice starts uniform and is
	// reweighted every generation by accepted weight mass.
	Models []*Model
	// Obs is the observed summary statistic vector.
	Obs []float64
	// Dist measures simulated summaries against Obs.  Nil means euclidean.
	Dist Distance
	// Eps is the acceptance threshold schedule.
	Eps Epsilon
	// Sizer decides each generation's population size.
	Sizer Sizer
	// Kernel builds perturbation kernels; a fresh one is fitted per model
	// per generation.
	Kernel func() Transition
	// Sampler runs the draws.  Nil means Serial.
	Sampler Sampler
	// Calib > 0 draws that many prior predictive candidates up front and
	// keeps the closest Sizer.N() as the initial population.
	Calib int
	// MaxGen caps the number of generations and must be positive.
	MaxGen int
	// MinEps stops the run once the next threshold is at or below it.
	MinEps float64
	// MaxSim caps the number of simulations per generation (0 = unlimited).
	MaxSim int
	// Db is an optional database where the run is recorded.
	Db *sql.DB

	mu      sync.Mutex
	gen     int
	pop     Population
	probs   []float64
	kernels []Transition
	nsim    int
	stats   []GenStats
	err     error
	inited  bool
}

// Next runs one generation.  It returns false once the run has finished or
// failed; Err distinguishes the two.
func (s *Solver) Next() bool {
	if s.err != nil {
		return false
	}
	if !s.inited {
		if s.err = s.init(); s.err != nil {
			return false
		}
	}
	if s.gen >= s.MaxGen {
		return false
	}
	if s.gen > 0 && s.Eps.Current() <= s.MinEps {
		return false
	}

	var pop Population
	var nsim int
	var err error
	if s.gen == 0 {
		pop, nsim, err = s.first()
	} else {
		pop, nsim, err = s.step()
	}
	s.nsim += nsim
	if err != nil {
		s.err = err
		return false
	}
	if err := s.finish(pop, nsim); err != nil {
		s.err = err
		return false
	}
	return true
}

// Run iterates until the schedule finishes and returns the first error
// encountered, if any.
func (s *Solver) Run() error {
	for s.Next() {
	}
	return s.err
}

func (s *Solver) init() error {
	switch {
	case len(s.Models) == 0:
		return errors.New("abc: no models to fit")
	case len(s.Obs) == 0:
		return errors.New("abc: no observed summaries")
	case s.Eps == nil:
		return errors.New("abc: no threshold schedule")
	case s.Sizer == nil:
		return errors.New("abc: no population sizer")
	case s.Kernel == nil:
		return errors.New("abc: no kernel factory")
	case s.MaxGen < 1:
		return errors.New("abc: MaxGen must be positive")
	}
	for i, m := range s.Models {
		if m.Prior == nil || m.Simulate == nil {
			return fmt.Errorf("abc: model %v is missing a prior or a simulator", i)
		}
	}

	if s.Dist == nil {
		s.Dist = func(x, y []float64) float64 { return floats.Distance(x, y, 2) }
	}
	if s.Sampler == nil {
		s.Sampler = Serial{}
	}
	s.kernels = make([]Transition, len(s.Models))
	s.probs = make([]float64, len(s.Models))
	s.initdb()
	s.inited = true
	return nil
}

// first samples the initial generation from the priors with uniform model
// choice.
func (s *Solver) first() (Population, int, error) {
	n := s.Sizer.N()
	if n < 1 {
		return nil, 0, fmt.Errorf("abc: sizer reports nonpositive population size %v", n)
	}

	eps := s.Eps.Current()
	draw := func(rng *rand.Rand) (Particle, bool, error) {
		// Proposal machinery shares the package source; only simulations
		// run on the worker streams.
		s.mu.Lock()
		m := Rand.Intn(len(s.Models))
		par := s.Models[m].Prior.Rand()
		s.mu.Unlock()

		sum, err := s.Models[m].Simulate(par, rng)
		if err != nil {
			return Particle{}, false, err
		}
		d := s.Dist(sum, s.Obs)
		return Particle{Model: m, Par: par, W: 1, Dist: d}, d <= eps, nil
	}

	if s.Calib > 0 {
		return s.calibrate(n, draw)
	}
	return s.Sampler.SampleUntil(n, s.MaxSim, draw)
}

type calItem struct {
	Particle
}

func (p1 calItem) Less(than llrb.Item) bool {
	return p1.Dist < than.(calItem).Dist
}

// calibrate spends Calib prior predictive draws and keeps the n closest to
// the observations as the initial population.
func (s *Solver) calibrate(n int, draw Draw) (Population, int, error) {
	all, nsim, err := s.Sampler.SampleUntil(s.Calib, s.Calib, draw)
	if err != nil && err != SimBudgetErr {
		return nil, nsim, err
	}
	if len(all) < n {
		return all, nsim, fmt.Errorf("abc: calibration kept %v of the %v particles needed", len(all), n)
	}

	keep := llrb.New()
	for _, p := range all {
		keep.InsertNoReplace(calItem{p})
		for keep.Len() > n {
			keep.DeleteMax()
		}
	}

	pop := make(Population, 0, n)
	for keep.Len() > 0 {
		pop = append(pop, keep.DeleteMin().(calItem).Particle)
	}
	return pop, nsim, nil
}

// step samples one post-calibration generation through the fitted kernels.
func (s *Solver) step() (Population, int, error) {
	n := s.Sizer.N()
	eps := s.Eps.Current()

	draw := func(rng *rand.Rand) (Particle, bool, error) {
		s.mu.Lock()
		m := s.pickModel()
		par := s.kernels[m].Propose()
		s.mu.Unlock()

		prior := s.Models[m].Prior.PDF(par)
		if prior == 0 {
			// outside the prior support; not worth a simulation
			return Particle{}, false, nil
		}

		sum, err := s.Models[m].Simulate(par, rng)
		if err != nil {
			return Particle{}, false, err
		}
		d := s.Dist(sum, s.Obs)
		if d > eps {
			return Particle{}, false, nil
		}

		// The proposal mass for a model m particle is the chance of picking
		// m times the kernel density there; the importance weight is prior
		// mass over that.
		den := s.probs[m] * s.kernels[m].PDF(par)
		if den < minDensity {
			den = minDensity
		}
		return Particle{Model: m, Par: par, W: prior / den, Dist: d}, true, nil
	}

	return s.Sampler.SampleUntil(n, s.MaxSim, draw)
}

// pickModel draws a model index from the current model probabilities.  Call
// with s.mu held.
func (s *Solver) pickModel() int {
	r := RandFloat()
	acc := 0.0
	last := 0
	for m, pr := range s.probs {
		if pr == 0 {
			continue
		}
		acc += pr
		last = m
		if r <= acc {
			return m
		}
	}
	return last
}

// finish runs the between-generation bookkeeping: reweight models, refit
// kernels, adapt the population size, tighten the threshold, and record.
func (s *Solver) finish(pop Population, nsim int) error {
	eps := s.Eps.Current()
	if s.gen == 0 && s.Calib > 0 {
		eps = 0
		for _, p := range pop {
			eps = math.Max(eps, p.Dist)
		}
	}

	pop.Normalize()
	s.pop = pop

	for m := range s.probs {
		s.probs[m] = 0
	}
	for _, p := range pop {
		s.probs[p.Model] += p.W
	}

	var kernels []Transition
	var weights []float64
	for m := range s.Models {
		s.kernels[m] = nil
		sub := pop.ByModel(m)
		if len(sub) == 0 {
			// extinct model; it cannot be proposed from again
			continue
		}
		k := s.Kernel()
		if err := k.Fit(sub); err != nil {
			return err
		}
		s.kernels[m] = k
		kernels = append(kernels, k)
		weights = append(weights, s.probs[m])
	}

	next, err := s.Sizer.Adapt(kernels, weights)
	if err != nil {
		return err
	}

	s.Eps.Update(pop)

	probs := make([]float64, len(s.probs))
	copy(probs, s.probs)
	st := GenStats{Gen: s.gen, Eps: eps, N: len(pop), Nsim: nsim, NextN: next, Probs: probs}
	s.stats = append(s.stats, st)
	s.updateDb(st, pop)

	s.gen++
	return nil
}

// Gen reports the number of completed generations.
func (s *Solver) Gen() int { return s.gen }

// Nsim reports the total number of simulations spent so far.
func (s *Solver) Nsim() int { return s.nsim }

// Pop returns the most recent accepted population with normalized weights.
func (s *Solver) Pop() Population {
	cp := make(Population, len(s.pop))
	copy(cp, s.pop)
	return cp
}

// Probs returns the current model probabilities, indexed like Models.
func (s *Solver) Probs() []float64 {
	cp := make([]float64, len(s.probs))
	copy(cp, s.probs)
	return cp
}

// Kernels returns the kernels fitted to the most recent generation, indexed
// like Models with nil entries for extinct models.
func (s *Solver) Kernels() []Transition {
	cp := make([]Transition, len(s.kernels))
	copy(cp, s.kernels)
	return cp
}

// Stats returns per-generation summaries for all completed generations.
func (s *Solver) Stats() []GenStats { return s.stats }

func (s *Solver) Err() error { return s.err }
