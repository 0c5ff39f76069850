package abc

import (
	"errors"
	"sync"

	"golang.org/x/exp/rand"
)

// SimBudgetErr signals that a sampler ran out of draws before collecting the
// requested number of acceptances.
var SimBudgetErr = errors.New("abc: simulation budget exhausted before the population filled")

// A Draw generates and tests one candidate particle; ok reports acceptance.
// All randomness must come from rng so draws can run concurrently.
type Draw func(rng *rand.Rand) (p Particle, ok bool, err error)

// A Sampler collects accepted particles for one generation.
type Sampler interface {
	// SampleUntil calls draw until n candidates have been accepted or
	// maxdraw candidates have been tried (0 means unlimited).  It returns
	// the accepted particles and the number of draws spent.  If the budget
	// runs out first, the partial population comes back with SimBudgetErr.
	SampleUntil(n, maxdraw int, draw Draw) (Population, int, error)
}

// Serial runs every draw on the calling goroutine using the package source.
type Serial struct {
	// ContinueOnErr turns simulator errors into plain rejections instead of
	// aborting the generation.
	ContinueOnErr bool
}

func (s Serial) SampleUntil(n, maxdraw int, draw Draw) (Population, int, error) {
	pop := make(Population, 0, n)
	nsim := 0
	for len(pop) < n {
		if maxdraw > 0 && nsim >= maxdraw {
			return pop, nsim, SimBudgetErr
		}

		p, ok, err := draw(Rand)
		nsim++
		if err != nil {
			if !s.ContinueOnErr {
				return pop, nsim, err
			}
			continue
		}
		if ok {
			pop = append(pop, p)
		}
	}
	return pop, nsim, nil
}

// Parallel fans draws out over W goroutines, each with its own random stream
// seeded from the package source.  Acceptance order depends on scheduling,
// so runs are not reproducible even with a fixed seed.
type Parallel struct {
	W             int
	ContinueOnErr bool
}

func (par Parallel) SampleUntil(n, maxdraw int, draw Draw) (Population, int, error) {
	w := par.W
	if w < 1 {
		w = 1
	}

	var mu sync.Mutex
	pop := make(Population, 0, n)
	nsim := 0
	var ferr error

	var wg sync.WaitGroup
	wg.Add(w)
	for i := 0; i < w; i++ {
		rng := rand.New(rand.NewSource(Rand.Uint64()))
		go func(rng *rand.Rand) {
			defer wg.Done()
			for {
				// Reserve the draw before running it so nsim never passes
				// the budget.
				mu.Lock()
				if len(pop) >= n || ferr != nil || (maxdraw > 0 && nsim >= maxdraw) {
					mu.Unlock()
					return
				}
				nsim++
				mu.Unlock()

				p, ok, err := draw(rng)

				mu.Lock()
				if err != nil && !par.ContinueOnErr && ferr == nil {
					ferr = err
				}
				if err == nil && ok && len(pop) < n {
					pop = append(pop, p)
				}
				mu.Unlock()
			}
		}(rng)
	}
	wg.Wait()

	switch {
	case ferr != nil:
		return pop, nsim, ferr
	case len(pop) < n:
		return pop, nsim, SimBudgetErr
	}
	return pop, nsim, nil
}
