// Package eps provides acceptance threshold schedules for ABC-SMC.
package eps

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rwcarlsen/abc"
)

// Constant holds the acceptance threshold fixed for the whole run.
type Constant struct {
	Eps float64
}

func (c Constant) Current() float64 { return c.Eps }

func (c Constant) Update(pop abc.Population) {}

// List walks a preset threshold schedule and sticks at the last entry once
// the schedule is exhausted.
type List struct {
	vals []float64
	i    int
}

func NewList(vals ...float64) *List {
	if len(vals) == 0 {
		panic("eps: empty threshold list")
	}
	return &List{vals: vals}
}

func (l *List) Current() float64 { return l.vals[l.i] }

func (l *List) Update(pop abc.Population) {
	if l.i < len(l.vals)-1 {
		l.i++
	}
}

// Quantile tightens the threshold each generation to a weighted quantile of
// the accepted distances.  The first generation runs unconstrained, so the
// initial population is a draw from the prior unless the solver calibrates
// one.
type Quantile struct {
	q   float64
	cur float64
}

func NewQuantile(q float64) *Quantile {
	if q <= 0 || q >= 1 {
		panic("eps: quantile must be inside (0, 1)")
	}
	return &Quantile{q: q, cur: math.Inf(1)}
}

// NewMedian returns the schedule that halves the accepted distance mass each
// generation.
func NewMedian() *Quantile { return NewQuantile(0.5) }

func (qe *Quantile) Current() float64 { return qe.cur }

func (qe *Quantile) Update(pop abc.Population) {
	if len(pop) == 0 {
		return
	}

	type pair struct{ d, w float64 }
	ps := make([]pair, len(pop))
	for i, p := range pop {
		ps[i] = pair{p.Dist, p.W}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].d < ps[j].d })

	ds := make([]float64, len(ps))
	ws := make([]float64, len(ps))
	for i, p := range ps {
		ds[i], ws[i] = p.d, p.w
	}
	if pop.Total() == 0 {
		ws = nil
	}
	qe.cur = stat.Quantile(qe.q, stat.Empirical, ds, ws)
}
