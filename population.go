package abc

// Particle is a single accepted draw: the index of the model it came from,
// its parameter vector, its importance weight, and its distance from the
// observed summaries.
type Particle struct {
	Model int
	Par   Params
	W     float64
	Dist  float64
}

type Population []Particle

// Total returns the sum of particle weights.
func (pop Population) Total() float64 {
	tot := 0.0
	for _, p := range pop {
		tot += p.W
	}
	return tot
}

// Normalize scales the weights in place so they sum to one.  Populations with
// zero total weight are left unchanged.
func (pop Population) Normalize() {
	tot := pop.Total()
	if tot == 0 {
		return
	}
	for i := range pop {
		pop[i].W /= tot
	}
}

// ByModel returns the particles belonging to model m.  The returned slice
// shares no backing storage with pop.
func (pop Population) ByModel(m int) Population {
	sub := make(Population, 0, len(pop))
	for _, p := range pop {
		if p.Model == m {
			sub = append(sub, p)
		}
	}
	return sub
}

func (pop Population) Points() []Params {
	points := make([]Params, 0, len(pop))
	for _, p := range pop {
		points = append(points, p.Par)
	}
	return points
}

func (pop Population) Weights() []float64 {
	ws := make([]float64, len(pop))
	for i, p := range pop {
		ws[i] = p.W
	}
	return ws
}

func (pop Population) Dists() []float64 {
	ds := make([]float64, len(pop))
	for i, p := range pop {
		ds[i] = p.Dist
	}
	return ds
}

// ESS returns the effective sample size of the weighted population,
// (sum w)^2 / sum w^2.  An empty population has ESS zero.
func (pop Population) ESS() float64 {
	tot, sq := 0.0, 0.0
	for _, p := range pop {
		tot += p.W
		sq += p.W * p.W
	}
	if sq == 0 {
		return 0
	}
	return tot * tot / sq
}

// Mean returns the weighted mean parameter vector.  All particles in pop must
// share the same dimension, so call it on per-model views for multi-model
// populations.
func (pop Population) Mean() []float64 {
	if len(pop) == 0 {
		return nil
	}
	tot := pop.Total()
	if tot == 0 {
		return make([]float64, pop[0].Par.Len())
	}
	mean := make([]float64, pop[0].Par.Len())
	for _, p := range pop {
		for i := range mean {
			mean[i] += p.W / tot * p.Par.At(i)
		}
	}
	return mean
}
