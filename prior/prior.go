// Package prior builds model priors from gonum's univariate distributions.
package prior

import (
	"github.com/rwcarlsen/abc"
)

// A Var is one independent prior dimension.  The distributions in
// gonum.org/v1/gonum/stat/distuv satisfy it.
type Var interface {
	Rand() float64
	Prob(x float64) float64
}

// Indep returns the product prior of the given independent variables, one
// parameter dimension per variable.  Indep with no variables is the prior of
// a model with no free parameters: draws are empty and the density is the
// constant 1.
func Indep(vars ...Var) abc.Prior {
	return indep{vars: vars}
}

type indep struct {
	vars []Var
}

func (pr indep) Rand() abc.Params {
	pos := make([]float64, len(pr.vars))
	for i, v := range pr.vars {
		pos[i] = v.Rand()
	}
	return abc.NewParams(pos)
}

func (pr indep) PDF(p abc.Params) float64 {
	dens := 1.0
	for i, v := range pr.vars {
		dens *= v.Prob(p.At(i))
	}
	return dens
}

func (pr indep) Dim() int { return len(pr.vars) }
