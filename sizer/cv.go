package sizer

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rwcarlsen/abc"
)

// minDensity floors kernel densities before inversion so a zero-density
// point contributes a saturated, finite weight instead of overflowing.
const minDensity = 1e-300

// CV returns the coefficient of variation of the normalized importance
// weights the kernel implies at its own fitted support: each fitted point
// contributes weight proportional to the reciprocal of the kernel density
// there.  Reusing the fitted points keeps CV deterministic and read only
// with respect to the kernel.
//
// Kernels over zero-parameter models and single-point fits have no weight
// spread, so they report zero.
func CV(k abc.Transition) float64 {
	if k.Dim() == 0 {
		return 0
	}

	pop := k.Fitted()
	if len(pop) < 2 {
		return 0
	}

	ws := make([]float64, len(pop))
	for i, p := range pop {
		d := k.PDF(p.Par)
		if d < minDensity {
			d = minDensity
		}
		ws[i] = 1 / d
	}

	// Normalize before taking moments so saturated weights cannot overflow
	// the sum or the variance.
	floats.Scale(1/floats.Max(ws), ws)
	floats.Scale(1/floats.Sum(ws), ws)

	mean, sd := stat.MeanStdDev(ws, nil)
	return sd / mean
}
