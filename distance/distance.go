// Package distance provides metrics over summary statistic vectors.
package distance

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rwcarlsen/abc"
)

// PNorm returns the L-p distance between summary vectors.
func PNorm(p float64) abc.Distance {
	if p < 1 {
		panic("distance: p-norms need p >= 1")
	}
	return func(x, y []float64) float64 {
		return floats.Distance(x, y, p)
	}
}

func Euclidean() abc.Distance { return PNorm(2) }

func Chebyshev() abc.Distance {
	return func(x, y []float64) float64 {
		return floats.Distance(x, y, math.Inf(1))
	}
}

// Scaled wraps base so coordinate i is divided by scales[i] first, putting
// summaries of different magnitudes on common footing.  Coordinates with
// scale zero carry no information and are ignored.
func Scaled(scales []float64, base abc.Distance) abc.Distance {
	return func(x, y []float64) float64 {
		sx := make([]float64, len(x))
		sy := make([]float64, len(y))
		for i := range x {
			if scales[i] == 0 {
				continue
			}
			sx[i] = x[i] / scales[i]
			sy[i] = y[i] / scales[i]
		}
		return base(sx, sy)
	}
}

// MADScales returns the per-coordinate median absolute deviation of a sample
// of summary vectors, typically calibration simulations from the prior.  The
// result feeds Scaled.
func MADScales(samples [][]float64) []float64 {
	if len(samples) == 0 {
		return nil
	}

	dim := len(samples[0])
	scales := make([]float64, dim)
	col := make([]float64, len(samples))
	dev := make([]float64, len(samples))
	for j := 0; j < dim; j++ {
		for i, s := range samples {
			col[i] = s[j]
		}
		sort.Float64s(col)
		med := stat.Quantile(0.5, stat.Empirical, col, nil)

		for i, s := range samples {
			dev[i] = math.Abs(s[j] - med)
		}
		sort.Float64s(dev)
		scales[j] = stat.Quantile(0.5, stat.Empirical, dev, nil)
	}
	return scales
}
