// Package visual renders run diagnostics with gonum plot.
package visual

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rwcarlsen/abc"
	"github.com/rwcarlsen/abc/transition"
)

// SaveTrace writes the threshold and accepted-count trajectories over the
// completed generations to path.  The image format follows the extension.
func SaveTrace(stats []abc.GenStats, path string) error {
	if len(stats) == 0 {
		return fmt.Errorf("visual: no generations to plot")
	}

	epsXY := make(plotter.XYs, 0, len(stats))
	sizeXY := make(plotter.XYs, 0, len(stats))
	for _, st := range stats {
		// the unconstrained first threshold has no place on a linear axis
		if !math.IsInf(st.Eps, 0) {
			epsXY = append(epsXY, plotter.XY{X: float64(st.Gen), Y: st.Eps})
		}
		sizeXY = append(sizeXY, plotter.XY{X: float64(st.Gen), Y: float64(st.N)})
	}

	p := plot.New()
	p.Title.Text = "threshold and population trace"
	p.X.Label.Text = "generation"

	eline, err := plotter.NewLine(epsXY)
	if err != nil {
		return err
	}
	sline, err := plotter.NewLine(sizeXY)
	if err != nil {
		return err
	}
	sline.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(eline, sline)
	p.Legend.Add("eps", eline)
	p.Legend.Add("accepted", sline)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// SavePosterior writes a weighted kernel density curve of parameter
// dimension dim of pop to path.  All particles in pop must share a model.
func SavePosterior(pop abc.Population, dim int, path string) error {
	if len(pop) == 0 {
		return fmt.Errorf("visual: no particles to plot")
	}

	marg := make(abc.Population, len(pop))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, p := range pop {
		v := p.Par.At(dim)
		marg[i] = abc.Particle{Par: abc.NewParams([]float64{v}), W: p.W}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	k := transition.NewMVNormal()
	if err := k.Fit(marg); err != nil {
		return err
	}

	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) / 4
	lo, hi = lo-pad, hi+pad

	const npts = 200
	xys := make(plotter.XYs, npts)
	for i := 0; i < npts; i++ {
		x := lo + (hi-lo)*float64(i)/(npts-1)
		xys[i] = plotter.XY{X: x, Y: k.PDF(abc.NewParams([]float64{x}))}
	}

	p := plot.New()
	p.X.Label.Text = fmt.Sprintf("x%v", dim)
	p.Y.Label.Text = "density"

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	p.Add(line)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
