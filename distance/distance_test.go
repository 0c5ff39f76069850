package distance_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rwcarlsen/abc/distance"
)

func TestNorms(t *testing.T) {
	x := []float64{0, 3}
	y := []float64{4, 0}

	assert.Equal(t, 5.0, distance.Euclidean()(x, y))
	assert.Equal(t, 7.0, distance.PNorm(1)(x, y))
	assert.Equal(t, 4.0, distance.Chebyshev()(x, y))
	assert.Equal(t, 0.0, distance.Euclidean()(x, x))

	assert.Panics(t, func() { distance.PNorm(0.5) })
}

func TestScaled(t *testing.T) {
	d := distance.Scaled([]float64{2, 1}, distance.Euclidean())
	assert.InDelta(t, math.Sqrt2, d([]float64{2, 1}, []float64{0, 0}), 1e-12)

	// a zero scale drops the coordinate entirely
	d = distance.Scaled([]float64{0, 1}, distance.Euclidean())
	assert.Equal(t, 3.0, d([]float64{5, 3}, []float64{0, 0}))
}

func TestMADScales(t *testing.T) {
	samples := [][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
		{4, 40},
		{5, 50},
	}
	assert.Equal(t, []float64{1, 10}, distance.MADScales(samples))

	assert.Nil(t, distance.MADScales(nil))

	// a summary that never varies scales to zero
	assert.Equal(t, []float64{0}, distance.MADScales([][]float64{{7}, {7}, {7}}))
}
