package compass

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CircularMean returns the mean bearing of headings in [0, 360), averaging
// unit vectors so that 359 and 1 average to 0 rather than 180. It returns
// false when headings is empty or the vectors cancel out.
func CircularMean(headings []float64) (float64, bool) {
	if len(headings) == 0 {
		return 0, false
	}
	sines := make([]float64, len(headings))
	cosines := make([]float64, len(headings))
	for i, h := range headings {
		rad := h * math.Pi / 180
		sines[i] = math.Sin(rad)
		cosines[i] = math.Cos(rad)
	}
	s := stat.Mean(sines, nil)
	c := stat.Mean(cosines, nil)
	if math.Hypot(s, c) < 1e-12 {
		return 0, false
	}
	return Wrap(math.Atan2(s, c) * 180 / math.Pi), true
}
