package compass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularMean(t *testing.T) {
	tests := []struct {
		name     string
		headings []float64
		want     float64
	}{
		{"single", []float64{42}, 42},
		{"across north", []float64{359, 1}, 0},
		{"quadrant", []float64{80, 100}, 90},
		{"south", []float64{170, 190, 180}, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CircularMean(tt.headings)
			require.True(t, ok)
			diff := got - tt.want
			if diff > 180 {
				diff -= 360
			}
			if diff < -180 {
				diff += 360
			}
			assert.InDelta(t, 0, diff, 1e-9)
		})
	}
}

func TestCircularMeanUndefined(t *testing.T) {
	_, ok := CircularMean(nil)
	assert.False(t, ok)

	_, ok = CircularMean([]float64{0, 180})
	assert.False(t, ok)
}
