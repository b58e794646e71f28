// Package filter smooths noisy per-axis sensor readings.
package filter

import "gonum.org/v1/gonum/floats"

// MovingAverage is a fixed-window running mean. Each Add overwrites the
// oldest slot, so memory stays constant for the life of the stream.
type MovingAverage struct {
	window []float64
	cursor int
}

// NewMovingAverage returns a window of size slots, each set to initial. A
// size below one is treated as one.
func NewMovingAverage(size int, initial float64) *MovingAverage {
	if size < 1 {
		size = 1
	}
	window := make([]float64, size)
	for i := range window {
		window[i] = initial
	}
	return &MovingAverage{window: window}
}

// Add records value in place of the oldest sample and returns the new mean.
func (m *MovingAverage) Add(value float64) float64 {
	m.window[m.cursor] = value
	m.cursor = (m.cursor + 1) % len(m.window)
	return m.Average()
}

// Average returns the current mean without changing state.
func (m *MovingAverage) Average() float64 {
	return floats.Sum(m.window) / float64(len(m.window))
}

// Size reports the window length.
func (m *MovingAverage) Size() int { return len(m.window) }
