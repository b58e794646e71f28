package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroSizeActsAsOne(t *testing.T) {
	zero := NewMovingAverage(0, 3)
	one := NewMovingAverage(1, 3)

	assert.Equal(t, 1, zero.Size())
	assert.Equal(t, one.Average(), zero.Average())

	for _, v := range []float64{7, -2, 11.5} {
		assert.Equal(t, v, zero.Add(v))
		assert.Equal(t, one.Add(v), zero.Average())
	}
}

func TestNegativeSizeActsAsOne(t *testing.T) {
	m := NewMovingAverage(-4, 0)
	assert.Equal(t, 1, m.Size())
	assert.Equal(t, 9.0, m.Add(9))
}

func TestWindowOfTwo(t *testing.T) {
	m := NewMovingAverage(2, 0)

	assert.Equal(t, 2.5, m.Add(5))
	assert.Equal(t, 7.5, m.Add(10))
	assert.Equal(t, 7.5, m.Average())

	m.Add(2.5)
	assert.Equal(t, 2.5, m.Add(2.5))
}

func TestInitialFillBlendsWithFirstSamples(t *testing.T) {
	m := NewMovingAverage(4, 10)
	assert.Equal(t, 10.0, m.Average())

	assert.Equal(t, 12.5, m.Add(20))
	assert.Equal(t, 15.0, m.Add(20))
	assert.Equal(t, 17.5, m.Add(20))
	assert.Equal(t, 20.0, m.Add(20))
	// Fifth sample wraps to the first slot.
	assert.Equal(t, 15.0, m.Add(0))
}

func TestAverageDoesNotMutate(t *testing.T) {
	m := NewMovingAverage(3, 0)
	m.Add(3)
	first := m.Average()
	second := m.Average()
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, first)
}
