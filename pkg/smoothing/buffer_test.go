package smoothing

import (
	"math"
	"math/rand"
	"testing"

	"gotest.tools/assert"
)

const tolerance = 1e-9

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func TestEmptyMean(t *testing.T) {
	b := NewBuffer(10)
	assert.Equal(t, b.Mean(), 0.0)
	assert.Equal(t, b.Len(), 0)
	assert.Equal(t, b.Cap(), 10)
}

func TestMeanOfPartialWindow(t *testing.T) {
	b := NewBuffer(4)
	for _, v := range []float64{1.00, 1.02, 0.98, 1.01} {
		b.Push(v)
	}
	assert.Check(t, math.Abs(b.Mean()-1.0025) < tolerance)
	assert.Equal(t, b.Len(), 4)
}

func TestSlidingWindow(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, capacity := range []int{1, 3, 10, 50} {
		b := NewBuffer(capacity)
		var pushed []float64
		for i := 0; i < capacity*3+1; i++ {
			v := r.Float64() * 3.3
			b.Push(v)
			pushed = append(pushed, v)
			start := 0
			if len(pushed) > capacity {
				start = len(pushed) - capacity
			}
			window := pushed[start:]
			assert.Check(t, math.Abs(b.Mean()-mean(window)) < tolerance, "capacity %d push %d", capacity, i)
			assert.DeepEqual(t, b.Values(), window)
			assert.Check(t, b.Len() <= capacity)
		}
	}
}

func TestInvalidCapacity(t *testing.T) {
	b := NewBuffer(0)
	b.Push(1)
	b.Push(2)
	assert.Equal(t, b.Cap(), 1)
	assert.Equal(t, b.Mean(), 2.0)
}

func TestReset(t *testing.T) {
	b := NewBuffer(3)
	b.Push(5)
	b.Reset()
	assert.Equal(t, b.Len(), 0)
	assert.Equal(t, b.Mean(), 0.0)
}
