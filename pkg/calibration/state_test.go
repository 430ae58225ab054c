package calibration

import (
	"sync"
	"testing"

	"gotest.tools/assert"
)

func TestStateStore(t *testing.T) {
	s := NewState(0.5)
	assert.Equal(t, s.Current(), 0.5)
	assert.Equal(t, s.Passes(), uint64(0))
	s.Store(0.75)
	assert.Equal(t, s.Current(), 0.75)
	assert.Equal(t, s.Passes(), uint64(1))
}

func TestStateNeverTorn(t *testing.T) {
	s := NewState(1.0)
	values := map[float64]bool{1.0: true, -2.5e-7: true, 3.299999: true}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			if i%2 == 0 {
				s.Store(-2.5e-7)
			} else {
				s.Store(3.299999)
			}
		}
	}()
	for i := 0; i < 10000; i++ {
		assert.Check(t, values[s.Current()])
	}
	wg.Wait()
}
