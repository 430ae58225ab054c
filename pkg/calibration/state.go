// Package calibration keeps the baseline of the vane transducer and recomputes it on demand.
package calibration

import (
	"math"
	"sync/atomic"
)

// State holds the current baseline. The value is swapped as one word, so a
// reader sees either the previous or the new baseline, never a mix.
type State struct {
	bits   atomic.Uint64
	passes atomic.Uint64
}

// NewState returns a state holding initial as baseline
func NewState(initial float64) *State {
	s := &State{}
	s.bits.Store(math.Float64bits(initial))
	return s
}

// Current returns the baseline of the most recently completed calibration pass
func (s *State) Current() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Store replaces the baseline
func (s *State) Store(baseline float64) {
	s.bits.Store(math.Float64bits(baseline))
	s.passes.Add(1)
}

// Passes returns how many calibration passes completed
func (s *State) Passes() uint64 {
	return s.passes.Load()
}
