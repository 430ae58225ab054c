package receiver

import (
	"sync"

	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/Krajiyah/vanelink/pkg/protocol"
	"github.com/Krajiyah/vanelink/pkg/smoothing"
)

// State is what the receiver has learned from decoded frames. It outlives sessions,
// so the last baseline survives a reconnect.
type State struct {
	mutex       sync.RWMutex
	baseline    float64
	hasBaseline bool
	reference   *smoothing.Buffer
	reading     *smoothing.Buffer
}

// NewState returns a state averaging reference and reading over window frames each
func NewState(window int) *State {
	return &State{
		reference: smoothing.NewBuffer(window),
		reading:   smoothing.NewBuffer(window),
	}
}

// Apply folds one decoded frame into the state
func (s *State) Apply(f protocol.Frame) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if f.HasBaseline {
		s.baseline = f.Baseline
		s.hasBaseline = true
	}
	if f.HasReference {
		s.reference.Push(f.Reference)
	}
	s.reading.Push(f.Reading)
}

// Baseline returns the last baseline seen and whether one was seen at all
func (s *State) Baseline() (float64, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.baseline, s.hasBaseline
}

// Derived returns the reconstructed value once a baseline and a reading are known
func (s *State) Derived() (models.Derived, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.hasBaseline || s.reading.Len() == 0 {
		return models.Derived{}, false
	}
	reading := s.reading.Mean()
	return models.Derived{
		Baseline:  s.baseline,
		Reference: s.reference.Mean(),
		Reading:   reading,
		Value:     reading - s.baseline,
	}, true
}
