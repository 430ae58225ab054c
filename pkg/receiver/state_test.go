package receiver

import (
	"math"
	"testing"

	"github.com/Krajiyah/vanelink/pkg/protocol"
	"gotest.tools/assert"
)

func near(a float64, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDerivedNeedsBaselineAndReading(t *testing.T) {
	s := NewState(10)
	_, ok := s.Derived()
	assert.Check(t, !ok)

	s.Apply(protocol.Frame{HasReference: true, Reference: 3.3, Reading: 1.2})
	_, ok = s.Derived()
	assert.Check(t, !ok)

	s.Apply(protocol.Frame{HasBaseline: true, Baseline: 0.5, Reading: 1.4})
	d, ok := s.Derived()
	assert.Check(t, ok)
	assert.Check(t, near(d.Baseline, 0.5))
	assert.Check(t, near(d.Reading, 1.3))
	assert.Check(t, near(d.Reference, 3.3))
	assert.Check(t, near(d.Value, 0.8))
}

func TestReferenceFramesKeepBaseline(t *testing.T) {
	s := NewState(10)
	s.Apply(protocol.Frame{HasBaseline: true, Baseline: 0.5, Reading: 1.0})
	for i := 0; i < 5; i++ {
		s.Apply(protocol.Frame{HasReference: true, Reference: 3.0 + float64(i)*0.1, Reading: 1.0})
	}
	b, ok := s.Baseline()
	assert.Check(t, ok)
	assert.Equal(t, b, 0.5)
	d, _ := s.Derived()
	assert.Check(t, near(d.Reference, 3.2))
}

func TestStateWindowEvicts(t *testing.T) {
	s := NewState(2)
	s.Apply(protocol.Frame{HasBaseline: true, Baseline: 0, Reading: 10})
	s.Apply(protocol.Frame{HasReference: true, Reference: 1, Reading: 2})
	s.Apply(protocol.Frame{HasReference: true, Reference: 3, Reading: 4})
	d, ok := s.Derived()
	assert.Check(t, ok)
	assert.Check(t, near(d.Reading, 3))
	assert.Check(t, near(d.Reference, 2))
}

func TestLegacyFrameSetsEverything(t *testing.T) {
	s := NewState(1)
	f, err := protocol.DecodeLegacy([]byte("Baseline=0.500000,Vref=3.300000,Reading=1.250000"))
	assert.NilError(t, err)
	s.Apply(f)
	d, ok := s.Derived()
	assert.Check(t, ok)
	assert.Check(t, near(d.Value, 0.75))
	assert.Check(t, near(d.Reference, 3.3))
}
