package hardware

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockTransducer simulates the power gated vane on a development machine.
// The output reads zero while the excitation pin is low.
type MockTransducer struct {
	mutex     sync.Mutex
	powered   bool
	start     time.Time
	fullScale uint32
	vref      float64
	noise     float64
	rand      *rand.Rand
}

// NewMockTransducer returns a simulated transducer with relative noise level noise
func NewMockTransducer(fullScale uint32, vref float64, noise float64) *MockTransducer {
	return &MockTransducer{
		start:     time.Now(),
		fullScale: fullScale,
		vref:      vref,
		noise:     noise,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockTransducer) High() error {
	m.mutex.Lock()
	m.powered = true
	m.mutex.Unlock()
	return nil
}

func (m *MockTransducer) Low() error {
	m.mutex.Lock()
	m.powered = false
	m.mutex.Unlock()
	return nil
}

func (m *MockTransducer) sample(fraction float64) uint32 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.powered {
		return 0
	}
	v := fraction + m.noise*(m.rand.Float64()*2-1)
	return clamp(int(v*float64(m.fullScale)), m.fullScale)
}

// Measurement returns the vane output: a slow swing around 40% of full scale
func (m *MockTransducer) Measurement() *MockChannel {
	return &MockChannel{m: m, fraction: func() float64 {
		return 0.4 + 0.1*math.Sin(time.Since(m.start).Seconds()/10)
	}}
}

// Reference returns the supply reference at 90% of full scale
func (m *MockTransducer) Reference() *MockChannel {
	return &MockChannel{m: m, fraction: func() float64 { return 0.9 }}
}

// MockChannel is one simulated converter channel
type MockChannel struct {
	m        *MockTransducer
	fraction func() float64
}

func (c *MockChannel) Read() (uint32, error) { return c.m.sample(c.fraction()), nil }
func (c *MockChannel) FullScale() uint32     { return c.m.fullScale }
func (c *MockChannel) VRef() float64         { return c.m.vref }
