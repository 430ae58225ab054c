package calibration

import (
	"math"
	"sync/atomic"
	"time"
)

const never = math.MinInt64

// Trigger turns a noisy rising edge signal into at most one fire per debounce window.
// Edge does no blocking work and may be called from an interrupt handler.
type Trigger struct {
	window time.Duration
	last   atomic.Int64
	active func() bool
	fire   func() bool
	now    func() time.Time
}

// NewTrigger returns a trigger calling fire for accepted edges. active reports
// whether the signal line currently reads in its active state.
func NewTrigger(window time.Duration, active func() bool, fire func() bool) *Trigger {
	t := &Trigger{window: window, active: active, fire: fire, now: time.Now}
	t.last.Store(never)
	return t
}

// Edge handles a rising edge observed now
func (t *Trigger) Edge() bool {
	return t.EdgeAt(t.now())
}

// EdgeAt handles a rising edge observed at ts
func (t *Trigger) EdgeAt(ts time.Time) bool {
	now := ts.UnixNano()
	for {
		last := t.last.Load()
		if last != never && time.Duration(now-last) <= t.window {
			return false
		}
		if t.active != nil && !t.active() {
			return false
		}
		if t.last.CompareAndSwap(last, now) {
			break
		}
	}
	t.fire()
	return true
}
