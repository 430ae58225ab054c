package calibration

import (
	"context"

	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Measurer is the single acquisition method of the sensor
type Measurer interface {
	Measure(ctx context.Context, channel models.Channel) (models.Reading, error)
}

// Recalibrator runs calibration passes as a unit of work separate from the send loop.
// Requests are coalesced: while a pass is queued, further requests are dropped.
type Recalibrator struct {
	state    *State
	sensor   Measurer
	requests chan struct{}
	onDone   func(float64)
	log      logrus.FieldLogger
}

// NewRecalibrator returns a recalibrator writing into state. onDone may be nil.
func NewRecalibrator(state *State, sensor Measurer, onDone func(float64), log logrus.FieldLogger) *Recalibrator {
	return &Recalibrator{
		state:    state,
		sensor:   sensor,
		requests: make(chan struct{}, 1),
		onDone:   onDone,
		log:      log,
	}
}

// Request enqueues a pass without blocking. It is safe to call from an edge handler.
func (r *Recalibrator) Request() bool {
	select {
	case r.requests <- struct{}{}:
		return true
	default:
		return false
	}
}

// Calibrate performs one pass synchronously and stores the baseline on success
func (r *Recalibrator) Calibrate(ctx context.Context) error {
	reading, err := r.sensor.Measure(ctx, models.Measurement)
	if err != nil {
		return errors.Wrap(err, "calibration pass issue")
	}
	r.state.Store(reading.Value)
	if r.onDone != nil {
		r.onDone(reading.Value)
	}
	return nil
}

// Run serves requests until ctx is done
func (r *Recalibrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.requests:
			if err := r.Calibrate(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.WithError(err).Warn("recalibration failed, keeping previous baseline")
				continue
			}
			r.log.WithField("baseline", r.state.Current()).Info("recalibrated")
		}
	}
}
