// Package sensor reads the vane transducer through its power gated excitation pin.
package sensor

import (
	"context"
	"time"

	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/pkg/errors"
)

// Sensor owns the excitation pin and the converter channels. Every acquisition is
// one pin-on / settle / sample / pin-off unit; acquisitions never overlap.
type Sensor struct {
	token  chan struct{}
	pin    DigitalOutput
	inputs map[models.Channel]AnalogInput
	settle time.Duration
}

// New returns a sensor sampling measurement and reference through pin
func New(pin DigitalOutput, measurement AnalogInput, reference AnalogInput, settle time.Duration) *Sensor {
	return &Sensor{
		token: make(chan struct{}, 1),
		pin:   pin,
		inputs: map[models.Channel]AnalogInput{
			models.Measurement: measurement,
			models.Reference:   reference,
		},
		settle: settle,
	}
}

// Settle returns the excitation rise time waited before each sample
func (s *Sensor) Settle() time.Duration { return s.settle }

func (s *Sensor) acquire(ctx context.Context) error {
	select {
	case s.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sensor) release() { <-s.token }

// Measure powers the transducer, waits for it to settle, samples channel and powers it down again
func (s *Sensor) Measure(ctx context.Context, channel models.Channel) (models.Reading, error) {
	input, ok := s.inputs[channel]
	if !ok || input == nil {
		return models.Reading{}, errors.Errorf("no converter wired for %s channel", channel)
	}
	if err := s.acquire(ctx); err != nil {
		return models.Reading{}, err
	}
	defer s.release()
	if err := s.pin.High(); err != nil {
		return models.Reading{}, errors.Wrap(err, "excitation pin issue")
	}
	defer s.pin.Low()
	if !util.Sleep(ctx, s.settle) {
		return models.Reading{}, ctx.Err()
	}
	raw, err := input.Read()
	if err != nil {
		return models.Reading{}, errors.Wrap(err, "converter read issue")
	}
	return models.Reading{Value: Volts(raw, input.FullScale(), input.VRef()), Channel: channel}, nil
}
