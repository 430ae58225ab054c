package hardware

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// rpioPin is the part of rpio.Pin in use here
type rpioPin interface {
	High()
	Low()
	Read() rpio.State
	EdgeDetected() bool
}

// OpenRPIO maps the BCM2835 registers; the returned func unmaps them
func OpenRPIO() (func(), error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "rpio open issue")
	}
	return func() { rpio.Close() }, nil
}

// RPIOPin drives the excitation pin through /dev/gpiomem
type RPIOPin struct {
	pin rpioPin
}

// NewRPIOPin configures BCM pin n as an output driven low
func NewRPIOPin(n int) *RPIOPin {
	pin := rpio.Pin(n)
	pin.Output()
	pin.Low()
	return &RPIOPin{pin: pin}
}

func (p *RPIOPin) High() error {
	p.pin.High()
	return nil
}

func (p *RPIOPin) Low() error {
	p.pin.Low()
	return nil
}

// RPIOButton polls the edge detect register of an input pin
type RPIOButton struct {
	pin  rpioPin
	poll time.Duration
}

// NewRPIOButton configures BCM pin n as a pulled down input detecting rising edges
func NewRPIOButton(n int, poll time.Duration) *RPIOButton {
	pin := rpio.Pin(n)
	pin.Input()
	pin.PullDown()
	pin.Detect(rpio.RiseEdge)
	return &RPIOButton{pin: pin, poll: poll}
}

// Active reports whether the line currently reads high
func (b *RPIOButton) Active() bool { return b.pin.Read() == rpio.High }

// Listen calls onEdge for every detected rising edge until ctx is done
func (b *RPIOButton) Listen(ctx context.Context, onEdge func() bool) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if b.pin.EdgeDetected() {
				onEdge()
			}
		}
	}
}
