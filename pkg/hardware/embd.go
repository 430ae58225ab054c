// Package hardware binds the sensor and the recalibration button to real pins:
// embd and go-rpio on Linux boards, or a microcontroller converter bridge on a serial port.
package hardware

import (
	"context"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
	"github.com/pkg/errors"
)

// embdDigital is the part of embd.DigitalPin in use here
type embdDigital interface {
	Write(val int) error
	Read() (int, error)
	Watch(edge embd.Edge, handler func(embd.DigitalPin)) error
	StopWatching() error
	Close() error
}

// embdAnalog is the part of embd.AnalogPin in use here
type embdAnalog interface {
	Read() (int, error)
	Close() error
}

// InitEmbd initializes the embd GPIO and analog drivers of the detected host
func InitEmbd() (func(), error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, errors.Wrap(err, "gpio init issue")
	}
	return func() { embd.CloseGPIO() }, nil
}

// EmbdPin drives the excitation pin through embd
type EmbdPin struct {
	pin embdDigital
}

// OpenEmbdPin configures pin n as an output driven low
func OpenEmbdPin(n int) (*EmbdPin, error) {
	pin, err := embd.NewDigitalPin(n)
	if err != nil {
		return nil, errors.Wrap(err, "digital pin issue")
	}
	if err := pin.SetDirection(embd.Out); err != nil {
		pin.Close()
		return nil, errors.Wrap(err, "pin direction issue")
	}
	p := &EmbdPin{pin: pin}
	return p, p.Low()
}

func (p *EmbdPin) High() error { return p.pin.Write(embd.High) }
func (p *EmbdPin) Low() error  { return p.pin.Write(embd.Low) }

// Close drives the pin low and releases it
func (p *EmbdPin) Close() error {
	p.Low()
	return p.pin.Close()
}

// EmbdAnalog is one converter channel read through embd. embd reports counts in [0, fullScale].
type EmbdAnalog struct {
	pin       embdAnalog
	fullScale uint32
	vref      float64
}

// OpenEmbdAnalog opens analog channel n
func OpenEmbdAnalog(n int, fullScale uint32, vref float64) (*EmbdAnalog, error) {
	pin, err := embd.NewAnalogPin(n)
	if err != nil {
		return nil, errors.Wrap(err, "analog pin issue")
	}
	return &EmbdAnalog{pin: pin, fullScale: fullScale, vref: vref}, nil
}

func (a *EmbdAnalog) Read() (uint32, error) {
	v, err := a.pin.Read()
	if err != nil {
		return 0, err
	}
	return clamp(v, a.fullScale), nil
}

func (a *EmbdAnalog) FullScale() uint32 { return a.fullScale }
func (a *EmbdAnalog) VRef() float64     { return a.vref }
func (a *EmbdAnalog) Close() error      { return a.pin.Close() }

func clamp(v int, fullScale uint32) uint32 {
	if v < 0 {
		return 0
	}
	if uint64(v) > uint64(fullScale) {
		return fullScale
	}
	return uint32(v)
}

// Button is a recalibration input delivering rising edges
type Button interface {
	// Active reports whether the line currently reads high
	Active() bool
	// Listen calls onEdge for every rising edge until ctx is done
	Listen(ctx context.Context, onEdge func() bool) error
}

// EmbdButton feeds the rising edges of an input pin to onEdge from the embd interrupt watcher
type EmbdButton struct {
	pin embdDigital
}

// OpenEmbdButton configures pin n as an input
func OpenEmbdButton(n int) (*EmbdButton, error) {
	pin, err := embd.NewDigitalPin(n)
	if err != nil {
		return nil, errors.Wrap(err, "digital pin issue")
	}
	if err := pin.SetDirection(embd.In); err != nil {
		pin.Close()
		return nil, errors.Wrap(err, "pin direction issue")
	}
	return &EmbdButton{pin: pin}, nil
}

// Active reports whether the line currently reads high
func (b *EmbdButton) Active() bool {
	v, err := b.pin.Read()
	return err == nil && v == embd.High
}

// Listen calls onEdge for every rising edge until ctx is done
func (b *EmbdButton) Listen(ctx context.Context, onEdge func() bool) error {
	if err := b.pin.Watch(embd.EdgeRising, func(embd.DigitalPin) { onEdge() }); err != nil {
		return errors.Wrap(err, "pin watch issue")
	}
	<-ctx.Done()
	return b.pin.StopWatching()
}

func (b *EmbdButton) Close() error { return b.pin.Close() }
