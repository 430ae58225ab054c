package models

import "fmt"

// Channel identifies one of the two analog inputs of the vane transducer
type Channel int

const (
	// Measurement is the vane output itself
	Measurement Channel = iota
	// Reference is the supply reference the vane output is compared against
	Reference
)

func (c Channel) String() string {
	switch c {
	case Measurement:
		return "measurement"
	case Reference:
		return "reference"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Reading is a single calibrated sample of one channel, in volts
type Reading struct {
	Value   float64
	Channel Channel
}
