// Package protocol encodes and decodes the text frames exchanged over the vane characteristic.
//
// The tagged dialect carries one of two messages per frame:
//
//	B<baseline>,<reading>
//	V<reference>,<reading>
//
// The legacy dialect carries all three values in every frame:
//
//	Baseline=<baseline>,Vref=<reference>,Reading=<reading>
//
// Floats always have six fractional digits.
package protocol

import (
	"strings"

	"github.com/pkg/errors"
)

// Tag is the leading byte of a tagged frame
type Tag byte

const (
	// BaselineTag marks a frame carrying (baseline, reading)
	BaselineTag Tag = 'B'
	// ReferenceTag marks a frame carrying (reference, reading)
	ReferenceTag Tag = 'V'
)

func (t Tag) String() string { return string(rune(t)) }

// ErrMalformed is the cause of every decode failure
var ErrMalformed = errors.New("malformed frame")

// Dialect selects one of the two wire formats
type Dialect string

const (
	// Tagged is the two field format with a leading tag byte
	Tagged Dialect = "tagged"
	// Legacy is the untagged three field format of older nodes
	Legacy Dialect = "legacy"
)

// ParseDialect validates a configured dialect name
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case Tagged, "":
		return Tagged, nil
	case Legacy:
		return Legacy, nil
	}
	return "", errors.Errorf("unknown protocol dialect %q", s)
}

// Message is a decoded tagged frame
type Message struct {
	Tag Tag
	A   float64
	B   float64
}

// NewBaseline builds a baseline message
func NewBaseline(baseline float64, reading float64) Message {
	return Message{Tag: BaselineTag, A: baseline, B: reading}
}

// NewReference builds a reference message
func NewReference(reference float64, reading float64) Message {
	return Message{Tag: ReferenceTag, A: reference, B: reading}
}

// Snapshot is what the transmitter knows at the moment it composes a frame
type Snapshot struct {
	Baseline  float64
	Reference float64
	Reading   float64
}

// Frame is a decoded frame of either dialect. A tagged frame sets only one of
// HasBaseline and HasReference; a legacy frame sets both.
type Frame struct {
	HasBaseline  bool
	Baseline     float64
	HasReference bool
	Reference    float64
	Reading      float64
}

// Frame converts a tagged message to the dialect independent form
func (m Message) Frame() Frame {
	if m.Tag == BaselineTag {
		return Frame{HasBaseline: true, Baseline: m.A, Reading: m.B}
	}
	return Frame{HasReference: true, Reference: m.A, Reading: m.B}
}
