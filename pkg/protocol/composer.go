package protocol

import "github.com/pkg/errors"

// DefaultSlots is the length of the tagged round robin: one baseline frame, then two reference frames
const DefaultSlots = 3

// Selector walks the message slots. Slot 0 selects a baseline message, every other slot a reference message.
type Selector struct {
	slots int
	next  int
}

// NewSelector returns a selector over slots slots, at least two
func NewSelector(slots int) *Selector {
	if slots < 2 {
		slots = DefaultSlots
	}
	return &Selector{slots: slots}
}

// Peek returns the tag of the next slot without advancing
func (s *Selector) Peek() Tag {
	if s.next == 0 {
		return BaselineTag
	}
	return ReferenceTag
}

// Next returns the tag of the current slot and advances
func (s *Selector) Next() Tag {
	tag := s.Peek()
	s.next = (s.next + 1) % s.slots
	return tag
}

// Composer builds the next outgoing frame of the transmitter
type Composer interface {
	// NeedsReference reports whether the next frame carries the reference channel
	NeedsReference() bool
	Compose(Snapshot) []byte
}

type taggedComposer struct {
	selector *Selector
}

func (c *taggedComposer) NeedsReference() bool { return c.selector.Peek() == ReferenceTag }

func (c *taggedComposer) Compose(s Snapshot) []byte {
	if c.selector.Next() == BaselineTag {
		return Encode(NewBaseline(s.Baseline, s.Reading))
	}
	return Encode(NewReference(s.Reference, s.Reading))
}

type legacyComposer struct{}

func (legacyComposer) NeedsReference() bool      { return true }
func (legacyComposer) Compose(s Snapshot) []byte { return EncodeLegacy(s) }

// NewComposer returns the frame builder of dialect
func NewComposer(d Dialect, slots int) (Composer, error) {
	switch d {
	case Tagged:
		return &taggedComposer{selector: NewSelector(slots)}, nil
	case Legacy:
		return legacyComposer{}, nil
	}
	return nil, errors.Errorf("unknown protocol dialect %q", d)
}

// Parser decodes one received frame
type Parser func([]byte) (Frame, error)

func parseTagged(data []byte) (Frame, error) {
	m, err := Decode(data)
	if err != nil {
		return Frame{}, err
	}
	return m.Frame(), nil
}

// NewParser returns the frame decoder of dialect
func NewParser(d Dialect) (Parser, error) {
	switch d {
	case Tagged:
		return parseTagged, nil
	case Legacy:
		return DecodeLegacy, nil
	}
	return nil, errors.Errorf("unknown protocol dialect %q", d)
}
