package protocol

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const precision = 6

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func parseFloat(field string) (float64, error) {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "non numeric field %q", field)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrMalformed, "non finite field %q", field)
	}
	return v, nil
}

func clean(data []byte) string {
	return strings.TrimRight(string(data), "\x00\r\n\t ")
}

// Encode serializes a tagged message
func Encode(m Message) []byte {
	return []byte(string(rune(m.Tag)) + formatFloat(m.A) + "," + formatFloat(m.B))
}

// Decode parses a tagged frame
func Decode(data []byte) (Message, error) {
	s := clean(data)
	if len(s) == 0 {
		return Message{}, errors.Wrap(ErrMalformed, "empty payload")
	}
	tag := Tag(s[0])
	if tag != BaselineTag && tag != ReferenceTag {
		return Message{}, errors.Wrapf(ErrMalformed, "unknown tag %q", s[0])
	}
	fields := strings.Split(s[1:], ",")
	if len(fields) != 2 {
		return Message{}, errors.Wrapf(ErrMalformed, "expected 2 fields, got %d in %q", len(fields), s)
	}
	a, err := parseFloat(fields[0])
	if err != nil {
		return Message{}, err
	}
	b, err := parseFloat(fields[1])
	if err != nil {
		return Message{}, err
	}
	return Message{Tag: tag, A: a, B: b}, nil
}

var legacyKeys = []string{"Baseline", "Vref", "Reading"}

// EncodeLegacy serializes a snapshot in the untagged three field dialect
func EncodeLegacy(s Snapshot) []byte {
	values := []float64{s.Baseline, s.Reference, s.Reading}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = legacyKeys[i] + "=" + formatFloat(v)
	}
	return []byte(strings.Join(parts, ","))
}

// DecodeLegacy parses an untagged three field frame
func DecodeLegacy(data []byte) (Frame, error) {
	s := clean(data)
	if len(s) == 0 {
		return Frame{}, errors.Wrap(ErrMalformed, "empty payload")
	}
	pairs := strings.Split(s, ",")
	if len(pairs) != len(legacyKeys) {
		return Frame{}, errors.Wrapf(ErrMalformed, "expected %d fields, got %d in %q", len(legacyKeys), len(pairs), s)
	}
	var values [3]float64
	for i, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] != legacyKeys[i] {
			return Frame{}, errors.Wrapf(ErrMalformed, "expected %s= in %q", legacyKeys[i], pair)
		}
		v, err := parseFloat(kv[1])
		if err != nil {
			return Frame{}, err
		}
		values[i] = v
	}
	return Frame{
		HasBaseline: true, Baseline: values[0],
		HasReference: true, Reference: values[1],
		Reading: values[2],
	}, nil
}

// IsMalformed reports whether err is a decode failure
func IsMalformed(err error) bool {
	return err != nil && errors.Cause(err) == ErrMalformed
}
