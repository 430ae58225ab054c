package protocol

import (
	"math"
	"math/rand"
	"testing"

	"gotest.tools/assert"
)

const tolerance = 1e-6

func near(a, b float64) bool { return math.Abs(a-b) <= tolerance }

func TestEncodeBaselineScenario(t *testing.T) {
	reading := (1.00 + 1.02 + 0.98 + 1.01) / 4
	data := Encode(NewBaseline(0.50, reading))
	assert.Equal(t, string(data), "B0.500000,1.002500")

	m, err := Decode(data)
	assert.NilError(t, err)
	assert.Equal(t, m.Tag, BaselineTag)
	assert.Check(t, near(m.A, 0.5))
	assert.Check(t, near(m.B, 1.0025))
}

func TestEncodeReference(t *testing.T) {
	assert.Equal(t, string(Encode(NewReference(3.3, -0.0000004))), "V3.300000,-0.000000")
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		tag := BaselineTag
		if i%2 == 1 {
			tag = ReferenceTag
		}
		a := (r.Float64() - 0.5) * 20
		b := float64(float32(r.Float64() * 3.3))
		m, err := Decode(Encode(Message{Tag: tag, A: a, B: b}))
		assert.NilError(t, err)
		assert.Equal(t, m.Tag, tag)
		assert.Check(t, near(m.A, a), "a=%v got %v", a, m.A)
		assert.Check(t, near(m.B, b), "b=%v got %v", b, m.B)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"B",
		"B0.5",
		"V1.000000",
		"B0.5,",
		"B,0.5",
		"Bx,1.0",
		"B1.0,y",
		"X1.0,2.0",
		"B1.0,2.0,3.0",
		"BNaN,1.0",
		"B1.0,Inf",
		"Baseline=1.0,Vref=2.0,Reading=3.0",
		"\x00\x00",
	} {
		_, err := Decode([]byte(input))
		assert.Check(t, err != nil, "input %q", input)
		assert.Check(t, IsMalformed(err), "input %q: %v", input, err)
	}
}

func TestDecodeTrimsPadding(t *testing.T) {
	m, err := Decode([]byte("V2.000000,1.000000\x00\x00"))
	assert.NilError(t, err)
	assert.Equal(t, m.Tag, ReferenceTag)
	assert.Equal(t, m.A, 2.0)
}

func TestLegacyRoundTrip(t *testing.T) {
	data := EncodeLegacy(Snapshot{Baseline: 0.5, Reference: 3.3, Reading: 1.0025})
	assert.Equal(t, string(data), "Baseline=0.500000,Vref=3.300000,Reading=1.002500")
	f, err := DecodeLegacy(data)
	assert.NilError(t, err)
	assert.Check(t, f.HasBaseline && f.HasReference)
	assert.Check(t, near(f.Baseline, 0.5))
	assert.Check(t, near(f.Reference, 3.3))
	assert.Check(t, near(f.Reading, 1.0025))
}

func TestLegacyMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"Baseline=1.0,Vref=2.0",
		"Baseline=1.0,Vref=2.0,Reading=",
		"Baseline=1.0;Vref=2.0;Reading=3.0",
		"Vref=2.0,Baseline=1.0,Reading=3.0",
		"Baseline=a,Vref=2.0,Reading=3.0",
		"B0.5,1.0",
	} {
		_, err := DecodeLegacy([]byte(input))
		assert.Check(t, IsMalformed(err), "input %q", input)
	}
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("Legacy")
	assert.NilError(t, err)
	assert.Equal(t, d, Legacy)
	d, err = ParseDialect("")
	assert.NilError(t, err)
	assert.Equal(t, d, Tagged)
	_, err = ParseDialect("binary")
	assert.ErrorContains(t, err, "binary")
}
