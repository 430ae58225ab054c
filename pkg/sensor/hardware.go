package sensor

// DigitalOutput drives the excitation pin that powers the transducer
type DigitalOutput interface {
	High() error
	Low() error
}

// AnalogInput is one converter channel. Read returns a raw count in [0, FullScale()].
type AnalogInput interface {
	Read() (uint32, error)
	FullScale() uint32
	VRef() float64
}

// Volts converts a raw converter count to volts
func Volts(raw uint32, fullScale uint32, vref float64) float64 {
	if fullScale == 0 {
		return 0
	}
	return float64(raw) * vref / float64(fullScale)
}
