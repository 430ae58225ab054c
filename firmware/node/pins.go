//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Sensor wiring
	PIN_EXCITATION  = machine.D2
	PIN_MEASUREMENT = machine.A0
	PIN_REFERENCE   = machine.A1
	PIN_BUTTON      = machine.D3

	// ADC configuration, Get() always scales to 16 bits
	ADC_REFERENCE_MV = 3300
	ADC_FULL_SCALE   = 65535

	// Excitation rise time before sampling
	SETTLE_TIME = time.Millisecond
	// Minimum spacing between two accepted button edges
	DEBOUNCE_WINDOW = time.Second
)
