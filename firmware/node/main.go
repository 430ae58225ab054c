//go:build tinygo

//go:generate tinygo flash -target=xiao-ble

// Command node is the transmitter built for a BLE capable board: it samples the
// power gated vane and notifies frames on the environmental sensing service.
package main

import (
	"machine"
	"sync/atomic"
	"time"

	"github.com/Krajiyah/vanelink/pkg/protocol"
	"github.com/Krajiyah/vanelink/pkg/smoothing"
	"github.com/Krajiyah/vanelink/pkg/util"
	"tinygo.org/x/bluetooth"
)

var (
	adapter = bluetooth.DefaultAdapter

	adcMeasurement machine.ADC
	adcReference   machine.ADC

	vane      bluetooth.Characteristic
	connected atomic.Bool

	// Recalibration requests from the button interrupt
	recalibrate atomic.Bool
	lastEdge    atomic.Int64
)

func volts(raw uint16) float64 {
	return float64(raw) * ADC_REFERENCE_MV / 1000 / ADC_FULL_SCALE
}

// measure is one pin-on / settle / sample / pin-off unit
func measure(adc machine.ADC) float64 {
	PIN_EXCITATION.High()
	time.Sleep(SETTLE_TIME)
	raw := adc.Get()
	PIN_EXCITATION.Low()
	return volts(raw)
}

func onButton(machine.Pin) {
	now := time.Now().UnixNano()
	last := lastEdge.Load()
	if last != 0 && time.Duration(now-last) <= DEBOUNCE_WINDOW {
		return
	}
	if !PIN_BUTTON.Get() {
		return
	}
	lastEdge.Store(now)
	recalibrate.Store(true)
}

func must(action string, err error) {
	if err != nil {
		for {
			println("failed to", action, err.Error())
			time.Sleep(time.Second)
		}
	}
}

func main() {
	PIN_EXCITATION.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_EXCITATION.Low()
	PIN_BUTTON.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})

	machine.InitADC()
	adcMeasurement = machine.ADC{Pin: PIN_MEASUREMENT}
	adcReference = machine.ADC{Pin: PIN_REFERENCE}
	adcMeasurement.Configure(machine.ADCConfig{})
	adcReference.Configure(machine.ADCConfig{})

	must("set button interrupt", PIN_BUTTON.SetInterrupt(machine.PinRising, onButton))

	service := bluetooth.New16BitUUID(0x181A)
	adapter.SetConnectHandler(func(device bluetooth.Device, c bool) {
		connected.Store(c)
	})
	must("enable adapter", adapter.Enable())
	must("add service", adapter.AddService(&bluetooth.Service{
		UUID: service,
		Characteristics: []bluetooth.CharacteristicConfig{{
			Handle: &vane,
			UUID:   bluetooth.New16BitUUID(0x2A6E),
			Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
		}},
	}))
	adv := adapter.DefaultAdvertisement()
	must("configure advertisement", adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    util.TransmitterName,
		ServiceUUIDs: []bluetooth.UUID{service},
		Interval:     bluetooth.NewDuration(util.AdvertisingInterval),
	}))
	must("start advertising", adv.Start())

	buffer := smoothing.NewBuffer(util.SmoothingWindow)
	composer, err := protocol.NewComposer(protocol.Tagged, protocol.DefaultSlots)
	must("build composer", err)
	budget := util.CycleBudget(util.SendLatency, util.SmoothingWindow)

	baseline := measure(adcMeasurement)
	var reference float64
	for {
		start := time.Now()
		// one core and one ADC: the pass runs between frames on this cycle's budget
		if recalibrate.Swap(false) {
			baseline = measure(adcMeasurement)
			println("recalibrated", int(baseline*1000), "mV")
		}
		buffer.Push(measure(adcMeasurement))
		if composer.NeedsReference() {
			reference = measure(adcReference)
		}
		frame := composer.Compose(protocol.Snapshot{Baseline: baseline, Reference: reference, Reading: buffer.Mean()})
		if connected.Load() {
			if _, err := vane.Write(frame); err != nil {
				println("notify failed:", err.Error())
			}
		}
		time.Sleep(util.Remaining(budget, time.Since(start)))
	}
}
