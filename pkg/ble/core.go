package ble

import (
	"context"
	"time"

	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
	"github.com/pkg/errors"
)

// DeviceConfig holds the HCI device and GATT layout shared by both roles
type DeviceConfig struct {
	Name                string
	Service             string
	Characteristic      string
	AdvertisingInterval time.Duration
	ScanInterval        time.Duration
	ScanWindow          time.Duration
	DialTimeout         time.Duration
}

// DefaultDeviceConfig returns the layout of the vane link
func DefaultDeviceConfig(name string) DeviceConfig {
	return DeviceConfig{
		Name:                name,
		Service:             util.MainServiceUUID,
		Characteristic:      util.VaneCharUUID,
		AdvertisingInterval: util.AdvertisingInterval,
		ScanInterval:        util.ScanInterval,
		ScanWindow:          util.ScanWindow,
		DialTimeout:         util.ConnectTimeout,
	}
}

type coreMethods interface {
	SetDefaultDevice(DeviceConfig) error
	Stop() error
	AddService(*ble.Service) error
	AdvertiseNameAndServices(context.Context, string, ...ble.UUID) error
	Scan(context.Context, ble.AdvHandler, ble.AdvFilter) error
	Dial(context.Context, ble.Addr) (ble.Client, error)
}

type realCoreMethods struct{}

// hciUnits converts a duration to the 0.625 ms units used by the controller
func hciUnits(d time.Duration) uint16 {
	units := d / (625 * time.Microsecond)
	if units < 0x0020 {
		units = 0x0020
	}
	if units > 0x4000 {
		units = 0x4000
	}
	return uint16(units)
}

func (bc *realCoreMethods) newLinuxDevice(c DeviceConfig) (ble.Device, error) {
	opts := []ble.Option{
		ble.OptDialerTimeout(c.DialTimeout),
		ble.OptScanParams(cmd.LESetScanParameters{
			LEScanType:     0x01, // active
			LEScanInterval: hciUnits(c.ScanInterval),
			LEScanWindow:   hciUnits(c.ScanWindow),
		}),
		ble.OptAdvParams(cmd.LESetAdvertisingParameters{
			AdvertisingIntervalMin: hciUnits(c.AdvertisingInterval),
			AdvertisingIntervalMax: hciUnits(c.AdvertisingInterval),
			AdvertisingChannelMap:  0x07,
		}),
	}
	return linux.NewDevice(opts...)
}

func (bc *realCoreMethods) SetDefaultDevice(c DeviceConfig) error {
	device, err := bc.newLinuxDevice(c)
	if err != nil {
		return errors.Wrap(err, "newLinuxDevice issue")
	}
	ble.SetDefaultDevice(device)
	return nil
}

func (bc *realCoreMethods) Stop() error {
	return util.CatchErrs(ble.Stop)
}

func (bc *realCoreMethods) AddService(s *ble.Service) error {
	return util.CatchErrs(func() error {
		return ble.AddService(s)
	})
}

func (bc *realCoreMethods) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	return util.CatchErrs(func() error {
		return ble.AdvertiseNameAndServices(ctx, name, uuids...)
	})
}

func (bc *realCoreMethods) Scan(ctx context.Context, h ble.AdvHandler, f ble.AdvFilter) error {
	return util.CatchErrs(func() error {
		return ble.Scan(ctx, false, h, f)
	})
}

func (bc *realCoreMethods) Dial(ctx context.Context, addr ble.Addr) (ble.Client, error) {
	var client ble.Client
	err := util.CatchErrs(func() error {
		c, e := ble.Dial(ctx, addr)
		client = c
		return e
	})
	return client, err
}
