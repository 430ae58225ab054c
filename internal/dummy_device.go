package internal

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
)

// DummyDevice is a ble.Device replaying advertisements and recording GATT registrations
type DummyDevice struct {
	mutex    sync.Mutex
	advs     []ble.Advertisement
	services []*ble.Service
	client   ble.Client
	name     string
	stopped  bool
}

func NewDummyDevice(client ble.Client, advs ...ble.Advertisement) *DummyDevice {
	return &DummyDevice{advs: advs, client: client}
}

func (d *DummyDevice) Services() []*ble.Service {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.services
}

func (d *DummyDevice) AdvertisedName() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.name
}

func (d *DummyDevice) Stopped() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stopped
}

func (d *DummyDevice) AddService(svc *ble.Service) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.services = append(d.services, svc)
	return nil
}
func (d *DummyDevice) RemoveAllServices() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.services = nil
	return nil
}
func (d *DummyDevice) SetServices(svcs []*ble.Service) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.services = svcs
	return nil
}
func (d *DummyDevice) Stop() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stopped = true
	return nil
}
func (d *DummyDevice) Advertise(ctx context.Context, adv ble.Advertisement) error {
	<-ctx.Done()
	return ctx.Err()
}
func (d *DummyDevice) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	d.mutex.Lock()
	d.name = name
	d.mutex.Unlock()
	<-ctx.Done()
	return ctx.Err()
}
func (d *DummyDevice) AdvertiseMfgData(ctx context.Context, id uint16, b []byte) error { return nil }
func (d *DummyDevice) AdvertiseServiceData16(ctx context.Context, id uint16, b []byte) error {
	return nil
}
func (d *DummyDevice) AdvertiseIBeaconData(ctx context.Context, b []byte) error { return nil }
func (d *DummyDevice) AdvertiseIBeacon(ctx context.Context, u ble.UUID, major, minor uint16, pwr int8) error {
	return nil
}
func (d *DummyDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) { return d.client, nil }

func (d *DummyDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	for _, a := range d.advs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h(a)
	}
	<-ctx.Done()
	return ctx.Err()
}
