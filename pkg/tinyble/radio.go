package tinyble

import (
	"sync"
	"time"

	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"
)

type scanned struct {
	name     string
	addr     string
	rssi     int
	services []string
}

func (s scanned) Name() string       { return s.name }
func (s scanned) Addr() string       { return s.addr }
func (s scanned) RSSI() int          { return s.rssi }
func (s scanned) Services() []string { return s.services }

type reader interface {
	Read([]byte) (int, error)
}

type writer interface {
	Write([]byte) (int, error)
}

type remote interface {
	Characteristic(service bluetooth.UUID, char bluetooth.UUID) (reader, error)
	Disconnect() error
}

// radio is the slice of the adapter both roles use
type radio interface {
	Enable() error
	OnConnect(func(addr string, connected bool))
	AddService(service bluetooth.UUID, char bluetooth.UUID) (writer, error)
	Advertise(name string, service bluetooth.UUID, interval time.Duration) error
	StopAdvertising() error
	// Scan blocks until StopScan
	Scan(service bluetooth.UUID, fn func(scanned)) error
	StopScan() error
	Connect(addr string) (remote, error)
}

type adapterRadio struct {
	adapter *bluetooth.Adapter
	mutex   sync.Mutex
	seen    map[string]bluetooth.Address
	adv     *bluetooth.Advertisement
}

func newAdapterRadio() *adapterRadio {
	return &adapterRadio{adapter: bluetooth.DefaultAdapter, seen: map[string]bluetooth.Address{}}
}

func (r *adapterRadio) Enable() error {
	return r.adapter.Enable()
}

func (r *adapterRadio) OnConnect(fn func(addr string, connected bool)) {
	r.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		fn(device.Address.String(), connected)
	})
}

func (r *adapterRadio) AddService(service bluetooth.UUID, char bluetooth.UUID) (writer, error) {
	handle := &bluetooth.Characteristic{}
	err := r.adapter.AddService(&bluetooth.Service{
		UUID: service,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: handle,
				UUID:   char,
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (r *adapterRadio) Advertise(name string, service bluetooth.UUID, interval time.Duration) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	adv := r.adapter.DefaultAdvertisement()
	err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{service},
		Interval:     bluetooth.NewDuration(interval),
	})
	if err != nil {
		return errors.Wrap(err, "advertisement Configure issue")
	}
	r.adv = adv
	return adv.Start()
}

func (r *adapterRadio) StopAdvertising() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.adv == nil {
		return nil
	}
	return r.adv.Stop()
}

func (r *adapterRadio) Scan(service bluetooth.UUID, fn func(scanned)) error {
	return r.adapter.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
		addr := res.Address.String()
		r.mutex.Lock()
		r.seen[addr] = res.Address
		r.mutex.Unlock()
		s := scanned{name: res.LocalName(), addr: addr, rssi: int(res.RSSI)}
		if res.HasServiceUUID(service) {
			s.services = []string{service.String()}
		}
		fn(s)
	})
}

func (r *adapterRadio) StopScan() error {
	return r.adapter.StopScan()
}

func (r *adapterRadio) Connect(addr string) (remote, error) {
	r.mutex.Lock()
	address, ok := r.seen[addr]
	r.mutex.Unlock()
	if !ok {
		return nil, errors.Wrapf(link.ErrNoDevice, "%s was not seen while scanning", addr)
	}
	device, err := r.adapter.Connect(address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	return &deviceRemote{device: device}, nil
}

type deviceRemote struct {
	device bluetooth.Device
}

func (d *deviceRemote) Characteristic(service bluetooth.UUID, char bluetooth.UUID) (reader, error) {
	services, err := d.device.DiscoverServices([]bluetooth.UUID{service})
	if err != nil {
		return nil, errors.Wrap(err, "DiscoverServices issue")
	}
	if len(services) == 0 {
		return nil, errors.Wrapf(link.ErrAttributeNotFound, "service %s", service.String())
	}
	svc := services[0]
	chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{char})
	if err != nil {
		return nil, errors.Wrap(err, "DiscoverCharacteristics issue")
	}
	if len(chars) == 0 {
		return nil, errors.Wrapf(link.ErrAttributeNotFound, "characteristic %s", char.String())
	}
	return &chars[0], nil
}

func (d *deviceRemote) Disconnect() error {
	return d.device.Disconnect()
}
