package internal

import (
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/go-ble/ble"
)

type DummyAdv struct {
	Name       string
	Address    ble.Addr
	Rssi       int
	NonService bool
}

type DummyAddr struct {
	Address string
}

func (addr DummyAddr) String() string { return addr.Address }

func NewDummyAdv(name string, addr string, rssi int) DummyAdv {
	return DummyAdv{Name: name, Address: DummyAddr{addr}, Rssi: rssi}
}

func (a DummyAdv) LocalName() string              { return a.Name }
func (a DummyAdv) ManufacturerData() []byte       { return nil }
func (a DummyAdv) ServiceData() []ble.ServiceData { return nil }
func (a DummyAdv) Services() []ble.UUID {
	if a.NonService {
		return nil
	}
	return GetTestServiceUUIDs()
}
func (a DummyAdv) OverflowService() []ble.UUID  { return nil }
func (a DummyAdv) TxPowerLevel() int            { return 0 }
func (a DummyAdv) Connectable() bool            { return true }
func (a DummyAdv) SolicitedService() []ble.UUID { return nil }
func (a DummyAdv) RSSI() int                    { return a.Rssi }
func (a DummyAdv) Addr() ble.Addr               { return a.Address }

func GetTestServiceUUIDs() []ble.UUID {
	return []ble.UUID{ble.MustParse(util.MainServiceUUID)}
}

func GetTestServices(charUUIDs []string) []*ble.Service {
	s := ble.NewService(ble.MustParse(util.MainServiceUUID))
	for _, uuid := range charUUIDs {
		s.NewCharacteristic(ble.MustParse(uuid))
	}
	return []*ble.Service{s}
}
