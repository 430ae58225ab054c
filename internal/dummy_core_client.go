package internal

import (
	"context"
	"sync"

	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/go-ble/ble"
)

// DummyCoreClient is a ble.Client serving a fixed profile and a mutable characteristic value
type DummyCoreClient struct {
	testAddr     string
	services     []*ble.Service
	mutex        sync.Mutex
	readData     []byte
	readErr      error
	reads        int
	disconnected chan struct{}
	once         sync.Once
}

func NewDummyCoreClient(addr string, charUUIDs []string) *DummyCoreClient {
	return &DummyCoreClient{
		testAddr:     addr,
		services:     GetTestServices(charUUIDs),
		disconnected: make(chan struct{}),
	}
}

// SetReadData sets the value returned by ReadCharacteristic
func (c *DummyCoreClient) SetReadData(b []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.readData = append([]byte{}, b...)
}

func (c *DummyCoreClient) SetReadErr(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.readErr = err
}

func (c *DummyCoreClient) Reads() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.reads
}

// Drop simulates the peer going away
func (c *DummyCoreClient) Drop() {
	c.once.Do(func() { close(c.disconnected) })
}

func (c *DummyCoreClient) ReadCharacteristic(char *ble.Characteristic) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reads++
	if c.readErr != nil {
		return nil, c.readErr
	}
	return append([]byte{}, c.readData...), nil
}
func (c *DummyCoreClient) WriteCharacteristic(char *ble.Characteristic, value []byte, noRsp bool) error {
	return nil
}
func (c *DummyCoreClient) Addr() ble.Addr        { return ble.NewAddr(c.testAddr) }
func (c *DummyCoreClient) Name() string          { return util.TransmitterName }
func (c *DummyCoreClient) Profile() *ble.Profile { return &ble.Profile{Services: c.services} }
func (c *DummyCoreClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	return c.Profile(), nil
}
func (c *DummyCoreClient) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	return c.services, nil
}
func (c *DummyCoreClient) DiscoverIncludedServices(filter []ble.UUID, s *ble.Service) ([]*ble.Service, error) {
	return nil, nil
}
func (c *DummyCoreClient) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	return s.Characteristics, nil
}
func (c *DummyCoreClient) DiscoverDescriptors(filter []ble.UUID, char *ble.Characteristic) ([]*ble.Descriptor, error) {
	return nil, nil
}
func (c *DummyCoreClient) ReadLongCharacteristic(char *ble.Characteristic) ([]byte, error) {
	return c.ReadCharacteristic(char)
}
func (c *DummyCoreClient) ReadDescriptor(d *ble.Descriptor) ([]byte, error)  { return nil, nil }
func (c *DummyCoreClient) WriteDescriptor(d *ble.Descriptor, v []byte) error { return nil }
func (c *DummyCoreClient) ReadRSSI() int                                     { return -60 }
func (c *DummyCoreClient) ExchangeMTU(rxMTU int) (txMTU int, err error)      { return util.MTU, nil }
func (c *DummyCoreClient) Subscribe(char *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	return nil
}
func (c *DummyCoreClient) Unsubscribe(char *ble.Characteristic, ind bool) error { return nil }
func (c *DummyCoreClient) ClearSubscriptions() error                            { return nil }
func (c *DummyCoreClient) CancelConnection() error {
	c.Drop()
	return nil
}
func (c *DummyCoreClient) Disconnected() <-chan struct{} { return c.disconnected }
func (c *DummyCoreClient) Conn() ble.Conn {
	return NewMockConn(c.testAddr)
}

// MockConn is the connection a dummy central opens against a peripheral
type MockConn struct {
	ctx          context.Context
	remote       string
	disconnected chan struct{}
	once         sync.Once
}

func NewMockConn(remote string) *MockConn {
	return &MockConn{ctx: context.Background(), remote: remote, disconnected: make(chan struct{})}
}

func (c *MockConn) Context() context.Context          { return c.ctx }
func (c *MockConn) SetContext(ctx context.Context)    { c.ctx = ctx }
func (c *MockConn) LocalAddr() ble.Addr               { return ble.NewAddr("00:00:00:00:00:00") }
func (c *MockConn) RemoteAddr() ble.Addr              { return ble.NewAddr(c.remote) }
func (c *MockConn) RxMTU() int                        { return util.MTU }
func (c *MockConn) SetRxMTU(mtu int)                  {}
func (c *MockConn) TxMTU() int                        { return util.MTU }
func (c *MockConn) SetTxMTU(mtu int)                  {}
func (c *MockConn) Disconnected() <-chan struct{}     { return c.disconnected }
func (c *MockConn) Read(p []byte) (n int, err error)  { return 0, nil }
func (c *MockConn) Write(p []byte) (n int, err error) { return len(p), nil }
func (c *MockConn) Close() error {
	c.Drop()
	return nil
}

// Drop simulates the central going away
func (c *MockConn) Drop() {
	c.once.Do(func() { close(c.disconnected) })
}
