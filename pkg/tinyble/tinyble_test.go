package tinyble

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"gotest.tools/assert"
	"tinygo.org/x/bluetooth"
)

const testAddr = "AA:BB:CC:DD:EE:FF"

type fakeHandle struct {
	mutex  sync.Mutex
	frames [][]byte
	err    error
}

func (h *fakeHandle) Write(b []byte) (int, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.err != nil {
		return 0, h.err
	}
	h.frames = append(h.frames, append([]byte{}, b...))
	return len(b), nil
}

type fakeReader struct {
	data []byte
	err  error
}

func (r *fakeReader) Read(b []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	return copy(b, r.data), nil
}

type fakeRemote struct {
	mutex        sync.Mutex
	char         *fakeReader
	disconnected bool
}

func (r *fakeRemote) Characteristic(service bluetooth.UUID, char bluetooth.UUID) (reader, error) {
	if r.char == nil {
		return nil, link.ErrAttributeNotFound
	}
	return r.char, nil
}

func (r *fakeRemote) Disconnect() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.disconnected = true
	return nil
}

func (r *fakeRemote) isDisconnected() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.disconnected
}

type fakeRadio struct {
	mutex       sync.Mutex
	handle      *fakeHandle
	onConnect   func(string, bool)
	advertising chan string
	stopped     int
	results     []scanned
	stopScan    chan struct{}
	remote      *fakeRemote
	connectWait time.Duration
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		handle:      &fakeHandle{},
		advertising: make(chan string, 4),
		stopScan:    make(chan struct{}, 1),
		remote:      &fakeRemote{char: &fakeReader{}},
	}
}

func (r *fakeRadio) Enable() error                                  { return nil }
func (r *fakeRadio) OnConnect(fn func(addr string, connected bool)) { r.onConnect = fn }
func (r *fakeRadio) AddService(service bluetooth.UUID, char bluetooth.UUID) (writer, error) {
	return r.handle, nil
}
func (r *fakeRadio) Advertise(name string, service bluetooth.UUID, interval time.Duration) error {
	r.advertising <- name
	return nil
}
func (r *fakeRadio) StopAdvertising() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.stopped++
	return nil
}
func (r *fakeRadio) Scan(service bluetooth.UUID, fn func(scanned)) error {
	for _, s := range r.results {
		fn(s)
	}
	<-r.stopScan
	return nil
}
func (r *fakeRadio) StopScan() error {
	select {
	case r.stopScan <- struct{}{}:
	default:
	}
	return nil
}
func (r *fakeRadio) Connect(addr string) (remote, error) {
	time.Sleep(r.connectWait)
	return r.remote, nil
}

func TestConfigUUIDs(t *testing.T) {
	svc, char, err := DefaultConfig(util.TransmitterName).uuids()
	assert.NilError(t, err)
	assert.Check(t, util.UuidEqualStr(svc.String(), util.MainServiceUUID))
	assert.Check(t, util.UuidEqualStr(char.String(), util.VaneCharUUID))

	_, _, err = Config{Service: "not-a-uuid", Characteristic: util.VaneCharUUID}.uuids()
	assert.ErrorContains(t, err, "service uuid issue")
}

func TestPeripheralSession(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := newFakeRadio()
	p, err := newPeripheral(DefaultConfig(util.TransmitterName), r, log)
	assert.NilError(t, err)

	ch := make(chan link.Session, 1)
	go func() {
		s, err := p.Advertise(context.Background())
		assert.Check(t, err == nil)
		ch <- s
	}()
	assert.Equal(t, <-r.advertising, util.TransmitterName)
	r.onConnect(testAddr, true)
	s := <-ch
	assert.Equal(t, s.Peer(), testAddr)
	assert.Check(t, s.Connected())

	assert.NilError(t, s.Notify([]byte("B0.500000,1.002500")))
	assert.Equal(t, string(r.handle.frames[0]), "B0.500000,1.002500")

	r.onConnect("11:22:33:44:55:66", false)
	assert.Check(t, s.Connected())
	r.onConnect(testAddr, false)
	<-s.Done()
	assert.Check(t, link.IsNotConnected(s.Notify([]byte("V1,3.3"))))
	assert.Check(t, r.stopped > 0)
}

func TestPeripheralNotifyFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := newFakeRadio()
	p, err := newPeripheral(DefaultConfig(util.TransmitterName), r, log)
	assert.NilError(t, err)
	r.connectLater(testAddr)
	s, err := p.Advertise(context.Background())
	assert.NilError(t, err)

	r.handle.err = errors.New("no subscribers")
	err = s.Notify([]byte("B0.5,1"))
	assert.ErrorContains(t, err, "characteristic Write issue")
	assert.Check(t, !link.IsNotConnected(err))
}

func (r *fakeRadio) connectLater(addr string) {
	go func() {
		<-r.advertising
		r.onConnect(addr, true)
	}()
}

func TestAdvertiseCancelled(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := newFakeRadio()
	p, err := newPeripheral(DefaultConfig(util.TransmitterName), r, log)
	assert.NilError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Advertise(ctx)
	assert.Equal(t, err, context.DeadlineExceeded)
}

func newTestCentral(t *testing.T, r *fakeRadio) *Central {
	log, _ := test.NewNullLogger()
	c, err := newCentral(DefaultConfig(util.ReceiverName), r, log)
	assert.NilError(t, err)
	return c
}

func TestCentralScan(t *testing.T) {
	r := newFakeRadio()
	r.results = []scanned{
		{name: "OTHER", addr: "11:22:33:44:55:66", services: []string{"0000181a-0000-1000-8000-00805f9b34fb"}},
		{name: util.TransmitterName, addr: testAddr, rssi: -50, services: []string{"0000181a-0000-1000-8000-00805f9b34fb"}},
	}
	c := newTestCentral(t, r)
	p, err := c.Scan(context.Background(), time.Second, link.MatchNameAndService(util.TransmitterName, util.MainServiceUUID))
	assert.NilError(t, err)
	assert.Equal(t, p.Addr(), testAddr)
	assert.Equal(t, p.RSSI(), -50)

	r.results = r.results[:1]
	_, err = c.Scan(context.Background(), 20*time.Millisecond, link.MatchNameAndService(util.TransmitterName, util.MainServiceUUID))
	assert.Equal(t, err, link.ErrNoDevice)
}

func TestCentralLink(t *testing.T) {
	r := newFakeRadio()
	r.remote.char.data = []byte("V1.000000,3.300000")
	c := newTestCentral(t, r)
	l, err := c.Connect(context.Background(), scanned{name: util.TransmitterName, addr: testAddr}, time.Second)
	assert.NilError(t, err)

	_, err = l.Read(context.Background(), time.Second)
	assert.Check(t, errors.Cause(err) == link.ErrAttributeNotFound)

	assert.NilError(t, l.Discover(context.Background(), time.Second))
	b, err := l.Read(context.Background(), time.Second)
	assert.NilError(t, err)
	assert.Equal(t, string(b), "V1.000000,3.300000")

	r.onConnect(testAddr, false)
	assert.Check(t, !l.Connected())
	_, err = l.Read(context.Background(), time.Second)
	assert.Check(t, link.IsNotConnected(err))

	assert.NilError(t, l.Disconnect())
	assert.Check(t, r.remote.disconnected)
}

func TestCentralDiscoverMissing(t *testing.T) {
	r := newFakeRadio()
	r.remote.char = nil
	c := newTestCentral(t, r)
	l, err := c.Connect(context.Background(), scanned{addr: testAddr}, time.Second)
	assert.NilError(t, err)
	err = l.Discover(context.Background(), time.Second)
	assert.Check(t, errors.Cause(err) == link.ErrAttributeNotFound)
	assert.NilError(t, c.Close())
	assert.Check(t, r.remote.disconnected)
}

func TestCentralDropsLateConnection(t *testing.T) {
	r := newFakeRadio()
	r.connectWait = 50 * time.Millisecond
	c := newTestCentral(t, r)
	_, err := c.Connect(context.Background(), scanned{addr: testAddr}, 10*time.Millisecond)
	assert.Check(t, util.IsTimeout(err))
	assert.Check(t, !r.remote.isDisconnected())

	deadline := time.Now().Add(time.Second)
	for !r.remote.isDisconnected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Check(t, r.remote.isDisconnected())
	assert.NilError(t, c.Close())
}
