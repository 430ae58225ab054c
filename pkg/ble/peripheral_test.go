package ble

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/Krajiyah/vanelink/internal"
	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"gotest.tools/assert"
)

type mockRequest struct {
	conn ble.Conn
}

func (r mockRequest) Conn() ble.Conn { return r.conn }
func (r mockRequest) Data() []byte   { return nil }
func (r mockRequest) Offset() int    { return 0 }

type mockRspWriter struct {
	data   []byte
	status ble.ATTError
}

func (w *mockRspWriter) Write(b []byte) (int, error) {
	w.data = append(w.data, b...)
	return len(b), nil
}
func (w *mockRspWriter) Status() ble.ATTError          { return w.status }
func (w *mockRspWriter) SetStatus(status ble.ATTError) { w.status = status }
func (w *mockRspWriter) Len() int                      { return len(w.data) }
func (w *mockRspWriter) Cap() int                      { return util.MTU }

type mockNotifier struct {
	ctx    context.Context
	cancel context.CancelFunc
	mutex  sync.Mutex
	frames [][]byte
	err    error
}

func newMockNotifier() *mockNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &mockNotifier{ctx: ctx, cancel: cancel}
}

func (n *mockNotifier) Context() context.Context { return n.ctx }
func (n *mockNotifier) Close() error {
	n.cancel()
	return nil
}
func (n *mockNotifier) Cap() int { return util.MTU }
func (n *mockNotifier) Write(b []byte) (int, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.err != nil {
		return 0, n.err
	}
	n.frames = append(n.frames, append([]byte{}, b...))
	return len(b), nil
}
func (n *mockNotifier) setErr(err error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.err = err
}
func (n *mockNotifier) Frames() [][]byte {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.frames
}

func newTestPeripheral(t *testing.T) (*GattPeripheral, *testCoreMethods) {
	log, _ := test.NewNullLogger()
	methods := newTestCoreMethods(nil)
	p, err := newPeripheral(testConfig(util.TransmitterName), methods, log)
	assert.NilError(t, err)
	return p, methods
}

type advertiseResult struct {
	session link.Session
	err     error
}

func advertiseAsync(ctx context.Context, p *GattPeripheral, methods *testCoreMethods) <-chan advertiseResult {
	ch := make(chan advertiseResult, 1)
	go func() {
		s, err := p.Advertise(ctx)
		ch <- advertiseResult{s, err}
	}()
	<-methods.advertising
	return ch
}

func TestPeripheralRegistersService(t *testing.T) {
	_, methods := newTestPeripheral(t)
	assert.Equal(t, len(methods.services), 1)
	svc := methods.services[0]
	assert.Check(t, util.UuidEqualStr(svc.UUID.String(), util.MainServiceUUID))
	assert.Equal(t, len(svc.Characteristics), 1)
	char := svc.Characteristics[0]
	assert.Check(t, util.UuidEqualStr(char.UUID.String(), util.VaneCharUUID))
	assert.Check(t, char.Property&ble.CharRead != 0)
	assert.Check(t, char.Property&ble.CharNotify != 0)
	assert.Check(t, char.ReadHandler != nil)
	assert.Check(t, char.NotifyHandler != nil)
}

func TestPeripheralRetriesDeviceSetup(t *testing.T) {
	log, _ := test.NewNullLogger()
	methods := newTestCoreMethods(nil)
	methods.deviceFailures = 1
	_, err := newPeripheral(testConfig(util.TransmitterName), methods, log)
	assert.NilError(t, err)
}

func TestAdvertiseAcceptsReadingCentral(t *testing.T) {
	p, methods := newTestPeripheral(t)
	ch := advertiseAsync(context.Background(), p, methods)

	conn := NewMockConn(testAddr)
	rsp := &mockRspWriter{}
	methods.services[0].Characteristics[0].ReadHandler.ServeRead(mockRequest{conn}, rsp)
	assert.Equal(t, len(rsp.data), 0)

	res := <-ch
	assert.NilError(t, res.err)
	assert.Equal(t, res.session.Peer(), testAddr)
	assert.Check(t, res.session.Connected())
	assert.Check(t, res.session.ID() != "")

	assert.NilError(t, res.session.Notify([]byte("B0.500000,1.002500")))
	rsp = &mockRspWriter{}
	p.serveRead(mockRequest{conn}, rsp)
	assert.Equal(t, string(rsp.data), "B0.500000,1.002500")
}

func TestSessionEndsOnDisconnect(t *testing.T) {
	p, methods := newTestPeripheral(t)
	ch := advertiseAsync(context.Background(), p, methods)
	conn := NewMockConn(testAddr)
	p.serveRead(mockRequest{conn}, &mockRspWriter{})
	res := <-ch
	assert.NilError(t, res.err)

	conn.Drop()
	select {
	case <-res.session.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not end")
	}
	assert.Check(t, !res.session.Connected())
	err := res.session.Notify([]byte("V1.000000,3.300000"))
	assert.Check(t, link.IsNotConnected(err))
}

func TestNotifyPushesToSubscriber(t *testing.T) {
	p, methods := newTestPeripheral(t)
	ch := advertiseAsync(context.Background(), p, methods)
	conn := NewMockConn(testAddr)
	n := newMockNotifier()
	served := make(chan struct{})
	go func() {
		p.serveNotify(mockRequest{conn}, n)
		close(served)
	}()
	res := <-ch
	assert.NilError(t, res.err)

	// the subscription registers asynchronously
	deadline := time.Now().Add(time.Second)
	for len(n.Frames()) == 0 && time.Now().Before(deadline) {
		assert.NilError(t, res.session.Notify([]byte("B0.5,1")))
		time.Sleep(5 * time.Millisecond)
	}
	assert.Check(t, len(n.Frames()) > 0)
	assert.Equal(t, string(n.Frames()[0]), "B0.5,1")

	n.setErr(errors.New("att write failed"))
	conn.Drop()
	err := res.session.Notify([]byte("B0.5,1"))
	assert.Check(t, link.IsNotConnected(err))
	<-served
}

func TestAdvertiseCancelled(t *testing.T) {
	p, methods := newTestPeripheral(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch := advertiseAsync(ctx, p, methods)
	cancel()
	res := <-ch
	assert.Equal(t, res.err, context.Canceled)
	assert.NilError(t, p.Close())
	assert.Check(t, methods.stopped)
}
