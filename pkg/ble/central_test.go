package ble

import (
	"context"
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

func newTestCentral(t *testing.T, client ble.Client, advs ...ble.Advertisement) (*GattCentral, *testCoreMethods) {
	log, _ := test.NewNullLogger()
	methods := newTestCoreMethods(client, advs...)
	c, err := newCentral(testConfig(util.ReceiverName), methods, log)
	assert.NilError(t, err)
	return c, methods
}

type stubPeer struct {
	name     string
	services []string
}

func (p stubPeer) Name() string       { return p.name }
func (p stubPeer) Addr() string       { return testOtherAddr }
func (p stubPeer) Services() []string { return p.services }
func (p stubPeer) RSSI() int          { return testRSSI }

func TestScanFindsTransmitter(t *testing.T) {
	noService := NewDummyAdv(util.TransmitterName, testAddr, -80)
	noService.NonService = true
	advs := []ble.Advertisement{
		NewDummyAdv("OTHER", testAddr, -40),
		noService,
		NewDummyAdv(util.TransmitterName, testOtherAddr, testRSSI),
	}
	c, _ := newTestCentral(t, nil, advs...)
	start := time.Now()
	p, err := c.Scan(context.Background(), time.Minute, link.MatchNameAndService(util.TransmitterName, util.MainServiceUUID))
	assert.NilError(t, err)
	assert.Check(t, time.Since(start) < time.Second)
	assert.Check(t, util.AddrEqualAddr(p.Addr(), testOtherAddr))
	assert.Equal(t, p.RSSI(), testRSSI)
	assert.Equal(t, p.Name(), util.TransmitterName)
}

func TestScanWithoutDevice(t *testing.T) {
	c, _ := newTestCentral(t, nil, NewDummyAdv("OTHER", testAddr, -40))
	_, err := c.Scan(context.Background(), 30*time.Millisecond, link.MatchNameAndService(util.TransmitterName, util.MainServiceUUID))
	assert.Equal(t, err, link.ErrNoDevice)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Scan(ctx, time.Second, link.MatchNameAndService(util.TransmitterName, util.MainServiceUUID))
	assert.Equal(t, err, context.Canceled)
}

func connectTestLink(t *testing.T, client *DummyCoreClient) link.Link {
	c, _ := newTestCentral(t, client)
	l, err := c.Connect(context.Background(), stubPeer{util.TransmitterName, []string{"181a"}}, time.Second)
	assert.NilError(t, err)
	assert.Equal(t, l.Peer(), testOtherAddr)
	return l
}

func TestConnectDiscoverRead(t *testing.T) {
	client := NewDummyCoreClient(testOtherAddr, []string{"2A19", util.VaneCharUUID})
	client.SetReadData([]byte("V1.000000,3.300000"))
	l := connectTestLink(t, client)

	_, err := l.Read(context.Background(), time.Second)
	assert.Check(t, errors.Cause(err) == link.ErrAttributeNotFound)

	assert.NilError(t, l.Discover(context.Background(), time.Second))
	b, err := l.Read(context.Background(), time.Second)
	assert.NilError(t, err)
	assert.Equal(t, string(b), "V1.000000,3.300000")
	assert.Check(t, l.Connected())

	assert.NilError(t, l.Disconnect())
	assert.Check(t, !l.Connected())
	_, err = l.Read(context.Background(), time.Second)
	assert.Check(t, link.IsNotConnected(err))
}

func TestDiscoverMissingCharacteristic(t *testing.T) {
	client := NewDummyCoreClient(testOtherAddr, []string{"2A19"})
	l := connectTestLink(t, client)
	err := l.Discover(context.Background(), time.Second)
	assert.Check(t, errors.Cause(err) == link.ErrAttributeNotFound)
}

func TestReadFailures(t *testing.T) {
	client := NewDummyCoreClient(testOtherAddr, []string{util.VaneCharUUID})
	l := connectTestLink(t, client)
	assert.NilError(t, l.Discover(context.Background(), time.Second))

	client.SetReadErr(errors.New("att error 0x0e"))
	_, err := l.Read(context.Background(), time.Second)
	assert.ErrorContains(t, err, "ReadCharacteristic issue")
	assert.Check(t, !link.IsNotConnected(err))

	client.Drop()
	_, err = l.Read(context.Background(), time.Second)
	assert.Check(t, link.IsNotConnected(err))
}

func TestDialFailure(t *testing.T) {
	c, methods := newTestCentral(t, nil)
	methods.dialErr = errors.New("le connection failed")
	_, err := c.Connect(context.Background(), stubPeer{util.TransmitterName, nil}, time.Second)
	assert.ErrorContains(t, err, "Dial issue")
	assert.NilError(t, c.Close())
}
