package ble

import (
	"context"
	"sync"
	"time"

	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// GattCentral scans and dials through the go-ble HCI device
type GattCentral struct {
	config  DeviceConfig
	methods coreMethods
	log     logrus.FieldLogger
}

// NewCentral opens the default HCI device with the configured scan parameters
func NewCentral(config DeviceConfig, log logrus.FieldLogger) (*GattCentral, error) {
	return newCentral(config, &realCoreMethods{}, log)
}

func newCentral(config DeviceConfig, methods coreMethods, log logrus.FieldLogger) (*GattCentral, error) {
	err := retry(log, "SetDefaultDevice", func() error { return methods.SetDefaultDevice(config) })
	if err != nil {
		return nil, err
	}
	return &GattCentral{config: config, methods: methods, log: log}, nil
}

type advPeer struct {
	adv ble.Advertisement
}

func (p advPeer) Name() string { return p.adv.LocalName() }
func (p advPeer) Addr() string { return p.adv.Addr().String() }
func (p advPeer) RSSI() int    { return p.adv.RSSI() }
func (p advPeer) Services() []string {
	ret := []string{}
	for _, u := range p.adv.Services() {
		ret = append(ret, u.String())
	}
	return ret
}

// Scan runs one scan pass and stops at the first advertisement accepted by match
func (c *GattCentral) Scan(ctx context.Context, duration time.Duration, match link.Matcher) (link.Peer, error) {
	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	found := make(chan link.Peer, 1)
	err := c.methods.Scan(scanCtx, func(a ble.Advertisement) {
		p := advPeer{a}
		if !match(p) {
			return
		}
		select {
		case found <- p:
			cancel()
		default:
		}
	}, nil)
	select {
	case p := <-found:
		return p, nil
	default:
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		cause := errors.Cause(err)
		if cause != context.DeadlineExceeded && cause != context.Canceled {
			return nil, errors.Wrap(err, "Scan issue")
		}
	}
	return nil, link.ErrNoDevice
}

// Connect dials the peer and negotiates the MTU
func (c *GattCentral) Connect(ctx context.Context, peer link.Peer, timeout time.Duration) (link.Link, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := c.methods.Dial(dialCtx, ble.NewAddr(peer.Addr()))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if dialCtx.Err() != nil {
			return nil, errors.Wrap(util.ErrTimeout, "Dial issue")
		}
		return nil, errors.Wrap(err, "Dial issue")
	}
	err = util.TimeoutContext(ctx, func() error {
		_, e := client.ExchangeMTU(util.MTU)
		return e
	}, timeout)
	if err != nil {
		c.log.WithError(err).WithField("peer", peer.Addr()).Debug("ExchangeMTU issue, keeping default MTU")
	}
	return &gattLink{id: uuid.New().String(), peer: peer.Addr(), config: c.config, client: client}, nil
}

// Close stops the HCI device
func (c *GattCentral) Close() error {
	return c.methods.Stop()
}

type gattLink struct {
	id     string
	peer   string
	config DeviceConfig
	client ble.Client

	mutex sync.Mutex
	char  *ble.Characteristic
}

func (l *gattLink) ID() string   { return l.id }
func (l *gattLink) Peer() string { return l.peer }

func (l *gattLink) Connected() bool {
	select {
	case <-l.client.Disconnected():
		return false
	default:
		return true
	}
}

func (l *gattLink) Discover(ctx context.Context, timeout time.Duration) error {
	svcUUID, err := ble.Parse(l.config.Service)
	if err != nil {
		return errors.Wrap(err, "service uuid issue")
	}
	charUUID, err := ble.Parse(l.config.Characteristic)
	if err != nil {
		return errors.Wrap(err, "characteristic uuid issue")
	}
	return util.TimeoutContext(ctx, func() error {
		services, err := l.client.DiscoverServices([]ble.UUID{svcUUID})
		if err != nil {
			return errors.Wrap(err, "DiscoverServices issue")
		}
		for _, s := range services {
			if !util.UuidEqualStr(s.UUID.String(), l.config.Service) {
				continue
			}
			chars, err := l.client.DiscoverCharacteristics([]ble.UUID{charUUID}, s)
			if err != nil {
				return errors.Wrap(err, "DiscoverCharacteristics issue")
			}
			for _, char := range chars {
				if util.UuidEqualStr(char.UUID.String(), l.config.Characteristic) {
					l.setCharacteristic(char)
					return nil
				}
			}
		}
		return errors.Wrapf(link.ErrAttributeNotFound, "characteristic %s in service %s", l.config.Characteristic, l.config.Service)
	}, timeout)
}

func (l *gattLink) setCharacteristic(c *ble.Characteristic) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.char = c
}

func (l *gattLink) characteristic() *ble.Characteristic {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.char
}

func (l *gattLink) Read(ctx context.Context, timeout time.Duration) ([]byte, error) {
	char := l.characteristic()
	if char == nil {
		return nil, errors.Wrap(link.ErrAttributeNotFound, "Discover was not called")
	}
	if !l.Connected() {
		return nil, link.ErrNotConnected
	}
	ch := make(chan []byte, 1)
	err := util.TimeoutContext(ctx, func() error {
		b, e := l.client.ReadCharacteristic(char)
		if e != nil {
			return e
		}
		ch <- b
		return nil
	}, timeout)
	if err != nil {
		if !l.Connected() {
			return nil, link.ErrNotConnected
		}
		return nil, errors.Wrap(err, "ReadCharacteristic issue")
	}
	return <-ch, nil
}

func (l *gattLink) Disconnect() error {
	return util.CatchErrs(l.client.CancelConnection)
}
