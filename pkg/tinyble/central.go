package tinyble

import (
	"context"
	"sync"
	"time"

	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

const stopScanGrace = time.Second

// Central scans and connects through the default adapter
type Central struct {
	config  Config
	radio   radio
	log     logrus.FieldLogger
	service bluetooth.UUID
	char    bluetooth.UUID

	mutex sync.Mutex
	links map[string]*deviceLink
}

// NewCentral enables the default adapter
func NewCentral(config Config, log logrus.FieldLogger) (*Central, error) {
	return newCentral(config, newAdapterRadio(), log)
}

func newCentral(config Config, r radio, log logrus.FieldLogger) (*Central, error) {
	svc, char, err := config.uuids()
	if err != nil {
		return nil, err
	}
	if err := r.Enable(); err != nil {
		return nil, errors.Wrap(err, "adapter Enable issue")
	}
	c := &Central{config: config, radio: r, log: log, service: svc, char: char, links: map[string]*deviceLink{}}
	r.OnConnect(c.onConnect)
	return c, nil
}

func (c *Central) onConnect(addr string, connected bool) {
	if connected {
		return
	}
	c.mutex.Lock()
	l := c.links[addr]
	delete(c.links, addr)
	c.mutex.Unlock()
	if l != nil {
		l.finish()
	}
}

// Scan runs one scan pass and stops at the first result accepted by match
func (c *Central) Scan(ctx context.Context, duration time.Duration, match link.Matcher) (link.Peer, error) {
	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	found := make(chan link.Peer, 1)
	ended := make(chan error, 1)
	go func() {
		ended <- util.CatchErrs(func() error {
			return c.radio.Scan(c.service, func(s scanned) {
				if !match(s) {
					return
				}
				select {
				case found <- s:
					cancel()
				default:
				}
			})
		})
	}()
	var scanErr error
	select {
	case <-scanCtx.Done():
		if err := c.radio.StopScan(); err != nil {
			c.log.WithError(err).Debug("StopScan issue")
		}
		select {
		case scanErr = <-ended:
		case <-time.After(stopScanGrace):
			c.log.Warn("scan did not stop in time")
		}
	case scanErr = <-ended:
	}
	select {
	case p := <-found:
		return p, nil
	default:
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if scanErr != nil {
		return nil, errors.Wrap(scanErr, "Scan issue")
	}
	return nil, link.ErrNoDevice
}

// Connect connects to the peer within timeout
func (c *Central) Connect(ctx context.Context, peer link.Peer, timeout time.Duration) (link.Link, error) {
	// ch always receives once, nil when the radio failed
	ch := make(chan remote, 1)
	err := util.TimeoutContext(ctx, func() error {
		r, e := c.radio.Connect(peer.Addr())
		if e != nil {
			ch <- nil
			return e
		}
		ch <- r
		return nil
	}, timeout)
	if err != nil {
		go c.dropLate(peer.Addr(), ch)
		return nil, errors.Wrap(err, "Connect issue")
	}
	l := &deviceLink{
		id: uuid.New().String(), peer: peer.Addr(), central: c, remote: <-ch,
		done: make(chan struct{}),
	}
	c.mutex.Lock()
	c.links[l.peer] = l
	c.mutex.Unlock()
	return l, nil
}

// dropLate disconnects a remote whose connection completed after Connect gave up on it
func (c *Central) dropLate(addr string, ch <-chan remote) {
	r := <-ch
	if r == nil {
		return
	}
	if err := r.Disconnect(); err != nil {
		c.log.WithError(err).WithField("addr", addr).Warn("Could not drop late connection")
	}
}

// Close releases every open link
func (c *Central) Close() error {
	c.mutex.Lock()
	links := c.links
	c.links = map[string]*deviceLink{}
	c.mutex.Unlock()
	for _, l := range links {
		l.Disconnect()
	}
	return nil
}

type deviceLink struct {
	id      string
	peer    string
	central *Central
	remote  remote

	mutex sync.Mutex
	char  reader
	done  chan struct{}
	once  sync.Once
}

func (l *deviceLink) ID() string   { return l.id }
func (l *deviceLink) Peer() string { return l.peer }

func (l *deviceLink) finish() {
	l.once.Do(func() { close(l.done) })
}

func (l *deviceLink) Connected() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *deviceLink) Discover(ctx context.Context, timeout time.Duration) error {
	return util.TimeoutContext(ctx, func() error {
		r, err := l.remote.Characteristic(l.central.service, l.central.char)
		if err != nil {
			return err
		}
		l.mutex.Lock()
		l.char = r
		l.mutex.Unlock()
		return nil
	}, timeout)
}

func (l *deviceLink) Read(ctx context.Context, timeout time.Duration) ([]byte, error) {
	l.mutex.Lock()
	char := l.char
	l.mutex.Unlock()
	if char == nil {
		return nil, errors.Wrap(link.ErrAttributeNotFound, "Discover was not called")
	}
	if !l.Connected() {
		return nil, link.ErrNotConnected
	}
	ch := make(chan []byte, 1)
	err := util.TimeoutContext(ctx, func() error {
		buf := make([]byte, util.MTU)
		n, e := char.Read(buf)
		if e != nil {
			return e
		}
		ch <- buf[:n]
		return nil
	}, timeout)
	if err != nil {
		if !l.Connected() {
			return nil, link.ErrNotConnected
		}
		return nil, errors.Wrap(err, "characteristic Read issue")
	}
	return <-ch, nil
}

func (l *deviceLink) Disconnect() error {
	l.finish()
	l.central.mutex.Lock()
	if l.central.links[l.peer] == l {
		delete(l.central.links, l.peer)
	}
	l.central.mutex.Unlock()
	return util.CatchErrs(l.remote.Disconnect)
}
