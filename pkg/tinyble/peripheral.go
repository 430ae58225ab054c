package tinyble

import (
	"context"
	"sync"

	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// Peripheral advertises the service and notifies frames through the adapter's characteristic handle
type Peripheral struct {
	config  Config
	radio   radio
	log     logrus.FieldLogger
	service bluetooth.UUID
	handle  writer

	mutex    sync.Mutex
	active   *session
	connects chan string
}

// NewPeripheral enables the default adapter and registers the GATT service
func NewPeripheral(config Config, log logrus.FieldLogger) (*Peripheral, error) {
	return newPeripheral(config, newAdapterRadio(), log)
}

func newPeripheral(config Config, r radio, log logrus.FieldLogger) (*Peripheral, error) {
	svc, char, err := config.uuids()
	if err != nil {
		return nil, err
	}
	if err := r.Enable(); err != nil {
		return nil, errors.Wrap(err, "adapter Enable issue")
	}
	handle, err := r.AddService(svc, char)
	if err != nil {
		return nil, errors.Wrap(err, "AddService issue")
	}
	p := &Peripheral{config: config, radio: r, log: log, service: svc, handle: handle, connects: make(chan string, 1)}
	r.OnConnect(p.onConnect)
	return p, nil
}

func (p *Peripheral) onConnect(addr string, connected bool) {
	if connected {
		select {
		case p.connects <- addr:
		default:
			p.log.WithField("peer", addr).Warn("connection while a session is pending")
		}
		return
	}
	p.mutex.Lock()
	s := p.active
	p.mutex.Unlock()
	if s != nil && util.AddrEqualAddr(s.peer, addr) {
		s.finish()
	}
}

// Advertise starts advertising and waits for a central to connect
func (p *Peripheral) Advertise(ctx context.Context) (link.Session, error) {
	if err := p.radio.Advertise(p.config.Name, p.service, p.config.AdvertisingInterval); err != nil {
		return nil, errors.Wrap(err, "Advertise issue")
	}
	defer func() {
		if err := p.radio.StopAdvertising(); err != nil {
			p.log.WithError(err).Debug("StopAdvertising issue")
		}
	}()
	select {
	case addr := <-p.connects:
		s := &session{id: uuid.New().String(), peer: addr, handle: p.handle, done: make(chan struct{})}
		p.mutex.Lock()
		p.active = s
		p.mutex.Unlock()
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops advertising, the adapter itself stays enabled
func (p *Peripheral) Close() error {
	return p.radio.StopAdvertising()
}

type session struct {
	id     string
	peer   string
	handle writer
	done   chan struct{}
	once   sync.Once
}

func (s *session) ID() string            { return s.id }
func (s *session) Peer() string          { return s.peer }
func (s *session) Done() <-chan struct{} { return s.done }

func (s *session) Connected() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *session) Notify(b []byte) error {
	if !s.Connected() {
		return link.ErrNotConnected
	}
	err := util.CatchErrs(func() error {
		_, e := s.handle.Write(b)
		return e
	})
	if err == nil {
		return nil
	}
	if !s.Connected() {
		return link.ErrNotConnected
	}
	return errors.Wrap(err, "characteristic Write issue")
}

func (s *session) finish() {
	s.once.Do(func() { close(s.done) })
}

func (s *session) Close() error {
	s.finish()
	return nil
}
