package ble

import (
	"context"
	"sync"

	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const pendingSessions = 4

// GattPeripheral serves the vane characteristic through the go-ble GATT server.
// A central is considered connected from its first read or notify subscription.
type GattPeripheral struct {
	config      DeviceConfig
	methods     coreMethods
	log         logrus.FieldLogger
	serviceUUID ble.UUID

	mutex    sync.Mutex
	value    []byte
	sessions map[string]*gattSession
	accepted chan *gattSession
}

// NewPeripheral opens the default HCI device and registers the GATT service
func NewPeripheral(config DeviceConfig, log logrus.FieldLogger) (*GattPeripheral, error) {
	return newPeripheral(config, &realCoreMethods{}, log)
}

func newPeripheral(config DeviceConfig, methods coreMethods, log logrus.FieldLogger) (*GattPeripheral, error) {
	svcUUID, err := ble.Parse(config.Service)
	if err != nil {
		return nil, errors.Wrap(err, "service uuid issue")
	}
	charUUID, err := ble.Parse(config.Characteristic)
	if err != nil {
		return nil, errors.Wrap(err, "characteristic uuid issue")
	}
	p := &GattPeripheral{
		config: config, methods: methods, log: log, serviceUUID: svcUUID,
		sessions: map[string]*gattSession{}, accepted: make(chan *gattSession, pendingSessions),
	}
	err = retry(log, "SetDefaultDevice", func() error { return methods.SetDefaultDevice(config) })
	if err != nil {
		return nil, err
	}
	svc := ble.NewService(svcUUID)
	char := svc.NewCharacteristic(charUUID)
	char.HandleRead(ble.ReadHandlerFunc(p.serveRead))
	char.HandleNotify(ble.NotifyHandlerFunc(p.serveNotify))
	if err := methods.AddService(svc); err != nil {
		return nil, errors.Wrap(err, "AddService issue")
	}
	return p, nil
}

// Advertise advertises the name and service until a central shows up
func (p *GattPeripheral) Advertise(ctx context.Context) (link.Session, error) {
	advCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ended := make(chan error, 1)
	go func() {
		ended <- p.methods.AdvertiseNameAndServices(advCtx, p.config.Name, p.serviceUUID)
	}()
	for {
		select {
		case s := <-p.accepted:
			if !s.Connected() {
				continue
			}
			return s, nil
		case err := <-ended:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err == nil {
				return nil, link.ErrAdvertisingStopped
			}
			return nil, errors.Wrap(err, "AdvertiseNameAndServices issue")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops the HCI device
func (p *GattPeripheral) Close() error {
	return p.methods.Stop()
}

func (p *GattPeripheral) store(b []byte) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.value = append(p.value[:0], b...)
}

func (p *GattPeripheral) current() []byte {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]byte{}, p.value...)
}

func (p *GattPeripheral) sessionFor(conn ble.Conn) *gattSession {
	addr := conn.RemoteAddr().String()
	p.mutex.Lock()
	if s, ok := p.sessions[addr]; ok && s.Connected() {
		p.mutex.Unlock()
		return s
	}
	s := &gattSession{
		id: uuid.New().String(), peer: addr, conn: conn, owner: p,
		done: make(chan struct{}),
	}
	p.sessions[addr] = s
	p.mutex.Unlock()
	go s.watch()
	select {
	case p.accepted <- s:
	default:
		p.log.WithField("peer", addr).Warn("too many pending sessions, dropping connection")
		s.Close()
	}
	return s
}

func (p *GattPeripheral) forget(s *gattSession) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.sessions[s.peer] == s {
		delete(p.sessions, s.peer)
	}
}

func (p *GattPeripheral) serveRead(req ble.Request, rsp ble.ResponseWriter) {
	p.sessionFor(req.Conn())
	if _, err := rsp.Write(p.current()); err != nil {
		p.log.WithError(err).Debug("read response issue")
	}
}

func (p *GattPeripheral) serveNotify(req ble.Request, n ble.Notifier) {
	s := p.sessionFor(req.Conn())
	s.subscribe(n)
	defer s.unsubscribe(n)
	select {
	case <-n.Context().Done():
	case <-s.done:
	}
}

type gattSession struct {
	id    string
	peer  string
	conn  ble.Conn
	owner *GattPeripheral

	mutex    sync.Mutex
	notifier ble.Notifier
	done     chan struct{}
	once     sync.Once
}

func (s *gattSession) ID() string               { return s.id }
func (s *gattSession) Peer() string             { return s.peer }
func (s *gattSession) Done() <-chan struct{}    { return s.done }
func (s *gattSession) subscribe(n ble.Notifier) { s.setNotifier(n) }

func (s *gattSession) unsubscribe(n ble.Notifier) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.notifier == n {
		s.notifier = nil
	}
}

func (s *gattSession) setNotifier(n ble.Notifier) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.notifier = n
}

func (s *gattSession) Connected() bool {
	select {
	case <-s.done:
		return false
	case <-s.conn.Disconnected():
		return false
	default:
		return true
	}
}

func (s *gattSession) Notify(b []byte) error {
	if !s.Connected() {
		return link.ErrNotConnected
	}
	s.owner.store(b)
	s.mutex.Lock()
	n := s.notifier
	s.mutex.Unlock()
	if n == nil {
		return nil
	}
	err := util.CatchErrs(func() error {
		_, e := n.Write(b)
		return e
	})
	if err == nil {
		return nil
	}
	if !s.Connected() || n.Context().Err() != nil {
		return link.ErrNotConnected
	}
	return errors.Wrap(err, "notifier write issue")
}

func (s *gattSession) Close() error {
	s.finish()
	return util.CatchErrs(s.conn.Close)
}

func (s *gattSession) finish() {
	s.once.Do(func() { close(s.done) })
}

func (s *gattSession) watch() {
	select {
	case <-s.conn.Disconnected():
	case <-s.done:
	}
	s.finish()
	s.owner.forget(s)
}
