// Package receiver runs the central side of the vane link: it finds the transmitter,
// reads its characteristic at a fixed pace and reconstructs the derived value.
package receiver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/Krajiyah/vanelink/pkg/metrics"
	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/Krajiyah/vanelink/pkg/protocol"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Role labels the receiver in logs and metrics
const Role = "receiver"

// Config bounds every step of the central link
type Config struct {
	PeerName         string
	Service          string
	ScanDuration     time.Duration
	ConnectTimeout   time.Duration
	DiscoveryTimeout time.Duration
	ReadTimeout      time.Duration
	Pacing           time.Duration
	// RetryDelay is the wait after a scan that failed for another reason than finding nothing
	RetryDelay time.Duration
	Window     int
	Dialect    protocol.Dialect
}

func DefaultConfig() Config {
	return Config{
		PeerName:         util.TransmitterName,
		Service:          util.MainServiceUUID,
		ScanDuration:     util.ScanDuration,
		ConnectTimeout:   util.ConnectTimeout,
		DiscoveryTimeout: util.DiscoveryTimeout,
		ReadTimeout:      util.ReadTimeout,
		Pacing:           util.ReceivePacing,
		RetryDelay:       time.Second,
		Window:           util.ReceiverWindow,
		Dialect:          protocol.Tagged,
	}
}

// Receiver is the central link state machine
type Receiver struct {
	config   Config
	central  link.Central
	match    link.Matcher
	parse    protocol.Parser
	state    *State
	status   atomic.Int32
	listener models.ReceiverListener
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

// New wires a receiver. m may be nil. Legacy frames arrive smoothed already and are not averaged again.
func New(config Config, central link.Central, listener models.ReceiverListener, m *metrics.Metrics, log logrus.FieldLogger) (*Receiver, error) {
	parse, err := protocol.NewParser(config.Dialect)
	if err != nil {
		return nil, err
	}
	window := config.Window
	if config.Dialect == protocol.Legacy {
		window = 1
	}
	return &Receiver{
		config:   config,
		central:  central,
		match:    link.MatchNameAndService(config.PeerName, config.Service),
		parse:    parse,
		state:    NewState(window),
		listener: listener,
		metrics:  m,
		log:      log.WithField("role", Role),
	}, nil
}

// State returns the accumulated receiver state
func (r *Receiver) State() *State { return r.state }

// Status returns the current state of the link
func (r *Receiver) Status() models.LinkStatus { return models.LinkStatus(r.status.Load()) }

func (r *Receiver) setStatus(s models.LinkStatus) {
	if models.LinkStatus(r.status.Swap(int32(s))) == s {
		return
	}
	r.metrics.LinkState(Role, s)
	r.listener.OnStatusChanged(s)
}

// Run scans, connects and reads until ctx is done
func (r *Receiver) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		r.setStatus(models.Scanning)
		peer, err := r.central.Scan(ctx, r.config.ScanDuration, r.match)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Cause(err) == link.ErrNoDevice {
				r.metrics.EmptyScan()
				r.log.Debug("transmitter not found, scanning again")
				continue
			}
			r.log.WithError(err).Warn("scan failed")
			r.listener.OnInternalError(err)
			util.Sleep(ctx, r.config.RetryDelay)
			continue
		}
		r.serve(ctx, peer)
		r.setStatus(models.Idle)
	}
	r.setStatus(models.Idle)
	return ctx.Err()
}

func (r *Receiver) serve(ctx context.Context, peer link.Peer) {
	log := r.log.WithFields(logrus.Fields{"peer": peer.Addr(), "rssi": peer.RSSI()})
	l, err := r.central.Connect(ctx, peer, r.config.ConnectTimeout)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("connect failed")
		}
		return
	}
	defer l.Disconnect()
	if err := l.Discover(ctx, r.config.DiscoveryTimeout); err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("discovery failed")
		}
		return
	}
	log = log.WithField("session", l.ID())
	r.metrics.SessionOpened(Role)
	r.setStatus(models.Connected)
	r.listener.OnConnected(l.ID(), l.Peer())
	log.Info("connected to transmitter")
	defer func() {
		log.Info("session ended")
		r.listener.OnDisconnected(l.ID())
	}()
	for ctx.Err() == nil {
		if !l.Connected() {
			return
		}
		b, err := l.Read(ctx, r.config.ReadTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			switch {
			case util.IsTimeout(err):
				log.Info("read timed out, abandoning session")
			case link.IsNotConnected(err):
				log.Info("transmitter went away")
			default:
				log.WithError(err).Warn("read failed, abandoning session")
				r.listener.OnInternalError(err)
			}
			return
		}
		r.handle(log, b)
		if !util.Sleep(ctx, r.config.Pacing) {
			return
		}
	}
}

// handle decodes one payload; malformed frames are dropped and the session goes on
func (r *Receiver) handle(log logrus.FieldLogger, b []byte) {
	frame, err := r.parse(b)
	if err != nil {
		r.metrics.DecodeError()
		log.WithError(err).WithField("payload", string(b)).Debug("discarding frame")
		return
	}
	r.metrics.FrameRead()
	r.state.Apply(frame)
	if d, ok := r.state.Derived(); ok {
		r.metrics.Derived(d)
		r.listener.OnValue(d)
	}
}
