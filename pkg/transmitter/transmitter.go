// Package transmitter runs the peripheral side of the vane link: it samples the
// sensor, keeps the baseline and notifies one frame per send cycle to the connected receiver.
package transmitter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Krajiyah/vanelink/pkg/calibration"
	"github.com/Krajiyah/vanelink/pkg/link"
	"github.com/Krajiyah/vanelink/pkg/metrics"
	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/Krajiyah/vanelink/pkg/protocol"
	"github.com/Krajiyah/vanelink/pkg/smoothing"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Role labels the transmitter in logs and metrics
const Role = "transmitter"

// Config tunes the send loop
type Config struct {
	// SendLatency is spread over SmoothingWindow cycles
	SendLatency     time.Duration
	SmoothingWindow int
	Dialect         protocol.Dialect
	Slots           int
	// AdvertiseRetry is the wait after a failed advertise attempt
	AdvertiseRetry time.Duration
}

func DefaultConfig() Config {
	return Config{
		SendLatency:     util.SendLatency,
		SmoothingWindow: util.SmoothingWindow,
		Dialect:         protocol.Tagged,
		Slots:           protocol.DefaultSlots,
		AdvertiseRetry:  time.Second,
	}
}

// Transmitter is the peripheral link state machine
type Transmitter struct {
	config       Config
	peripheral   link.Peripheral
	sensor       calibration.Measurer
	state        *calibration.State
	recalibrator *calibration.Recalibrator
	buffer       *smoothing.Buffer
	composer     protocol.Composer
	budget       time.Duration
	status       atomic.Int32
	listener     models.TransmitterListener
	metrics      *metrics.Metrics
	log          logrus.FieldLogger
}

// New wires a transmitter. m may be nil.
func New(config Config, peripheral link.Peripheral, sensor calibration.Measurer, listener models.TransmitterListener, m *metrics.Metrics, log logrus.FieldLogger) (*Transmitter, error) {
	composer, err := protocol.NewComposer(config.Dialect, config.Slots)
	if err != nil {
		return nil, err
	}
	log = log.WithField("role", Role)
	t := &Transmitter{
		config:     config,
		peripheral: peripheral,
		sensor:     sensor,
		state:      calibration.NewState(0),
		buffer:     smoothing.NewBuffer(config.SmoothingWindow),
		composer:   composer,
		budget:     util.CycleBudget(config.SendLatency, config.SmoothingWindow),
		listener:   listener,
		metrics:    m,
		log:        log,
	}
	t.recalibrator = calibration.NewRecalibrator(t.state, sensor, t.onRecalibrated, log)
	return t, nil
}

// Baseline returns the baseline of the last completed calibration pass
func (t *Transmitter) Baseline() float64 { return t.state.Current() }

// Status returns the current state of the link
func (t *Transmitter) Status() models.LinkStatus { return models.LinkStatus(t.status.Load()) }

// Budget returns the target duration of one send cycle
func (t *Transmitter) Budget() time.Duration { return t.budget }

// Recalibrate queues a calibration pass without waiting for it
func (t *Transmitter) Recalibrate() bool { return t.recalibrator.Request() }

// NewTrigger debounces a recalibration input. active reports whether the line is asserted.
func (t *Transmitter) NewTrigger(window time.Duration, active func() bool) *calibration.Trigger {
	return calibration.NewTrigger(window, active, t.recalibrator.Request)
}

func (t *Transmitter) onRecalibrated(baseline float64) {
	t.metrics.Recalibrated(baseline)
	t.listener.OnRecalibrated(baseline)
}

func (t *Transmitter) setStatus(s models.LinkStatus) {
	if models.LinkStatus(t.status.Swap(int32(s))) == s {
		return
	}
	t.metrics.LinkState(Role, s)
	t.listener.OnStatusChanged(s)
}

// Run calibrates once, then advertises and serves sessions until ctx is done
func (t *Transmitter) Run(ctx context.Context) error {
	go t.recalibrator.Run(ctx)
	if err := t.recalibrator.Calibrate(ctx); err != nil {
		t.log.WithError(err).Warn("initial calibration failed, baseline stays at zero")
		t.listener.OnInternalError(err)
	}
	for ctx.Err() == nil {
		t.setStatus(models.Advertising)
		session, err := t.peripheral.Advertise(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			t.setStatus(models.Idle)
			t.log.WithError(err).Warn("advertising failed")
			t.listener.OnInternalError(errors.Wrap(err, "advertise issue"))
			util.Sleep(ctx, t.config.AdvertiseRetry)
			continue
		}
		t.serve(ctx, session)
		t.setStatus(models.Idle)
	}
	t.setStatus(models.Idle)
	return ctx.Err()
}

func (t *Transmitter) serve(ctx context.Context, session link.Session) {
	log := t.log.WithFields(logrus.Fields{"session": session.ID(), "peer": session.Peer()})
	defer session.Close()
	t.metrics.SessionOpened(Role)
	t.setStatus(models.Connected)
	t.listener.OnConnected(session.ID(), session.Peer())
	log.Info("receiver connected")
	defer func() {
		log.Info("session ended")
		t.listener.OnDisconnected(session.ID())
	}()
	for ctx.Err() == nil && session.Connected() {
		start := time.Now()
		wait := t.budget
		err := t.cycle(ctx, session)
		switch {
		case err == nil:
			t.metrics.FrameSent()
			wait = util.Remaining(t.budget, time.Since(start))
		case ctx.Err() != nil:
			return
		case link.IsNotConnected(err):
			t.metrics.NotifyFailed(true)
			log.Debug("receiver not reachable, retrying next cycle")
		default:
			t.metrics.NotifyFailed(false)
			log.WithError(err).Warn("send cycle skipped")
			t.listener.OnInternalError(err)
			wait = util.Remaining(t.budget, time.Since(start))
		}
		if !pause(ctx, session.Done(), wait) {
			return
		}
	}
}

// cycle samples, composes and notifies one frame
func (t *Transmitter) cycle(ctx context.Context, session link.Session) error {
	reading, err := t.sensor.Measure(ctx, models.Measurement)
	if err != nil {
		return errors.Wrap(err, "measurement issue")
	}
	t.buffer.Push(reading.Value)
	snapshot := protocol.Snapshot{Baseline: t.state.Current(), Reading: t.buffer.Mean()}
	if t.composer.NeedsReference() {
		ref, err := t.sensor.Measure(ctx, models.Reference)
		if err != nil {
			return errors.Wrap(err, "reference issue")
		}
		snapshot.Reference = ref.Value
	}
	return session.Notify(t.composer.Compose(snapshot))
}

// pause waits d and reports false when ctx or done ended the wait
func pause(ctx context.Context, done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-done:
			return false
		default:
			return ctx.Err() == nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	case <-ctx.Done():
		return false
	}
}
