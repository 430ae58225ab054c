// Package logging builds the node logger and the listeners that turn link events into log lines.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr at level, in text or json format
func New(level string, format string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput is New writing to out
func NewWithOutput(out io.Writer, level string, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level issue")
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	return log, nil
}

// TransmitterListener logs every event of the peripheral role
type TransmitterListener struct {
	Log logrus.FieldLogger
}

func (l TransmitterListener) OnStatusChanged(s models.LinkStatus) {
	l.Log.WithField("state", s).Info("Transmitter status changed")
}

func (l TransmitterListener) OnConnected(session string, peer string) {
	l.Log.WithFields(logrus.Fields{"session": session, "peer": peer}).Info("Receiver connected")
}

func (l TransmitterListener) OnDisconnected(session string) {
	l.Log.WithField("session", session).Info("Receiver disconnected")
}

func (l TransmitterListener) OnRecalibrated(baseline float64) {
	l.Log.WithField("baseline", baseline).Info("Recalibrated")
}

func (l TransmitterListener) OnInternalError(err error) {
	l.Log.WithError(err).Error("Transmitter internal error")
}

// ReceiverListener logs every event of the central role. Values go out at debug level,
// one per read.
type ReceiverListener struct {
	Log logrus.FieldLogger
}

func (l ReceiverListener) OnStatusChanged(s models.LinkStatus) {
	l.Log.WithField("state", s).Info("Receiver status changed")
}

func (l ReceiverListener) OnConnected(session string, peer string) {
	l.Log.WithFields(logrus.Fields{"session": session, "peer": peer}).Info("Connected to transmitter")
}

func (l ReceiverListener) OnDisconnected(session string) {
	l.Log.WithField("session", session).Info("Disconnected from transmitter")
}

func (l ReceiverListener) OnValue(d models.Derived) {
	l.Log.WithFields(logrus.Fields{
		"baseline":  d.Baseline,
		"reference": d.Reference,
		"reading":   d.Reading,
		"value":     d.Value,
	}).Debug("Value")
}

func (l ReceiverListener) OnInternalError(err error) {
	l.Log.WithError(err).Error("Receiver internal error")
}

// ReceiverListeners fans every receiver event out to each listener in order
type ReceiverListeners []models.ReceiverListener

func (ls ReceiverListeners) OnStatusChanged(s models.LinkStatus) {
	for _, l := range ls {
		l.OnStatusChanged(s)
	}
}

func (ls ReceiverListeners) OnConnected(session string, peer string) {
	for _, l := range ls {
		l.OnConnected(session, peer)
	}
}

func (ls ReceiverListeners) OnDisconnected(session string) {
	for _, l := range ls {
		l.OnDisconnected(session)
	}
}

func (ls ReceiverListeners) OnValue(d models.Derived) {
	for _, l := range ls {
		l.OnValue(d)
	}
}

func (ls ReceiverListeners) OnInternalError(err error) {
	for _, l := range ls {
		l.OnInternalError(err)
	}
}
