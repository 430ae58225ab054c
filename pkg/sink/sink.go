// Package sink forwards derived values of the receiver to an MQTT broker.
package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Krajiyah/vanelink/pkg/models"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	queueSize      = 64
	publishTimeout = 5 * time.Second
)

// Config describes the broker connection
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
}

// Payload is the JSON document published for every derived value
type Payload struct {
	Baseline  float64   `json:"baseline"`
	Reference float64   `json:"reference"`
	Reading   float64   `json:"reading"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Sink is a models.ReceiverListener publishing values and link status.
// Neither callback blocks the read loop: values are queued and dropped when the queue is full,
// and only the latest status waits for Run.
type Sink struct {
	config Config
	client publisher
	log    logrus.FieldLogger
	queue  chan Payload
	status chan models.LinkStatus
	now    func() time.Time
}

// Connect dials the broker and returns a sink publishing through it
func Connect(config Config, log logrus.FieldLogger) (*Sink, mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, nil, errors.New("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, nil, errors.Wrap(err, "mqtt connect issue")
	}
	return New(config, client, log), client, nil
}

// New returns a sink publishing through client
func New(config Config, client publisher, log logrus.FieldLogger) *Sink {
	return &Sink{
		config: config,
		client: client,
		log:    log.WithField("topic", config.Topic),
		queue:  make(chan Payload, queueSize),
		status: make(chan models.LinkStatus, 1),
		now:    time.Now,
	}
}

// Run delivers queued values and status until ctx is done, then drains what is left
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case p := <-s.queue:
			s.deliver(p)
		case status := <-s.status:
			s.deliverStatus(status)
		}
	}
}

func (s *Sink) drain() {
	for {
		select {
		case p := <-s.queue:
			s.deliver(p)
		case status := <-s.status:
			s.deliverStatus(status)
		default:
			return
		}
	}
}

func (s *Sink) deliver(p Payload) {
	data, err := json.Marshal(p)
	if err != nil {
		s.log.WithError(err).Error("Could not encode value")
		return
	}
	if err := s.publish(s.config.Topic, false, data); err != nil {
		s.log.WithError(err).Warn("Could not publish value")
	}
}

func (s *Sink) deliverStatus(status models.LinkStatus) {
	if err := s.publish(s.config.Topic+"/status", true, []byte(status.String())); err != nil {
		s.log.WithError(err).Warn("Could not publish status")
	}
}

func (s *Sink) publish(topic string, retained bool, data []byte) error {
	token := s.client.Publish(topic, s.config.QoS, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("mqtt publish timeout")
	}
	return errors.Wrap(token.Error(), "mqtt publish issue")
}

func (s *Sink) OnValue(d models.Derived) {
	p := Payload{Baseline: d.Baseline, Reference: d.Reference, Reading: d.Reading, Value: d.Value, Timestamp: s.now()}
	select {
	case s.queue <- p:
	default:
		s.log.Debug("Sink queue full, value dropped")
	}
}

// OnStatusChanged hands the link state to Run, which publishes it retained on <topic>/status.
// A status not yet published is replaced by the newer one.
func (s *Sink) OnStatusChanged(status models.LinkStatus) {
	for {
		select {
		case s.status <- status:
			return
		default:
		}
		select {
		case <-s.status:
		default:
		}
	}
}

func (s *Sink) OnConnected(session string, peer string) {}
func (s *Sink) OnDisconnected(session string)           {}
func (s *Sink) OnInternalError(err error)               {}
