// Package metrics exposes the link counters and gauges of both node roles.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vanelink"

type Metrics struct {
	gatherer prometheus.Gatherer

	linkState      *prometheus.GaugeVec
	sessions       *prometheus.CounterVec
	framesSent     prometheus.Counter
	notifyFailures *prometheus.CounterVec
	recalibrations prometheus.Counter
	baseline       prometheus.Gauge
	framesRead     prometheus.Counter
	decodeErrors   prometheus.Counter
	emptyScans     prometheus.Counter
	derived        *prometheus.GaugeVec

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers the collectors with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers the collectors with reg and serves them from g
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		linkState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_state",
			Help:      "Link state machine state (0 idle, 1 advertising, 2 scanning, 3 connected).",
		}, []string{"role"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Sessions opened by role.",
		}, []string{"role"}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames notified by the transmitter.",
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Frames not delivered, by reason (not_connected, dropped).",
		}, []string{"reason"}),
		recalibrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalibrations_total",
			Help:      "Completed calibration passes.",
		}),
		baseline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_volts",
			Help:      "Baseline stored by the last completed calibration pass.",
		}),
		framesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_read_total",
			Help:      "Frames read and decoded by the receiver.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frames discarded by the receiver as malformed.",
		}),
		emptyScans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_scans_total",
			Help:      "Scan passes that ended without finding the transmitter.",
		}),
		derived: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "derived_volts",
			Help:      "Receiver side values (baseline, reference, reading, value).",
		}, []string{"field"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.linkState,
		m.sessions,
		m.framesSent,
		m.notifyFailures,
		m.recalibrations,
		m.baseline,
		m.framesRead,
		m.decodeErrors,
		m.emptyScans,
		m.derived,
		m.httpRequestsTotal,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts and times requests served by next under route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) LinkState(role string, s models.LinkStatus) {
	if m == nil {
		return
	}
	m.linkState.WithLabelValues(role).Set(float64(s))
}

func (m *Metrics) SessionOpened(role string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(role).Inc()
}

func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

// NotifyFailed counts an undelivered frame; notConnected separates a vanished peer from other failures
func (m *Metrics) NotifyFailed(notConnected bool) {
	if m == nil {
		return
	}
	reason := "dropped"
	if notConnected {
		reason = "not_connected"
	}
	m.notifyFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) Recalibrated(baseline float64) {
	if m == nil {
		return
	}
	m.recalibrations.Inc()
	m.baseline.Set(baseline)
}

func (m *Metrics) FrameRead() {
	if m == nil {
		return
	}
	m.framesRead.Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *Metrics) EmptyScan() {
	if m == nil {
		return
	}
	m.emptyScans.Inc()
}

func (m *Metrics) Derived(d models.Derived) {
	if m == nil {
		return
	}
	m.derived.WithLabelValues("baseline").Set(d.Baseline)
	m.derived.WithLabelValues("reference").Set(d.Reference)
	m.derived.WithLabelValues("reading").Set(d.Reading)
	m.derived.WithLabelValues("value").Set(d.Value)
}
