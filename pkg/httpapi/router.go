// Package httpapi exposes the node status, its latest value and its metrics over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/Krajiyah/vanelink/pkg/metrics"
	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/Krajiyah/vanelink/pkg/receiver"
	"github.com/Krajiyah/vanelink/pkg/transmitter"
	"github.com/gorilla/mux"
)

// Node is what the router reports on
type Node interface {
	Status() models.LinkStatus
	// Value returns the latest value document, false while there is none yet
	Value() (interface{}, bool)
}

// Recalibrator is implemented by nodes that accept a remote recalibration request
type Recalibrator interface {
	Recalibrate() bool
}

type healthResponse struct {
	Role   string `json:"role"`
	Status string `json:"status"`
}

// NewRouter returns the status router of node: GET /healthz, GET /value, GET /metrics and,
// when node is a Recalibrator, POST /recalibrate
func NewRouter(role string, node Node, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/healthz", m.WrapHandler("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Role: role, Status: node.Status().String()})
	}))).Methods("GET")

	r.Handle("/value", m.WrapHandler("/value", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		v, ok := node.Value()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no value yet"})
			return
		}
		writeJSON(w, http.StatusOK, v)
	}))).Methods("GET")

	if rc, ok := node.(Recalibrator); ok {
		r.Handle("/recalibrate", m.WrapHandler("/recalibrate", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if !rc.Recalibrate() {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "recalibration already pending"})
				return
			}
			w.WriteHeader(http.StatusAccepted)
		}))).Methods("POST")
	}

	r.Handle("/metrics", m.Handler()).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ReceiverNode reports the derived value of a receiver
type ReceiverNode struct {
	*receiver.Receiver
}

type derivedResponse struct {
	Baseline  float64 `json:"baseline"`
	Reference float64 `json:"reference"`
	Reading   float64 `json:"reading"`
	Value     float64 `json:"value"`
}

func (n ReceiverNode) Value() (interface{}, bool) {
	d, ok := n.State().Derived()
	if !ok {
		return nil, false
	}
	return derivedResponse{Baseline: d.Baseline, Reference: d.Reference, Reading: d.Reading, Value: d.Value}, true
}

// TransmitterNode reports the baseline of a transmitter and forwards recalibration requests
type TransmitterNode struct {
	*transmitter.Transmitter
}

func (n TransmitterNode) Value() (interface{}, bool) {
	return map[string]float64{"baseline": n.Baseline()}, true
}
