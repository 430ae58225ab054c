package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Krajiyah/vanelink/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("role", "receiver").Info("hello")
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "receiver", line["role"])
	assert.Equal(t, "hello", line["msg"])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("loud", "text")
	assert.Error(t, err)
	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestTransmitterListener(t *testing.T) {
	log, hook := test.NewNullLogger()
	l := TransmitterListener{Log: log}

	l.OnStatusChanged(models.Advertising)
	l.OnConnected("s1", "AA:BB")
	l.OnRecalibrated(1.25)
	l.OnInternalError(errors.New("boom"))

	entries := hook.AllEntries()
	require.Len(t, entries, 4)
	assert.Equal(t, models.Advertising, entries[0].Data["state"])
	assert.Equal(t, "AA:BB", entries[1].Data["peer"])
	assert.Equal(t, 1.25, entries[2].Data["baseline"])
	assert.Equal(t, logrus.ErrorLevel, entries[3].Level)
}

func TestReceiverListenersFanOut(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	var other recordingListener
	ls := ReceiverListeners{ReceiverListener{Log: log}, &other}

	ls.OnValue(models.Derived{Baseline: 1, Reference: 3.3, Reading: 1.5, Value: 0.5})
	ls.OnDisconnected("s1")

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, 0.5, hook.AllEntries()[0].Data["value"])
	assert.Equal(t, []float64{0.5}, other.values)
	assert.Equal(t, 1, other.disconnects)
}

type recordingListener struct {
	values      []float64
	disconnects int
}

func (r *recordingListener) OnStatusChanged(models.LinkStatus) {}
func (r *recordingListener) OnConnected(string, string)        {}
func (r *recordingListener) OnDisconnected(string)             { r.disconnects++ }
func (r *recordingListener) OnValue(d models.Derived)          { r.values = append(r.values, d.Value) }
func (r *recordingListener) OnInternalError(error)             {}
