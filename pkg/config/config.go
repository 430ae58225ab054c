package config

import (
	"os"
	"time"

	"github.com/Krajiyah/vanelink/pkg/protocol"
	"github.com/Krajiyah/vanelink/pkg/receiver"
	"github.com/Krajiyah/vanelink/pkg/transmitter"
	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of one node, either role.
type Config struct {
	Node        NodeConfig        `yaml:"node"`
	BLE         BLEConfig         `yaml:"ble"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Transmitter TransmitterConfig `yaml:"transmitter"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Receiver    ReceiverConfig    `yaml:"receiver"`
	Protocol    ProtocolConfig    `yaml:"protocol"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Log         LogConfig         `yaml:"log"`
}

// NodeConfig names the node and picks the BLE stack.
type NodeConfig struct {
	Name     string `yaml:"name"`
	PeerName string `yaml:"peer_name"` // advertised name the receiver looks for
	Backend  string `yaml:"backend"`   // goble (raw HCI) or tinygo (BlueZ over D-Bus)
}

// BLEConfig contains the GATT layout and radio timings.
type BLEConfig struct {
	Service             string        `yaml:"service"`
	Characteristic      string        `yaml:"characteristic"`
	AdvertisingInterval time.Duration `yaml:"advertising_interval"`
	ScanInterval        time.Duration `yaml:"scan_interval"`
	ScanWindow          time.Duration `yaml:"scan_window"`
	ScanDuration        time.Duration `yaml:"scan_duration"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	DiscoveryTimeout    time.Duration `yaml:"discovery_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	ReceivePacing       time.Duration `yaml:"receive_pacing"`
}

// SensorConfig describes the transducer wiring.
type SensorConfig struct {
	Driver             string        `yaml:"driver"` // embd, rpio, serial or mock
	VRef               float64       `yaml:"vref"`
	FullScale          uint32        `yaml:"full_scale"`
	Settle             time.Duration `yaml:"settle"`
	ExcitationPin      int           `yaml:"excitation_pin"`
	MeasurementChannel int           `yaml:"measurement_channel"`
	ReferenceChannel   int           `yaml:"reference_channel"`
	SerialPort         string        `yaml:"serial_port"`
	BaudRate           int           `yaml:"baud_rate"`
}

// TransmitterConfig contains the send loop parameters.
type TransmitterConfig struct {
	SendLatency     time.Duration `yaml:"send_latency"`
	SmoothingWindow int           `yaml:"smoothing_window"`
	Slots           int           `yaml:"slots"` // length of the tagged round robin
}

// CalibrationConfig contains the recalibration button setup.
type CalibrationConfig struct {
	Button         bool          `yaml:"button"`
	ButtonPin      int           `yaml:"button_pin"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// ReceiverConfig contains the receiver side averaging.
type ReceiverConfig struct {
	SmoothingWindow int `yaml:"smoothing_window"`
}

// ProtocolConfig picks the wire dialect.
type ProtocolConfig struct {
	Dialect string `yaml:"dialect"`
}

// MetricsConfig contains the status server address; empty disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// MQTTConfig contains the derived value publisher; an empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// LogConfig contains the logger setup.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Name:     util.TransmitterName,
			PeerName: util.TransmitterName,
			Backend:  "goble",
		},
		BLE: BLEConfig{
			Service:             util.MainServiceUUID,
			Characteristic:      util.VaneCharUUID,
			AdvertisingInterval: util.AdvertisingInterval,
			ScanInterval:        util.ScanInterval,
			ScanWindow:          util.ScanWindow,
			ScanDuration:        util.ScanDuration,
			ConnectTimeout:      util.ConnectTimeout,
			DiscoveryTimeout:    util.DiscoveryTimeout,
			ReadTimeout:         util.ReadTimeout,
			ReceivePacing:       util.ReceivePacing,
		},
		Sensor: SensorConfig{
			Driver:             "embd",
			VRef:               3.3,
			FullScale:          65535,
			Settle:             util.SettleTime,
			ExcitationPin:      27,
			MeasurementChannel: 0,
			ReferenceChannel:   1,
			SerialPort:         "/dev/ttyACM0",
			BaudRate:           115200,
		},
		Transmitter: TransmitterConfig{
			SendLatency:     util.SendLatency,
			SmoothingWindow: util.SmoothingWindow,
			Slots:           protocol.DefaultSlots,
		},
		Calibration: CalibrationConfig{
			Button:         true,
			ButtonPin:      17,
			DebounceWindow: util.DebounceWindow,
		},
		Receiver: ReceiverConfig{
			SmoothingWindow: util.ReceiverWindow,
		},
		Protocol: ProtocolConfig{
			Dialect: string(protocol.Tagged),
		},
		Metrics: MetricsConfig{
			Listen: ":9100",
		},
		MQTT: MQTTConfig{
			Topic:    "vanelink/value",
			ClientID: "vanelink-receiver",
			QoS:      1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.ensureDefaults()

	return cfg, cfg.Validate()
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Node.Name == "" {
		c.Node.Name = def.Node.Name
	}
	if c.Node.PeerName == "" {
		c.Node.PeerName = def.Node.PeerName
	}
	if c.Node.Backend == "" {
		c.Node.Backend = def.Node.Backend
	}

	if c.BLE.Service == "" {
		c.BLE.Service = def.BLE.Service
	}
	if c.BLE.Characteristic == "" {
		c.BLE.Characteristic = def.BLE.Characteristic
	}
	durations := []struct {
		value *time.Duration
		def   time.Duration
	}{
		{&c.BLE.AdvertisingInterval, def.BLE.AdvertisingInterval},
		{&c.BLE.ScanInterval, def.BLE.ScanInterval},
		{&c.BLE.ScanWindow, def.BLE.ScanWindow},
		{&c.BLE.ScanDuration, def.BLE.ScanDuration},
		{&c.BLE.ConnectTimeout, def.BLE.ConnectTimeout},
		{&c.BLE.DiscoveryTimeout, def.BLE.DiscoveryTimeout},
		{&c.BLE.ReadTimeout, def.BLE.ReadTimeout},
		{&c.BLE.ReceivePacing, def.BLE.ReceivePacing},
		{&c.Sensor.Settle, def.Sensor.Settle},
		{&c.Transmitter.SendLatency, def.Transmitter.SendLatency},
		{&c.Calibration.DebounceWindow, def.Calibration.DebounceWindow},
	}
	for _, d := range durations {
		if *d.value == 0 {
			*d.value = d.def
		}
	}

	if c.Sensor.Driver == "" {
		c.Sensor.Driver = def.Sensor.Driver
	}
	if c.Sensor.VRef == 0 {
		c.Sensor.VRef = def.Sensor.VRef
	}
	if c.Sensor.FullScale == 0 {
		c.Sensor.FullScale = def.Sensor.FullScale
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.Transmitter.SmoothingWindow == 0 {
		c.Transmitter.SmoothingWindow = def.Transmitter.SmoothingWindow
	}
	if c.Transmitter.Slots == 0 {
		c.Transmitter.Slots = def.Transmitter.Slots
	}
	if c.Receiver.SmoothingWindow == 0 {
		c.Receiver.SmoothingWindow = def.Receiver.SmoothingWindow
	}
	if c.Protocol.Dialect == "" {
		c.Protocol.Dialect = def.Protocol.Dialect
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Node.Backend {
	case "goble", "tinygo":
	default:
		return errors.Errorf("unknown ble backend %q", c.Node.Backend)
	}
	switch c.Sensor.Driver {
	case "embd", "rpio", "serial", "mock":
	default:
		return errors.Errorf("unknown sensor driver %q", c.Sensor.Driver)
	}
	if _, err := protocol.ParseDialect(c.Protocol.Dialect); err != nil {
		return err
	}
	if c.Transmitter.SmoothingWindow < 1 || c.Receiver.SmoothingWindow < 1 {
		return errors.New("smoothing windows must hold at least one sample")
	}
	if c.Transmitter.Slots < 2 {
		return errors.New("transmitter slots must be at least 2")
	}
	if c.Sensor.MeasurementChannel == c.Sensor.ReferenceChannel && c.Sensor.Driver != "mock" {
		return errors.New("measurement and reference must use distinct converter channels")
	}
	if c.MQTT.QoS > 2 {
		return errors.Errorf("invalid mqtt qos %d", c.MQTT.QoS)
	}
	return nil
}

// Dialect returns the configured wire dialect.
func (c *Config) Dialect() protocol.Dialect {
	d, err := protocol.ParseDialect(c.Protocol.Dialect)
	if err != nil {
		return protocol.Tagged
	}
	return d
}

// TransmitterOptions maps the file onto the send loop settings.
func (c *Config) TransmitterOptions() transmitter.Config {
	opts := transmitter.DefaultConfig()
	opts.SendLatency = c.Transmitter.SendLatency
	opts.SmoothingWindow = c.Transmitter.SmoothingWindow
	opts.Slots = c.Transmitter.Slots
	opts.Dialect = c.Dialect()
	return opts
}

// ReceiverOptions maps the file onto the central link settings.
func (c *Config) ReceiverOptions() receiver.Config {
	opts := receiver.DefaultConfig()
	opts.PeerName = c.Node.PeerName
	opts.Service = c.BLE.Service
	opts.ScanDuration = c.BLE.ScanDuration
	opts.ConnectTimeout = c.BLE.ConnectTimeout
	opts.DiscoveryTimeout = c.BLE.DiscoveryTimeout
	opts.ReadTimeout = c.BLE.ReadTimeout
	opts.Pacing = c.BLE.ReceivePacing
	opts.Window = c.Receiver.SmoothingWindow
	opts.Dialect = c.Dialect()
	return opts
}
