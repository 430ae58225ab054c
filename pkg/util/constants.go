package util

import "time"

const (
	// TransmitterName is the local name advertised by the sensing node
	TransmitterName = "TRANSMITTER"
	// ReceiverName is the default local name of the consuming node
	ReceiverName = "RECEIVER"
	// MainServiceUUID represents the environmental sensing service (0x181A) carrying the vane stream
	MainServiceUUID = "181A"
	// VaneCharUUID represents the characteristic (0x2A6E) the transmitter notifies frames on and the receiver reads
	VaneCharUUID = "2A6E"
	// MTU is the ATT MTU requested by the receiver, a frame is always far smaller
	MTU = 64
)

const (
	// AdvertisingInterval is the interval between advertising events
	AdvertisingInterval = 20 * time.Millisecond
	// ScanDuration bounds a single scan pass of the receiver
	ScanDuration = 5 * time.Second
	// ScanInterval and ScanWindow are the active scan parameters of the receiver
	ScanInterval = 30 * time.Millisecond
	ScanWindow   = 30 * time.Millisecond
	// ConnectTimeout bounds a connection attempt of the receiver
	ConnectTimeout = 10 * time.Second
	// DiscoveryTimeout bounds service and characteristic discovery
	DiscoveryTimeout = 5 * time.Second
	// ReadTimeout bounds a single characteristic read
	ReadTimeout = 5 * time.Second
	// ReceivePacing is the delay between two successful reads of the receiver
	ReceivePacing = 500 * time.Millisecond
	// SendLatency is the time budget the transmitter spreads over one smoothing window
	SendLatency = 250 * time.Millisecond
	// SmoothingWindow is the number of raw samples averaged by the transmitter
	SmoothingWindow = 10
	// ReceiverWindow is the rolling average capacity used by the receiver
	ReceiverWindow = 10
	// SettleTime is the default rise time of the excitation pin before sampling
	SettleTime = 1 * time.Millisecond
	// DebounceWindow is the minimum spacing between two accepted recalibration edges
	DebounceWindow = time.Second
)
