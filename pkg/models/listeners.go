package models

// TransmitterListener receives the events of the peripheral role
type TransmitterListener interface {
	OnStatusChanged(LinkStatus)
	OnConnected(session string, peer string)
	OnDisconnected(session string)
	OnRecalibrated(baseline float64)
	OnInternalError(error)
}

// ReceiverListener receives the events of the central role
type ReceiverListener interface {
	OnStatusChanged(LinkStatus)
	OnConnected(session string, peer string)
	OnDisconnected(session string)
	OnValue(Derived)
	OnInternalError(error)
}

// Derived is the physical value reconstructed by the receiver
type Derived struct {
	Baseline  float64
	Reference float64
	Reading   float64
	Value     float64
}
