package models

// LinkStatus is an enum for the states of both link state machines
type LinkStatus int

const (
	// Idle means no advertise or scan is in progress
	Idle LinkStatus = iota
	// Advertising means the transmitter waits for a central to connect
	Advertising
	// Scanning means the receiver looks for the transmitter
	Scanning
	// Connected means a session is active and frames flow
	Connected
)

func (s LinkStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Advertising:
		return "advertising"
	case Scanning:
		return "scanning"
	case Connected:
		return "connected"
	}
	return "unknown"
}
