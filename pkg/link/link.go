// Package link holds the transport contracts shared by the BLE backends and the link state machines
package link

import (
	"context"
	"time"

	"github.com/Krajiyah/vanelink/pkg/util"
	mapset "github.com/deckarep/golang-set"
	"github.com/pkg/errors"
)

var (
	// ErrNotConnected means the peer dropped, possibly before the disconnect event surfaced
	ErrNotConnected = errors.New("peer is not connected")
	// ErrNoDevice means a scan pass ended without a matching advertisement
	ErrNoDevice = errors.New("no device found")
	// ErrAttributeNotFound means the expected service or characteristic is missing on the peer
	ErrAttributeNotFound = errors.New("attribute not found")
	// ErrAdvertisingStopped means advertising ended without a central connecting
	ErrAdvertisingStopped = errors.New("advertising stopped")
)

// IsNotConnected reports whether err means the peer is gone
func IsNotConnected(err error) bool {
	return err != nil && errors.Cause(err) == ErrNotConnected
}

// Session is one connection accepted by the peripheral role
type Session interface {
	ID() string
	Peer() string
	Connected() bool
	// Done is closed once the peer disconnected or the session was closed
	Done() <-chan struct{}
	// Notify publishes a frame: it becomes the characteristic value and is pushed to subscribers
	Notify([]byte) error
	Close() error
}

// Peripheral advertises the service and accepts one central at a time
type Peripheral interface {
	// Advertise blocks until a central connects
	Advertise(ctx context.Context) (Session, error)
	Close() error
}

// Peer is an advertisement seen while scanning
type Peer interface {
	Name() string
	Addr() string
	Services() []string
	RSSI() int
}

// Link is one connection opened by the central role
type Link interface {
	ID() string
	Peer() string
	// Discover resolves the service and characteristic of the vane stream
	Discover(ctx context.Context, timeout time.Duration) error
	Read(ctx context.Context, timeout time.Duration) ([]byte, error)
	Connected() bool
	Disconnect() error
}

// Central scans for and connects to the transmitter
type Central interface {
	// Scan returns the first advertisement accepted by match, or ErrNoDevice after duration
	Scan(ctx context.Context, duration time.Duration, match Matcher) (Peer, error)
	Connect(ctx context.Context, peer Peer, timeout time.Duration) (Link, error)
	Close() error
}

// Matcher selects the peer to connect to
type Matcher func(Peer) bool

// MatchNameAndService accepts peers advertising exactly name and the service uuid
func MatchNameAndService(name string, service string) Matcher {
	want := util.ShortUUID(service)
	return func(p Peer) bool {
		if p.Name() != name {
			return false
		}
		advertised := mapset.NewSet()
		for _, s := range p.Services() {
			advertised.Add(util.ShortUUID(s))
		}
		return advertised.Contains(want)
	}
}
