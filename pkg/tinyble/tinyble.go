// Package tinyble implements the link contracts on tinygo.org/x/bluetooth,
// which drives BlueZ over D-Bus on Linux and the SoftDevice or HCI stacks on boards.
package tinyble

import (
	"time"

	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/pkg/errors"
	"tinygo.org/x/bluetooth"
)

// Config is the GATT layout and advertising setup of the adapter
type Config struct {
	Name                string
	Service             string
	Characteristic      string
	AdvertisingInterval time.Duration
}

// DefaultConfig returns the layout of the vane link
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		Service:             util.MainServiceUUID,
		Characteristic:      util.VaneCharUUID,
		AdvertisingInterval: util.AdvertisingInterval,
	}
}

func (c Config) uuids() (bluetooth.UUID, bluetooth.UUID, error) {
	svc, err := bluetooth.ParseUUID(c.Service)
	if err != nil {
		return bluetooth.UUID{}, bluetooth.UUID{}, errors.Wrap(err, "service uuid issue")
	}
	char, err := bluetooth.ParseUUID(c.Characteristic)
	if err != nil {
		return bluetooth.UUID{}, bluetooth.UUID{}, errors.Wrap(err, "characteristic uuid issue")
	}
	return svc, char, nil
}
