package util

import (
	"fmt"

	"github.com/pkg/errors"
)

// CatchErrs runs fn and converts a panic raised inside it into an error.
// The HCI and BlueZ layers panic on some transport failures; link loops must survive them.
func CatchErrs(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch x := r.(type) {
			case error:
				err = errors.Wrap(x, "recovered panic")
			default:
				err = errors.New(fmt.Sprintf("recovered panic: %v", x))
			}
		}
	}()
	return fn()
}
