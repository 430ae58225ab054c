package ble

import (
	"time"

	"github.com/Krajiyah/vanelink/pkg/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	maxRetryAttempts = 5
	retryDelay       = 500 * time.Millisecond
)

func retry(log logrus.FieldLogger, method string, fn func() error) error {
	err := errors.New("not error")
	attempts := 0
	for err != nil && attempts < maxRetryAttempts {
		if attempts > 0 {
			log.WithError(err).WithField("attempt", attempts).Warnf("%s failed, retrying", method)
			time.Sleep(retryDelay)
		}
		attempts += 1
		err = util.CatchErrs(fn)
	}
	if err != nil {
		return errors.Wrap(err, method+" exceeded attempts")
	}
	return nil
}
