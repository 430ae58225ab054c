package util

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by Timeout when fn did not finish in time
var ErrTimeout = errors.New("Timeout")

// Timeout is a utility method used to timeout function calls after the specified interval.
// fn keeps running in the background after a timeout, its result is dropped.
func Timeout(fn func() error, duration time.Duration) error {
	return TimeoutContext(context.Background(), fn, duration)
}

// TimeoutContext is Timeout that also gives up when ctx is done, returning ctx.Err()
func TimeoutContext(ctx context.Context, fn func() error, duration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := make(chan error, 1)
	go func() {
		ch <- CatchErrs(fn)
	}()
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case err := <-ch:
		return err
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsTimeout reports whether err (or its cause) is a timeout
func IsTimeout(err error) bool {
	return err != nil && errors.Cause(err) == ErrTimeout
}
