package util

import (
	"context"
	"strings"
	"time"
)

// UuidEqualStr compares two uuid strings ignoring case, dashes and 16/128-bit form
func UuidEqualStr(a string, b string) bool {
	return ShortUUID(a) == ShortUUID(b)
}

// AddrEqualAddr compares two addresses ignoring case
func AddrEqualAddr(a string, b string) bool {
	return strings.ToUpper(a) == strings.ToUpper(b)
}

// Sleep waits for d or until ctx is done, whichever comes first.
// It returns false when ctx ended the wait.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

const bluetoothBaseSuffix = "00001000800000805f9b34fb"

// ShortUUID normalizes a uuid string: dashes removed, lower case, and uuids on the
// Bluetooth base reduced to their 16-bit form so "181A" and "0000181a-0000-1000-8000-00805f9b34fb" compare equal.
func ShortUUID(s string) string {
	u := strings.ToLower(strings.Replace(s, "-", "", -1))
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, bluetoothBaseSuffix) {
		return u[4:8]
	}
	return u
}
