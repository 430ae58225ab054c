package util

import "time"

// CycleBudget spreads latency over window send cycles so the whole
// smoothing window refreshes roughly once per latency period.
func CycleBudget(latency time.Duration, window int) time.Duration {
	if window <= 0 {
		return latency
	}
	return latency / time.Duration(window)
}

// Remaining returns how long to sleep after a cycle that took elapsed,
// clamped to zero when the cycle overran its budget.
func Remaining(budget time.Duration, elapsed time.Duration) time.Duration {
	if elapsed >= budget {
		return 0
	}
	return budget - elapsed
}
