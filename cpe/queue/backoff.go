package queue

import "time"

// Backoff returns the delay before the given attempt may run again:
// base × 2^(attempt-1), capped at max. Deterministic so the gaps
// between consecutive NextRunAt values strictly increase until the cap.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
