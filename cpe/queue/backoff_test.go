package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {

	base := 30 * time.Second
	max := 30 * time.Minute

	assert.Equal(t, 30*time.Second, Backoff(base, max, 1))
	assert.Equal(t, time.Minute, Backoff(base, max, 2))
	assert.Equal(t, 2*time.Minute, Backoff(base, max, 3))
	assert.Equal(t, 16*time.Minute, Backoff(base, max, 6))
	assert.Equal(t, max, Backoff(base, max, 7))
	assert.Equal(t, max, Backoff(base, max, 100))
}

func TestBackoff_strictlyIncreasingUntilCap(t *testing.T) {

	base := 30 * time.Second
	max := 30 * time.Minute

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := Backoff(base, max, attempt)
		if prev < max {
			assert.Greaterf(t, d, prev, "attempt %d", attempt)
		} else {
			assert.Equal(t, max, d)
		}
		prev = d
	}
}

func TestBackoff_attemptFloor(t *testing.T) {

	assert.Equal(t, time.Second, Backoff(time.Second, time.Minute, 0))
	assert.Equal(t, time.Second, Backoff(time.Second, time.Minute, -3))
}
