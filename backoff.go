package mqttws

import (
	"math/rand/v2"
	"time"
)

// backoff produces reconnect delays that double on every attempt. The
// current value is moved by a random amount within jitter times half of it
// and clamped to [0, max] before it is handed out.
type backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64
	current time.Duration
	rand    func() float64
}

func newBackoff(initial, maxDelay time.Duration, jitter float64) *backoff {
	return &backoff{
		initial: initial,
		max:     maxDelay,
		jitter:  jitter,
		current: initial,
		rand:    rand.Float64,
	}
}

// Next returns the delay for the upcoming attempt.
func (b *backoff) Next() time.Duration {
	spread := float64(b.current-b.current/2) * b.jitter
	b.current += time.Duration(b.rand()*spread - spread/2)

	switch {
	case b.current < 0:
		b.current = 0
	case b.current > b.max:
		b.current = b.max
	}

	delay := b.current
	b.current *= 2
	return delay
}

// Reset restores the initial delay after a successful connection.
func (b *backoff) Reset() {
	b.current = b.initial
}
