package realtime

import (
	"math/rand/v2"
	"time"
)

// backoff yields exponentially growing, jittered reconnect delays.
type backoff struct {
	min, max time.Duration
	attempt  int
}

func (b *backoff) next() time.Duration {
	d := b.min << b.attempt
	if d <= 0 || d > b.max {
		d = b.max
	} else {
		b.attempt++
	}
	// Full jitter over the upper half keeps a floor of d/2.
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}

func (b *backoff) reset() {
	b.attempt = 0
}
