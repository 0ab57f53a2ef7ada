package worker

import (
	"math/rand"
	"time"
)

// Backoff computes the delay before retry attempt n (1-based), doubling from
// Base up to Cap with jitter to spread retries across replicas.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter bool
}

func (b Backoff) Duration(attempt int) time.Duration {
	if attempt <= 1 {
		return b.jittered(b.Base)
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			d = b.Cap
			break
		}
	}
	return b.jittered(d)
}

func (b Backoff) jittered(d time.Duration) time.Duration {
	if !b.Jitter {
		return d
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
}
