package input

import (
	"math"
	"time"
)

// tokenBucket refills at rate tokens per second up to a burst of one
// second's worth. Withdrawals are partial: take reports how many of
// the requested tokens were granted.
type tokenBucket struct {
	rate     float64
	burst    float64
	tokens   float64
	lastFill time.Time
	now      func() time.Time
}

func newTokenBucket(perSecond int, now func() time.Time) *tokenBucket {
	if now == nil {
		now = time.Now
	}
	r := float64(perSecond)
	return &tokenBucket{
		rate:     r,
		burst:    r,
		tokens:   r,
		lastFill: now(),
		now:      now,
	}
}

func (b *tokenBucket) take(n int) int {
	t := b.now()
	b.tokens = math.Min(b.burst, b.tokens+b.rate*t.Sub(b.lastFill).Seconds())
	b.lastFill = t
	granted := n
	if float64(granted) > b.tokens {
		granted = int(b.tokens)
	}
	b.tokens -= float64(granted)
	return granted
}
