package http

import "time"

// rateLimiter is a token bucket holding up to limit sends, refilled at limit
// per window. Each read loop owns its own limiter.
type rateLimiter struct {
	limit  float64
	window time.Duration
	tokens float64
	last   time.Time
	now    func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:  float64(limit),
		window: time.Minute,
		tokens: float64(limit),
		now:    time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := r.now()
	if !r.last.IsZero() {
		refill := now.Sub(r.last).Seconds() / r.window.Seconds() * r.limit
		r.tokens = min(r.limit, r.tokens+refill)
	}
	r.last = now
	if r.tokens < 1 {
		return false
	}
	r.tokens--
	return true
}
