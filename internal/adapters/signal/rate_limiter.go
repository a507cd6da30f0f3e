package signal

import "golang.org/x/time/rate"

// FrameLimiter caps inbound frames on one connection with a token bucket.
// A nil limiter allows everything.
type FrameLimiter struct {
	lim *rate.Limiter
}

// NewFrameLimiter returns nil when perSec is not positive.
func NewFrameLimiter(perSec float64, burst int) *FrameLimiter {
	if perSec <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &FrameLimiter{lim: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (fl *FrameLimiter) Allow() bool {
	if fl == nil {
		return true
	}
	return fl.lim.Allow()
}
