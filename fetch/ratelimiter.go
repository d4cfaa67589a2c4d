package fetch

import (
	"sync"
	"time"
)

const (
	// minRequestSpacing is the minimum interval between broker requests.
	minRequestSpacing = time.Millisecond * 150
	// maxRequestsPerMinute is the rolling per minute request cap.
	maxRequestsPerMinute = 180
)

// RateLimiter enforces the broker request budget. Acquire atomically checks
// and records a request slot; callers that are denied skip the request and
// retry on a later tick instead of blocking.
type RateLimiter struct {
	mtx sync.Mutex

	lastRequest  time.Time
	requestCount int
	windowReset  time.Time
}

// NewRateLimiter initializes a rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{}
}

// Acquire attempts to reserve a request slot at the provided time.
func (r *RateLimiter) Acquire(now time.Time) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if now.After(r.windowReset) {
		r.requestCount = 0
		r.windowReset = now.Add(time.Minute)
	}

	if !r.lastRequest.IsZero() && now.Sub(r.lastRequest) < minRequestSpacing {
		return false
	}
	if r.requestCount >= maxRequestsPerMinute {
		return false
	}

	r.lastRequest = now
	r.requestCount++

	return true
}
