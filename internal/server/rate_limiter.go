// Package server implements per-session throttling on top of a token bucket
// so one client cannot flood a room.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter struct {
	lim *rate.Limiter
}

// newRateLimiter allows bursts of capacity lines and refills capacity
// tokens every interval.
func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	every := rate.Every(interval / time.Duration(capacity))
	return &rateLimiter{lim: rate.NewLimiter(every, capacity)}
}

func (rl *rateLimiter) allow() bool {
	return rl.lim.Allow()
}
