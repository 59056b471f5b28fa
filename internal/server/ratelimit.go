package server

import (
	"sync"
	"time"
)

// RateLimiter allows each client a fixed number of requests per minute.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter allowing perMinute requests per client.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{perMinute: perMinute, clients: make(map[string]*window)}
}

// Allow records a request from client at now. When the budget is spent it
// returns false and the time until the window resets.
func (rl *RateLimiter) Allow(client string, now time.Time) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[client]
	if !ok || now.Sub(w.start) >= time.Minute {
		w = &window{start: now}
		rl.clients[client] = w
		rl.prune(now)
	}
	if w.count >= rl.perMinute {
		return time.Minute - now.Sub(w.start), false
	}
	w.count++
	return 0, true
}

// prune drops expired windows so idle clients do not accumulate.
func (rl *RateLimiter) prune(now time.Time) {
	for c, w := range rl.clients {
		if now.Sub(w.start) >= time.Minute {
			delete(rl.clients, c)
		}
	}
}
