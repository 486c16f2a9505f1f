// Package ratelimit throttles write requests per client with token buckets.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int           // requests per window
	Remaining  int           // whole tokens left in the bucket
	RetryAfter time.Duration // zero when allowed
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	window  time.Duration
	stop    chan struct{}
	once    sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows requests per window with the given burst.
//
// A zero requests value disables limiting.
func NewLimiter(requests int, window time.Duration, burst int) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		rate:    rate.Inf,
		burst:   max(burst, 1),
		window:  window,
		stop:    make(chan struct{}),
	}
	if requests > 0 {
		l.rate = rate.Limit(float64(requests) / window.Seconds())
	}
	go l.cleanupLoop()
	return l
}

// Allow consumes one token from key's bucket if one is available.
func (l *Limiter) Allow(key string) Result {
	now := time.Now()
	l.mu.Lock()
	c := l.clients[key]
	if c == nil {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	res := Result{Allowed: c.limiter.AllowN(now, 1)}
	if l.rate == rate.Inf {
		return res
	}
	res.Limit = int(math.Round(float64(l.rate) * l.window.Seconds()))
	res.Remaining = max(int(c.limiter.TokensAt(now)), 0)
	if !res.Allowed {
		res.RetryAfter = max(time.Duration(float64(time.Second)/float64(l.rate)), time.Second)
	}
	return res
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now().Add(-10 * time.Minute))
		case <-l.stop:
			return
		}
	}
}

// cleanup forgets clients idle since before and whose bucket refilled.
func (l *Limiter) cleanup(before time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if c.lastSeen.Before(before) && c.limiter.Tokens() >= float64(l.burst) {
			delete(l.clients, key)
		}
	}
}

// WriteHeaders sets the X-RateLimit-* headers, plus Retry-After when refused.
func WriteHeaders(w http.ResponseWriter, res Result) {
	if res.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
	}
}

// ClientKey returns the remote IP of r, without the port.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
