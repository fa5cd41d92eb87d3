// Package limiter throttles submissions per client.
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/metrics"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client a token-bucket rate of submissions and caps
// how many run at once across all clients.
type RateLimiter struct {
	rate          rate.Limit
	burst         int
	maxConcurrent int

	mu      sync.Mutex
	clients map[string]*client
	running int
	now     func() time.Time
}

// New creates a RateLimiter allowing perMinute submissions per client with
// the given burst. maxConcurrent <= 0 disables the concurrency cap.
func New(perMinute float64, burst, maxConcurrent int) *RateLimiter {
	return &RateLimiter{
		rate:          rate.Limit(perMinute / 60),
		burst:         burst,
		maxConcurrent: maxConcurrent,
		clients:       make(map[string]*client),
		now:           time.Now,
	}
}

// Allow reports whether key may start a submission now. Every true result
// must be paired with a call to Done.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = c
	}
	now := rl.now()
	c.lastSeen = now

	if rl.maxConcurrent > 0 && rl.running >= rl.maxConcurrent {
		metrics.RateLimitHits.Inc()
		return false
	}
	if !c.limiter.AllowN(now, 1) {
		metrics.RateLimitHits.Inc()
		return false
	}
	rl.running++
	return true
}

// Done releases a concurrency slot taken by Allow.
func (rl *RateLimiter) Done() {
	rl.mu.Lock()
	if rl.running > 0 {
		rl.running--
	}
	rl.mu.Unlock()
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many submissions, slow down"}` + "\n"))
			return
		}
		defer rl.Done()

		next.ServeHTTP(w, r)
	})
}

// Sweep forgets clients idle for longer than idle.
func (rl *RateLimiter) Sweep(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	for key, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// StartCleanup sweeps idle clients every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Sweep(interval)
			}
		}
	}()
}

// ClientKey identifies the client behind a request by its remote host.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
