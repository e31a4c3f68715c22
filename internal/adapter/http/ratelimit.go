package http

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxTrackedIPs caps the bucket map so an address-spoofing client cannot
// exhaust memory. New IPs past the cap are rejected until cleanup runs.
const maxTrackedIPs = 100000

// RateLimiter enforces a per-IP token bucket on the HTTP and MCP surfaces.
// Each client IP accrues rate tokens per second up to burst; a request
// spends one token or is rejected with 429.
type RateLimiter struct {
	rate  float64
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*tokenBucket
}

type tokenBucket struct {
	tokens   float64
	refilled time.Time
	lastSeen time.Time
}

// refill credits tokens for the time elapsed since the last refill,
// capped at burst.
func (b *tokenBucket) refill(now time.Time, rate float64, burst int) {
	b.tokens = math.Min(float64(burst), b.tokens+now.Sub(b.refilled).Seconds()*rate)
	b.refilled = now
	b.lastSeen = now
}

// NewRateLimiter creates a limiter with the given sustained rate
// (requests per second) and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:    rate,
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*tokenBucket),
	}
}

// Handler returns middleware that applies the limiter keyed by client IP.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, retryAfter, ok := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(time.Second).Unix(), 10))

		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take spends one token for the given IP. When the bucket is empty it
// reports how long until the next token accrues.
func (rl *RateLimiter) take(ip string) (remaining int, retryAfter time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.clients[ip]
	if !exists {
		if len(rl.clients) >= maxTrackedIPs {
			return 0, rl.tokenWait(1), false
		}
		b = &tokenBucket{tokens: float64(rl.burst), refilled: now}
		rl.clients[ip] = b
	}

	b.refill(now, rl.rate, rl.burst)
	if b.tokens < 1 {
		return 0, rl.tokenWait(1 - b.tokens), false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// tokenWait converts a token deficit into a wall-clock wait.
func (rl *RateLimiter) tokenWait(deficit float64) time.Duration {
	return time.Duration(deficit / rl.rate * float64(time.Second))
}

// StartCleanup spawns a goroutine that drops buckets idle longer than
// maxIdle, checking every interval. The returned function stops it.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for ip, b := range rl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// clientIP extracts the client IP from RemoteAddr. Proxy headers
// (X-Forwarded-For, X-Real-Ip) are not trusted here: a client could forge
// them to dodge the limit.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
