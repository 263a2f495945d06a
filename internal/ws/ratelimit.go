package ws

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const sweepInterval = 5 * time.Minute

type visitor struct {
	connections int
	tokens      int
	lastRefill  time.Time
}

// IPRateLimiter tracks per-IP connection counts and message rates.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	clock    clockwork.Clock

	maxConnsPerIP int
	msgRate       int
	msgWindow     time.Duration
}

// NewIPRateLimiter creates a rate limiter allowing maxConnsPerIP simultaneous
// connections and msgRate messages per msgWindow for every IP.
func NewIPRateLimiter(clock clockwork.Clock, maxConnsPerIP, msgRate int, msgWindow time.Duration) *IPRateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IPRateLimiter{
		visitors:      make(map[string]*visitor),
		clock:         clock,
		maxConnsPerIP: maxConnsPerIP,
		msgRate:       msgRate,
		msgWindow:     msgWindow,
	}
}

// ConnectAllowed checks if an IP can open a new connection and, if so,
// counts it.
func (rl *IPRateLimiter) ConnectAllowed(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &visitor{
			connections: 1,
			tokens:      rl.msgRate,
			lastRefill:  rl.clock.Now(),
		}
		return true
	}
	if v.connections >= rl.maxConnsPerIP {
		return false
	}
	v.connections++
	return true
}

// Disconnect decrements the connection count for an IP.
func (rl *IPRateLimiter) Disconnect(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		return
	}
	if v.connections > 0 {
		v.connections--
	}
}

// MessageAllowed takes a token from the IP's bucket. Buckets refill msgRate
// tokens per elapsed msgWindow.
func (rl *IPRateLimiter) MessageAllowed(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	v, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &visitor{tokens: rl.msgRate - 1, lastRefill: now}
		return true
	}

	if elapsed := now.Sub(v.lastRefill); elapsed >= rl.msgWindow {
		windows := int(elapsed / rl.msgWindow)
		v.tokens = min(rl.msgRate, v.tokens+windows*rl.msgRate)
		v.lastRefill = v.lastRefill.Add(time.Duration(windows) * rl.msgWindow)
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// Run drops idle visitors periodically until ctx is done.
func (rl *IPRateLimiter) Run(ctx context.Context) {
	ticker := rl.clock.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.sweep()
		}
	}
}

func (rl *IPRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.connections <= 0 {
			delete(rl.visitors, ip)
		}
	}
}

// RealIP extracts the client IP, preferring the first X-Forwarded-For hop.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if comma := strings.Index(xff, ","); comma > 0 {
			return strings.TrimSpace(xff[:comma])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
