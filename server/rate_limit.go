package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/ses-client-auth/internal/config"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 5 * time.Minute

type limiterBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter is a token bucket per client IP. A nil limiter allows everything.
type ipRateLimiter struct {
	perSecond rate.Limit
	burst     int
	buckets   map[string]*limiterBucket
	lastSweep time.Time
	lock      sync.Mutex
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		buckets:   make(map[string]*limiterBucket),
		lastSweep: time.Now(),
	}
}

func (l *ipRateLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	if ip == "" {
		ip = "unknown"
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &limiterBucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// clientIP is the peer address unless the peer is a trusted proxy, in which case
// X-Forwarded-For is walked from the right and the first untrusted hop is the client.
func clientIP(r *http.Request, trusted config.TrustedProxies) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !trusted.Contains(peer) {
		return peer
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if net.ParseIP(hop) == nil {
			// Garbage in the chain: stop at the last trusted hop.
			return peer
		}
		if !trusted.Contains(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}
