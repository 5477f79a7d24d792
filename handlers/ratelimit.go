package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	limit       rate.Limit
	burst       int
	resetEvery  time.Duration
	lastCleanup time.Time
	trustProxy  bool
	log         *zap.Logger
}

// NewIPRateLimiter allows perMinute requests per IP with the given burst.
// Forwarding headers name the client only when trustProxy is set.
func NewIPRateLimiter(perMinute float64, burst int, trustProxy bool, logger *zap.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		limit:       rate.Limit(perMinute / 60),
		burst:       burst,
		resetEvery:  time.Hour,
		lastCleanup: time.Now(),
		trustProxy:  trustProxy,
		log:         logger,
	}
}

func (l *IPRateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Drop every bucket once an hour so the map doesn't grow without bound
	if time.Since(l.lastCleanup) > l.resetEvery {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

func (l *IPRateLimiter) Allow(ip string) bool {
	return l.limiter(ip).Allow()
}

// Limit wraps next with the per-IP check.
func (l *IPRateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r, l.trustProxy)
		if !l.Allow(ip) {
			rateLimited.Inc()
			l.log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
			writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next(w, r)
	}
}

// ClientIP extracts the client IP from an HTTP request. Behind a trusted
// proxy it checks X-Forwarded-For and X-Real-IP first. Otherwise those
// headers are caller controlled and only RemoteAddr is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if !trustProxy {
		return remoteIP(r)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
