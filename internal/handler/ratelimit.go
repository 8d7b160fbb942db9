package handler

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ipLimiter keeps one token bucket per client IP. Idle buckets expire.
type ipLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.Cache
}

// newIPLimiter allows perSecond requests per IP with the given burst.
// A non-positive rate disables limiting.
func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: cache.New(15*time.Minute, 5*time.Minute),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	if v, ok := l.buckets.Get(ip); ok {
		l.buckets.SetDefault(ip, v)
		return v.(*rate.Limiter).Allow()
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.buckets.Add(ip, lim, cache.DefaultExpiration); err != nil {
		// Another request created the bucket first.
		if v, ok := l.buckets.Get(ip); ok {
			lim = v.(*rate.Limiter)
		}
	}
	return lim.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit rejects requests above the per-IP login rate with 429.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !h.limiter.allow(ip) {
			slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, "ErrTooManyRequests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
