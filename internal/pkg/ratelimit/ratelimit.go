// Package ratelimit throttles requests per key using token buckets.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/onestop-itsm/internal/pkg/ctxlog"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/bissquit/onestop-itsm/internal/pkg/metrics"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// RetryAfter is how long a rejected caller waits for the next token.
	RetryAfter() time.Duration
}

// Policy describes a token bucket.
type Policy struct {
	PerMinute int
	Burst     int
}

func (p Policy) perSecond() float64 {
	if p.PerMinute <= 0 {
		return 1
	}
	return float64(p.PerMinute) / 60.0
}

// RetryAfter returns the refill time of one token.
func (p Policy) RetryAfter() time.Duration {
	return time.Duration(float64(time.Second) / p.perSecond())
}

func (p Policy) burst() int {
	if p.Burst <= 0 {
		return 1
	}
	return p.Burst
}

// KeyFunc extracts the throttling key from a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Check consults the limiter for key and answers 429 Too Many Requests when
// the key is over its limit. It reports whether the request may proceed.
// Limiter failures are logged and the request is let through.
func Check(w http.ResponseWriter, r *http.Request, l Limiter, name, key string) bool {
	ok, err := l.Allow(r.Context(), name+":"+key)
	if err != nil {
		ctxlog.FromContext(r.Context()).Warn("rate limiter unavailable",
			"limiter", name,
			"error", err,
		)
		return true
	}
	if !ok {
		metrics.RateLimitRejections.WithLabelValues(name).Inc()
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(l.RetryAfter())))
		httputil.Error(w, http.StatusTooManyRequests, "too many requests")
		return false
	}
	return true
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Middleware applies Check to every request, keyed by key.
func Middleware(l Limiter, name string, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Check(w, r, l, name, key(r)) {
				next.ServeHTTP(w, r)
			}
		})
	}
}
