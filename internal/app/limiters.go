package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/onestop-itsm/internal/config"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/bissquit/onestop-itsm/internal/pkg/ratelimit"
)

const apiLimiterName = "api"

type limiters struct {
	login ratelimit.Limiter
	api   ratelimit.Limiter // nil when API throttling is off

	redis []*ratelimit.RedisLimiter
}

// newLimiters builds the login and API limiters. Buckets live in Redis when
// an address is configured so that replicas share them.
func newLimiters(ctx context.Context, cfg config.RateLimitConfig) *limiters {
	l := &limiters{}

	build := func(policy ratelimit.Policy) ratelimit.Limiter {
		if cfg.RedisAddr == "" {
			return ratelimit.NewMemoryLimiter(policy)
		}
		rl := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, policy)
		l.redis = append(l.redis, rl)
		return rl
	}

	l.login = build(ratelimit.Policy{PerMinute: cfg.LoginPerMinute, Burst: cfg.LoginBurst})
	if cfg.APIPerMinute > 0 {
		l.api = build(ratelimit.Policy{PerMinute: cfg.APIPerMinute, Burst: cfg.APIBurst})
	}

	if len(l.redis) > 0 {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := l.redis[0].Ping(pingCtx); err != nil {
			slog.Warn("redis rate limiter unreachable, requests will not be throttled until it recovers",
				"addr", cfg.RedisAddr,
				"error", err,
			)
		}
	}
	return l
}

func (l *limiters) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, rl := range l.redis {
		errs = append(errs, rl.Close())
	}
	return errors.Join(errs...)
}

// viewerKey throttles signed-in users by id and falls back to the client
// address.
func viewerKey(r *http.Request) string {
	if id := httputil.GetUserID(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + ratelimit.ClientIP(r)
}
