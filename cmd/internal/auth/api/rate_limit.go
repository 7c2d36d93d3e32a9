package authapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles login attempts with fixed-window counters in redis,
// one window per client IP and one per login identifier. A nil limiter or a
// limiter without a redis client allows everything; redis outages fail open
// so login availability never depends on redis.
type LoginLimiter struct {
	rdb *redis.Client
}

func NewLoginLimiter(rdb *redis.Client) *LoginLimiter {
	if rdb == nil {
		return nil
	}
	return &LoginLimiter{rdb: rdb}
}

// Allow counts one attempt against key and reports whether it is within
// max for the window. retryAfter is set only when blocked.
func (l *LoginLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (bool, time.Duration, error) {
	if l == nil || l.rdb == nil {
		return true, 0, nil
	}

	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, err
	}
	if n == 1 {
		// First hit opens the window.
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return true, 0, err
		}
	}
	if n <= int64(max) {
		return true, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return false, ttl, nil
}

func loginIPKey(ip string) string         { return fmt.Sprintf("login:ip:%s", ip) }
func loginIdentifierKey(id string) string { return fmt.Sprintf("login:id:%s", id) }

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
}
