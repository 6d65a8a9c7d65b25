package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter keeps fixed-window counters in Redis. A limiter without a
// client lets every request through.
type RateLimiter struct {
	client *redis.Client
	prefix string
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, prefix: "storefront:ratelimit:"}
}

// Limit allows max requests per client IP within window for scope.
func (rl *RateLimiter) Limit(scope string, max int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.client == nil || max <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := rl.key(scope, c.ClientIP())

		count, err := rl.increment(ctx, key, window)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if count > int64(max) {
			rl.reject(c, key, window)
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprint(max))
		c.Header("X-RateLimit-Remaining", fmt.Sprint(int64(max)-count))
		c.Next()
	}
}

// LimitFailures only counts requests answered with 401, and clears the counter
// on a successful response. Used for login.
func (rl *RateLimiter) LimitFailures(scope string, max int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.client == nil || max <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := rl.key(scope, c.ClientIP())

		attempts, err := rl.client.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if attempts >= int64(max) {
			rl.reject(c, key, window)
			return
		}

		c.Next()

		switch status := c.Writer.Status(); {
		case status == http.StatusUnauthorized:
			if _, err := rl.increment(ctx, key, window); err != nil {
				log.Warn().Err(err).Str("scope", scope).Msg("could not record failed attempt")
			}
		case status >= 200 && status < 300:
			if err := rl.client.Del(ctx, key).Err(); err != nil {
				log.Warn().Err(err).Str("scope", scope).Msg("could not reset failed attempts")
			}
		}
	}
}

func (rl *RateLimiter) key(scope, ip string) string {
	return rl.prefix + scope + ":" + ip
}

func (rl *RateLimiter) increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func (rl *RateLimiter) reject(c *gin.Context, key string, window time.Duration) {
	ttl, err := rl.client.TTL(c.Request.Context(), key).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	minutes := int(ttl.Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	retryAfter := int(ttl.Seconds())

	log.Warn().Str("key", key).Msg("rate limit exceeded")
	c.Header("Retry-After", fmt.Sprint(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       fmt.Sprintf("Too many requests. Try again in %d minutes", minutes),
		"retry_after": retryAfter,
	})
}
