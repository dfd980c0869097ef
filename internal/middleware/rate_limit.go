package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rl:verify:"

// VerificationRateLimit limits verification requests per phone number (or
// client IP when the body has none) using a fixed one-minute Redis window.
// Without Redis, or when Redis fails, requests pass through.
func VerificationRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Phone string `json:"phone"`
		}
		if err := c.BodyParser(&req); err != nil {
			// The handler rejects the body; count the attempt against the client.
			logger.Debug("rate limit body unreadable", slog.Any("error", err))
		}
		subject := strings.Join(strings.Fields(req.Phone), "")
		if subject == "" {
			subject = c.IP()
		}

		ctx := c.UserContext()
		key := rateLimitPrefix + subject
		var incr *redis.IntCmd
		var ttl *redis.DurationCmd
		if _, err := cache.Pipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			ttl = p.TTL(ctx, key)
			return nil
		}); err != nil {
			logger.Warn("rate limit lookup failed", slog.Any("error", err))
			return c.Next()
		}

		window := ttl.Val()
		// A key without expiry would lock the subject out for good.
		if window <= 0 {
			if err := cache.Expire(ctx, key, time.Minute).Err(); err != nil {
				logger.Warn("rate limit expiry failed", slog.Any("error", err))
				cache.Del(ctx, key)
				return c.Next()
			}
			window = time.Minute
		}
		if incr.Val() > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds()+0.5)))
			return fiber.NewError(http.StatusTooManyRequests, "too many verification attempts, try again later")
		}
		return c.Next()
	}
}
