package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tradeportal/portal_auth/internal/phone"
)

// noExpiry is what TTL reports for a key that exists without an expiry.
const noExpiry = time.Duration(-1)

// VerifyWindow bounds code verification attempts; it matches the lifetime of
// a self-issued code.
const VerifyWindow = 10 * time.Minute

// KeyFunc derives the rate limit subject from a request.
type KeyFunc func(c *fiber.Ctx) string

// RateLimit counts requests per subject in fixed windows using Redis. Without
// Redis, or when Redis errors, requests are let through.
func RateLimit(cache *redis.Client, scope string, maxPerWindow int, window time.Duration, key KeyFunc) fiber.Handler {
	if maxPerWindow <= 0 {
		maxPerWindow = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		subject := key(c)
		if subject == "" {
			subject = "ip:" + c.IP()
		}
		redisKey := "rl:" + scope + ":" + subject

		ctx, cancel := context.WithTimeout(c.UserContext(), redisOpTimeout)
		defer cancel()
		cnt, err := cache.Incr(ctx, redisKey).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			// A counter without a TTL would lock the subject out for good.
			if err := cache.Expire(ctx, redisKey, window).Err(); err != nil {
				cache.Del(ctx, redisKey)
				return c.Next()
			}
		}
		if cnt > int64(maxPerWindow) {
			ttl, err := cache.TTL(ctx, redisKey).Result()
			switch {
			case err != nil:
			case ttl > 0:
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			case ttl == noExpiry:
				cache.Expire(ctx, redisKey, window)
			}
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}

// LoginRateLimit limits login attempts per e-mail address.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	return RateLimit(cache, "login", maxPerMin, time.Minute, EmailKey)
}

// OTPRateLimit limits verification code and reset OTP requests per phone number.
func OTPRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	return RateLimit(cache, "otp", maxPerMin, time.Minute, PhoneKey)
}

// VerifyRateLimit limits code and OTP verification attempts per phone number,
// covering registration and reset confirmation.
func VerifyRateLimit(cache *redis.Client, maxPerWindow int) fiber.Handler {
	return RateLimit(cache, "verify", maxPerWindow, VerifyWindow, PhoneKey)
}

// EmailKey reads the "email" field of a JSON body.
func EmailKey(c *fiber.Ctx) string {
	var req struct {
		Email string `json:"email"`
	}
	_ = c.BodyParser(&req)
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		return "email:" + email
	}
	return ""
}

// PhoneKey reads "phone" and "country_code" from a JSON body and normalizes
// them, so different spellings of one number share a bucket.
func PhoneKey(c *fiber.Ctx) string {
	var req struct {
		Phone       string `json:"phone"`
		CountryCode string `json:"country_code"`
	}
	_ = c.BodyParser(&req)
	number := phone.Normalize(req.Phone)
	if number == "" {
		return ""
	}
	cc, err := phone.NormalizeCountryCode(req.CountryCode)
	if err != nil {
		cc = phone.DefaultCountryCode
	}
	return "phone:" + phone.Full(cc, number)
}
