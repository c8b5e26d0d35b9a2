package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func statusOf(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	status, _ := post(t, app, "/limited", body, "")
	return status
}

func TestLoginRateLimitPerEmail(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	app := fiber.New()
	app.Post("/limited", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if got := statusOf(t, app, `{"email":"ayu@example.com"}`); got != fiber.StatusNoContent {
			t.Fatalf("attempt %d: expected %d got %d", i+1, fiber.StatusNoContent, got)
		}
	}
	if got := statusOf(t, app, `{"email":" AYU@example.com"}`); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, got)
	}
	if got := statusOf(t, app, `{"email":"other@example.com"}`); got != fiber.StatusNoContent {
		t.Fatalf("other subject should not be limited, got %d", got)
	}

	mr.FastForward(time.Minute + time.Second)
	if got := statusOf(t, app, `{"email":"ayu@example.com"}`); got != fiber.StatusNoContent {
		t.Fatalf("expected window reset, got %d", got)
	}
}

func TestOTPRateLimitSharesBucketAcrossSpellings(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	app := fiber.New()
	app.Post("/limited", OTPRateLimit(cache, 1), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	if got := statusOf(t, app, `{"phone":"081234567890"}`); got != fiber.StatusNoContent {
		t.Fatalf("first request: got %d", got)
	}
	req := httptest.NewRequest(fiber.MethodPost, "/limited", strings.NewReader(`{"phone":"+62 812 3456 7890","country_code":"62"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderRetryAfter) == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitWithoutRedisIsNoop(t *testing.T) {
	app := fiber.New()
	app.Post("/limited", LoginRateLimit(nil, 1), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 3; i++ {
		if got := statusOf(t, app, `{"email":"ayu@example.com"}`); got != fiber.StatusNoContent {
			t.Fatalf("expected pass-through, got %d", got)
		}
	}
}

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { cache.Close() })
	app := fiber.New()
	app.Post("/limited", LoginRateLimit(cache, 1), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	mr.Close()

	for i := 0; i < 2; i++ {
		if got := statusOf(t, app, `{"email":"ayu@example.com"}`); got != fiber.StatusNoContent {
			t.Fatalf("expected fail-open, got %d", got)
		}
	}
}

func TestRateLimitRestoresMissingExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	app := fiber.New()
	app.Post("/limited", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	// A counter left behind without a TTL, as after a failed EXPIRE.
	key := "rl:login:email:ayu@example.com"
	if err := mr.Set(key, "5"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	if got := statusOf(t, app, `{"email":"ayu@example.com"}`); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, got)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected the window to be restored, got ttl %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if got := statusOf(t, app, `{"email":"ayu@example.com"}`); got != fiber.StatusNoContent {
		t.Fatalf("expected lockout to end, got %d", got)
	}
}

func TestVerifyRateLimitWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	app := fiber.New()
	app.Post("/limited", VerifyRateLimit(cache, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if got := statusOf(t, app, `{"phone":"81234567890","code":"000000"}`); got != fiber.StatusNoContent {
			t.Fatalf("attempt %d: got %d", i+1, got)
		}
	}
	if got := statusOf(t, app, `{"phone":"081234567890","code":"000001"}`); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, got)
	}

	// Still limited after a minute; the window spans the code lifetime.
	mr.FastForward(time.Minute + time.Second)
	if got := statusOf(t, app, `{"phone":"81234567890","code":"000002"}`); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, got)
	}
	mr.FastForward(VerifyWindow)
	if got := statusOf(t, app, `{"phone":"81234567890","code":"000003"}`); got != fiber.StatusNoContent {
		t.Fatalf("expected window reset, got %d", got)
	}
}
