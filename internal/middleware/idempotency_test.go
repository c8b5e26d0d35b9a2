package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tradeportal/portal_auth/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls int32
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/api/v1/auth/register", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user_id": n})
	})
	app.Post("/api/v1/auth/password/reset/confirm", func(c *fiber.Ctx) error {
		atomic.AddInt32(&calls, 1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "password_reset"})
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, path, body, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(payload)
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	app, calls := setupTestApp(t)

	for i := 0; i < 2; i++ {
		status, _ := post(t, app, "/api/v1/auth/register", `{}`, "")
		if status != fiber.StatusCreated {
			t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
		}
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", got)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	status, first := post(t, app, "/api/v1/auth/register", `{"email":"a@example.com"}`, "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// Second request should return the cached response without invoking handler again.
	status, second := post(t, app, "/api/v1/auth/register", `{"email":"a@example.com"}`, "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if second != first {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected one handler call, got %d", got)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(second), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	app, _ := setupTestApp(t)

	post(t, app, "/api/v1/auth/register", `{"email":"a@example.com"}`, "k1")
	status, _ := post(t, app, "/api/v1/auth/register", `{"email":"b@example.com"}`, "k1")
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected %d got %d", fiber.StatusUnprocessableEntity, status)
	}
}

func TestIdempotencyKeysAreScopedPerRoute(t *testing.T) {
	app, calls := setupTestApp(t)

	post(t, app, "/api/v1/auth/register", `{}`, "shared")
	status, body := post(t, app, "/api/v1/auth/password/reset/confirm", `{}`, "shared")
	if status != fiber.StatusOK || !strings.Contains(body, "password_reset") {
		t.Fatalf("unexpected replay across routes: %d %s", status, body)
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Fatalf("expected two handler calls, got %d", got)
	}
}

func TestIdempotencyNilCache(t *testing.T) {
	app := fiber.New()
	app.Use(Idempotency(nil, time.Minute, logging.Discard()))
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	status, _ := post(t, app, "/x", `{}`, "abc")
	if status != fiber.StatusNoContent {
		t.Fatalf("expected %d got %d", fiber.StatusNoContent, status)
	}
}

func TestIdempotencyReplayIsScopedToCaller(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls int32
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	bearer := BearerAuth(stubAuthenticator{
		"ayu":  {UserID: 1, Email: "ayu@example.com"},
		"budi": {UserID: 2, Email: "budi@example.com"},
	})
	app.Post("/api/v1/auth/password/change", bearer, func(c *fiber.Ctx) error {
		atomic.AddInt32(&calls, 1)
		return c.JSON(fiber.Map{"status": "password_changed"})
	})

	send := func(tok string) int {
		t.Helper()
		req := httptest.NewRequest(fiber.MethodPost, "/api/v1/auth/password/change", strings.NewReader(`{"current_password":"Secret123","new_password":"Fresh4567"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "change-1")
		if tok != "" {
			req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := send("ayu"); got != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, got)
	}
	if got := send(""); got != fiber.StatusUnauthorized {
		t.Fatalf("anonymous retry must not be replayed, got %d", got)
	}
	if got := send("forged"); got != fiber.StatusUnauthorized {
		t.Fatalf("bad token must not be replayed, got %d", got)
	}
	if got := send("budi"); got != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, got)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("each caller runs the handler once, got %d calls", got)
	}

	if got := send("ayu"); got != fiber.StatusOK {
		t.Fatalf("expected replay, got %d", got)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("same caller retry should replay, got %d calls", got)
	}
}
