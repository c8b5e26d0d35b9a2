package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/tradeportal/portal_auth/internal/token"
)

type stubAuthenticator map[string]token.Identity

func (s stubAuthenticator) Authenticate(raw string) (token.Identity, error) {
	id, ok := s[raw]
	if !ok {
		return token.Identity{}, errors.New("invalid")
	}
	return id, nil
}

func TestBearerAuth(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/me", BearerAuth(stubAuthenticator{"good": {UserID: 7, Email: "ayu@example.com"}}), func(c *fiber.Ctx) error {
		id, ok := UserID(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"user_id": id})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer good", fiber.StatusOK},
		{"lowercase scheme", "bearer good", fiber.StatusOK},
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic good", fiber.StatusUnauthorized},
		{"no token", "Bearer", fiber.StatusUnauthorized},
		{"unknown token", "Bearer forged", fiber.StatusUnauthorized},
	}
	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d got %d", tt.status, resp.StatusCode)
			}
			if resp.Header.Get(requestIDHeader) == "" {
				t.Fatal("expected request id header")
			}
			body, _ := io.ReadAll(resp.Body)
			if tt.status == fiber.StatusOK {
				if !strings.Contains(string(body), `"user_id":7`) {
					t.Fatalf("unexpected body %s", body)
				}
				return
			}
			bodies = append(bodies, string(body))
		})
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Fatalf("401 bodies differ: %q vs %q", bodies[0], b)
		}
	}
}
