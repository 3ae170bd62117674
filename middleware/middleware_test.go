package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"welfare-receipts-backend/token"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(t *testing.T) (*fiber.App, token.Maker) {
	t.Helper()
	maker, err := token.NewPasetoMaker("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewPasetoMaker: %v", err)
	}
	app := fiber.New()
	app.Use(ProtectedRoute(&AppContext{PasetoMaker: maker, Ctx: context.Background()}))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(ActingIdentity(c))
	})
	app.Get("/role", func(c *fiber.Ctx) error {
		return c.SendString(string(ActingActor(c).Role))
	})
	return app, maker
}

func TestProtectedRouteAcceptsBearerAndCookie(t *testing.T) {
	app, maker := newTestApp(t)
	tok, err := maker.CreateToken(token.Actor{Identity: "alice", Role: token.RoleBoardChecker}, time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	bearer := httptest.NewRequest("GET", "/whoami", nil)
	bearer.Header.Set("Authorization", "Bearer "+tok)
	cookie := httptest.NewRequest("GET", "/whoami", nil)
	cookie.Header.Set("Cookie", "access_token="+tok)

	for name, req := range map[string]*http.Request{"bearer": bearer, "cookie": cookie} {
		t.Run(name, func(t *testing.T) {
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != fiber.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != "alice" {
				t.Fatalf("expected identity alice, got %q", body)
			}
		})
	}
}

func TestProtectedRouteRejectsMissingOrInvalidToken(t *testing.T) {
	app, _ := newTestApp(t)

	missing := httptest.NewRequest("GET", "/whoami", nil)
	resp, err := app.Test(missing)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	bad := httptest.NewRequest("GET", "/whoami", nil)
	bad.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(bad)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.StatusCode)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"Bearer":      "",
		"":            "",
	}
	for header, want := range cases {
		if got := bearerToken(header); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestActingActorCarriesRole(t *testing.T) {
	app, maker := newTestApp(t)
	tok, err := maker.CreateToken(token.Actor{Identity: "employer@example.com", Role: token.RoleEmployer}, time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/role", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(token.RoleEmployer) {
		t.Fatalf("expected role EMPLOYER, got %q", body)
	}
}

func TestIsRevokedWithoutRedis(t *testing.T) {
	payload, err := token.NewPayload(token.Actor{Identity: "alice", Role: token.RoleOperator}, time.Minute)
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	revoked, err := (&AppContext{}).IsRevoked(context.Background(), payload)
	if err != nil || revoked {
		t.Fatalf("expected no revocation without redis, got %v %v", revoked, err)
	}
}

func TestAllowedOrigins(t *testing.T) {
	cases := map[string]string{
		"":                                      defaultCorsOrigin,
		"*":                                     defaultCorsOrigin,
		"https://a.example/, https://b.example": "https://a.example,https://b.example",
		" https://a.example ,,*":                "https://a.example",
	}
	for raw, want := range cases {
		if got := AllowedOrigins(raw); got != want {
			t.Errorf("AllowedOrigins(%q) = %q, want %q", raw, got, want)
		}
	}
}
