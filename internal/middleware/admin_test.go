package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newAdminTestApp(token string) *fiber.App {
	app := fiber.New()
	app.Post("/admin/ping", AdminRequired(token), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestAdminRequired(t *testing.T) {
	app := newAdminTestApp("secret-token")

	req := httptest.NewRequest(http.MethodPost, "/admin/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", resp.StatusCode)
	}
}

func TestAdminRequiredDisabledWithoutToken(t *testing.T) {
	app := newAdminTestApp("")

	req := httptest.NewRequest(http.MethodPost, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 when admin token unset, got %d", resp.StatusCode)
	}
}
