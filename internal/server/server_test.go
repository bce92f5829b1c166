package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/config"
	"github.com/negosyoko/nena/internal/logging"
	"github.com/negosyoko/nena/internal/validation"
)

func TestErrorHandlerBodies(t *testing.T) {
	app := NewApp(config.Config{AppName: "nena-test"}, logging.Discard())
	app.Get("/field", func(*fiber.Ctx) error { return validation.Field("pin", "PIN must be 4 to 6 digits.") })
	app.Get("/detail", func(*fiber.Ctx) error { return fiber.NewError(http.StatusBadRequest, "invalid otp") })
	app.Get("/boom", func(*fiber.Ctx) error { return errors.New("db exploded") })

	cases := []struct {
		path   string
		status int
		body   string
	}{
		{"/field", http.StatusBadRequest, `{"pin":["PIN must be 4 to 6 digits."]}`},
		{"/detail", http.StatusBadRequest, `{"detail":"invalid otp"}`},
		{"/boom", http.StatusInternalServerError, `{"detail":"internal server error"}`},
		{"/missing", http.StatusNotFound, `{"detail":"Cannot GET /missing"}`},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil))
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != tc.status || string(body) != tc.body {
			t.Fatalf("%s: got %d %s, want %d %s", tc.path, resp.StatusCode, body, tc.status, tc.body)
		}
	}
}
