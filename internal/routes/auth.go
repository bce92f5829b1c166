package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/auth"
)

// RegisterAuthRoutes mounts PIN login and token refresh.
func RegisterAuthRoutes(router fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	router.Post("/login-with-pin/", rateLimiter, h.LoginWithPIN)
	router.Post("/token/refresh/", h.Refresh)
}
