package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/identity"
)

// RegisterIdentityRoutes mounts the signup flow.
func RegisterIdentityRoutes(router fiber.Router, h *identity.Handler) {
	router.Post("/register/", h.Register)
	router.Post("/resend-otp/", h.ResendOTP)
	router.Post("/verify-otp/", h.VerifyOTP)
	router.Post("/complete-profile/", h.CompleteProfile)
	router.Post("/set-pin/", h.SetPIN)
}
