package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/identity"
)

// UserIDLocal is the fiber.Ctx locals key holding the authenticated user ID.
const UserIDLocal = "user_id"

// Handler exposes auth endpoints for login/refresh/logout.
type Handler struct {
	ids    *identity.Service
	svc    *Service
	logger *slog.Logger
}

func NewHandler(ids *identity.Service, svc *Service, logger *slog.Logger) *Handler {
	return &Handler{ids: ids, svc: svc, logger: logger}
}

type loginRequest struct {
	PhoneNumber string `json:"phone_number"`
	PIN         string `json:"pin"`
}

// LoginWithPIN validates phone and PIN and returns a token pair.
func (h *Handler) LoginWithPIN(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), req.PhoneNumber, req.PIN)
	if err != nil {
		return identity.HTTPError(err)
	}
	access, refresh, err := h.svc.Issue(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not issue tokens")
	}
	h.logger.Info("auth.login completed", slog.String("user_id", user.ID))
	return c.Status(http.StatusOK).JSON(identity.AuthResponse{
		Message:    "Login successful",
		UserStatus: user.Status,
		Access:     access,
		Refresh:    refresh,
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, err := h.svc.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access": token})
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals(UserIDLocal).(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Logged out"})
}
