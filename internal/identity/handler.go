package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// TokenIssuer mints an access/refresh pair for an authenticated user.
type TokenIssuer interface {
	Issue(user User) (access, refresh string, err error)
}

// Handler exposes the signup endpoints.
type Handler struct {
	service *Service
	tokens  TokenIssuer
	logger  *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{service: service, tokens: tokens, logger: logger}
}

type phoneRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

type completeProfileRequest struct {
	PhoneNumber  string `json:"phone_number"`
	SignupTicket string `json:"signup_ticket"`
	FirstName   string `json:"first_name"`
	MiddleName  string `json:"middle_name"`
	LastName    string `json:"last_name"`
}

type setPINRequest struct {
	PhoneNumber  string `json:"phone_number"`
	SignupTicket string `json:"signup_ticket"`
	PIN          string `json:"pin"`
}

// AuthResponse is the envelope shared by every auth endpoint.
type AuthResponse struct {
	Message      string `json:"message"`
	UserStatus   string `json:"user_status,omitempty"`
	IsLoginFlow  bool   `json:"is_login_flow,omitempty"`
	SignupTicket string `json:"signup_ticket,omitempty"`
	Access       string `json:"access,omitempty"`
	Refresh      string `json:"refresh,omitempty"`
}

// Register creates or resumes an account and sends an OTP.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Register(c.UserContext(), req.PhoneNumber)
	if err != nil {
		return HTTPError(err)
	}
	h.logger.Info("identity.register completed", slog.String("user_id", user.ID), slog.String("status", user.Status))
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "OTP sent"})
}

// ResendOTP replaces the pending OTP.
func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.ResendOTP(c.UserContext(), req.PhoneNumber); err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "OTP resent"})
}

// VerifyOTP answers with the account status so the client knows the next
// step. Accounts with a PIN continue as a login flow; the others get the
// signup ticket that complete-profile and set-pin require.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, ticket, err := h.service.VerifyOTP(c.UserContext(), req.PhoneNumber, req.OTP)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(AuthResponse{
		Message:      "OTP verified",
		UserStatus:   user.Status,
		IsLoginFlow:  user.Status == StatusPINSet,
		SignupTicket: ticket,
	})
}

// CompleteProfile stores the user's names.
func (h *Handler) CompleteProfile(c *fiber.Ctx) error {
	var req completeProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.CompleteProfile(c.UserContext(), req.PhoneNumber, req.SignupTicket, Profile{
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(AuthResponse{Message: "Profile completed", UserStatus: user.Status})
}

// SetPIN stores the PIN and signs the user in.
func (h *Handler) SetPIN(c *fiber.Ctx) error {
	var req setPINRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.SetPIN(c.UserContext(), req.PhoneNumber, req.SignupTicket, req.PIN)
	if err != nil {
		return HTTPError(err)
	}
	access, refresh, err := h.tokens.Issue(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "could not issue tokens")
	}
	h.logger.Info("identity.set_pin completed", slog.String("user_id", user.ID))
	return c.Status(http.StatusOK).JSON(AuthResponse{
		Message:    "PIN set",
		UserStatus: user.Status,
		Access:     access,
		Refresh:    refresh,
	})
}

// HTTPError maps service errors to fiber errors. Validation errors pass through so the
// server's error handler can render them per field.
func HTTPError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return err
	case errors.Is(err, ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "No account found for this phone number.")
	case errors.Is(err, ErrInvalidOTP):
		return fiber.NewError(http.StatusBadRequest, "invalid otp")
	case errors.Is(err, ErrOTPExpired):
		return fiber.NewError(http.StatusBadRequest, "OTP expired. Request a new code.")
	case errors.Is(err, ErrWrongStep):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrSignupExpired):
		return fiber.NewError(http.StatusUnauthorized, "Signup session expired. Verify your phone number again.")
	default:
		return err
	}
}

