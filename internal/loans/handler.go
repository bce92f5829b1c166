package loans

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/auth"
)

// Handler exposes loan HTTP endpoints.
type Handler struct {
	service *Service
	phones  func(c *fiber.Ctx) string
}

// NewHandler builds a loan HTTP handler. phoneOf resolves the caller's phone
// for the confirmation notice and may be nil.
func NewHandler(service *Service, phoneOf func(c *fiber.Ctx) string) *Handler {
	if phoneOf == nil {
		phoneOf = func(*fiber.Ctx) string { return "" }
	}
	return &Handler{service: service, phones: phoneOf}
}

type applyRequest struct {
	Amount       int64  `json:"amount"`
	TermMonths   int    `json:"term_months"`
	Purpose      string `json:"purpose"`
	BusinessName string `json:"business_name"`
}

type applyResponse struct {
	Message       string `json:"message"`
	ApplicationID string `json:"application_id"`
	Status        string `json:"status"`
}

// Apply submits a loan application for the authenticated user.
func (h *Handler) Apply(c *fiber.Ctx) error {
	var req applyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals(auth.UserIDLocal).(string)
	app, err := h.service.Apply(c.UserContext(), ApplyInput{
		UserID:       uid,
		Phone:        h.phones(c),
		Amount:       req.Amount,
		TermMonths:   req.TermMonths,
		Purpose:      req.Purpose,
		BusinessName: req.BusinessName,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(applyResponse{
		Message:       "Loan application submitted",
		ApplicationID: app.ID,
		Status:        app.Status,
	})
}
