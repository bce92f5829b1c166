package records

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/auth"
)

// Handler exposes income record and analytics endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type recordResponse struct {
	ID         string    `json:"id"`
	Amount     int64     `json:"amount"`
	Source     string    `json:"source"`
	ReceivedOn string    `json:"received_on"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type createRequest struct {
	Amount     int64  `json:"amount"`
	Source     string `json:"source"`
	ReceivedOn string `json:"received_on"`
	Notes      string `json:"notes"`
}

func toResponse(r Record) recordResponse {
	return recordResponse{
		ID:         r.ID,
		Amount:     r.Amount,
		Source:     r.Source,
		ReceivedOn: r.ReceivedOn.Format(DateLayout),
		Notes:      r.Notes,
		CreatedAt:  r.CreatedAt,
	}
}

// List returns the caller's income records.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals(auth.UserIDLocal).(string)
	recs, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return err
	}
	out := make([]recordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toResponse(r))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Create stores a new income record.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals(auth.UserIDLocal).(string)
	rec, err := h.service.Add(c.UserContext(), AddInput{
		UserID:     uid,
		Amount:     req.Amount,
		Source:     req.Source,
		ReceivedOn: req.ReceivedOn,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(rec))
}

// Analytics returns totals over the caller's income records.
func (h *Handler) Analytics(c *fiber.Ctx) error {
	uid, _ := c.Locals(auth.UserIDLocal).(string)
	a, err := h.service.Analytics(c.UserContext(), uid)
	if err != nil {
		return err
	}

	monthly := make([]fiber.Map, 0, len(a.Monthly))
	for _, m := range a.Monthly {
		monthly = append(monthly, fiber.Map{"month": m.Month, "total": m.Total})
	}
	sources := make([]fiber.Map, 0, len(a.TopSources))
	for _, s := range a.TopSources {
		sources = append(sources, fiber.Map{"source": s.Source, "total": s.Total, "count": s.Count})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"total_income":   a.TotalIncome,
		"record_count":   a.RecordCount,
		"average_amount": a.AverageAmount,
		"monthly":        monthly,
		"top_sources":    sources,
	})
}
