package chat

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/auth"
	"github.com/negosyoko/nena/internal/validation"
)

const maxMessageLen = 1000

// Handler exposes the chat endpoint.
type Handler struct {
	assistant Assistant
	logger    *slog.Logger
}

func NewHandler(assistant Assistant, logger *slog.Logger) *Handler {
	return &Handler{assistant: assistant, logger: logger}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Send answers a single chat message.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return validation.Field("message", "This field may not be blank.")
	}
	if utf8.RuneCountInString(msg) > maxMessageLen {
		return validation.Field("message", "Ensure this field has no more than 1000 characters.")
	}

	uid, _ := c.Locals(auth.UserIDLocal).(string)
	reply, err := h.assistant.Reply(c.UserContext(), uid, msg)
	if err != nil {
		h.logger.Error("assistant reply failed", slog.String("user_id", uid), slog.Any("error", err))
		return fiber.NewError(http.StatusServiceUnavailable, "assistant unavailable")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"reply": reply})
}
