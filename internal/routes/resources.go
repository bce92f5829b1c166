package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/chat"
	"github.com/negosyoko/nena/internal/documents"
	"github.com/negosyoko/nena/internal/loans"
	"github.com/negosyoko/nena/internal/records"
)

// RegisterLoanRoutes mounts loan applications. idempotent may be nil.
func RegisterLoanRoutes(router fiber.Router, h *loans.Handler, idempotent fiber.Handler) {
	if idempotent != nil {
		router.Post("/apply-loan/", idempotent, h.Apply)
		return
	}
	router.Post("/apply-loan/", h.Apply)
}

func RegisterRecordRoutes(router fiber.Router, h *records.Handler) {
	router.Get("/analytics/", h.Analytics)
	router.Get("/income-records/", h.List)
	router.Post("/income-records/", h.Create)
}

func RegisterDocumentRoutes(router fiber.Router, h *documents.Handler) {
	router.Get("/documents/", h.List)
	router.Post("/documents/upload/", h.Upload)
	router.Get("/documents/:id/content/", h.Download)
}

func RegisterChatRoutes(router fiber.Router, h *chat.Handler) {
	router.Post("/chat/", h.Send)
}
