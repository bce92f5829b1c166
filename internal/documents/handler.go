package documents

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/auth"
	"github.com/negosyoko/nena/internal/validation"
)

// Handler exposes document upload endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type documentResponse struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func toResponse(d Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		Label:       d.Label,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.Size,
		UploadedAt:  d.UploadedAt,
	}
}

// Upload accepts multipart form fields "label" and "image".
func (h *Handler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return validation.Field("image", "No file was submitted.")
	}
	if file.Size > h.service.MaxBytes() {
		return validation.Field("image", "File too large.")
	}
	f, err := file.Open()
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, h.service.MaxBytes()+1))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	uid, _ := c.Locals(auth.UserIDLocal).(string)
	doc, err := h.service.Upload(c.UserContext(), UploadInput{
		UserID:   uid,
		Label:    c.FormValue("label"),
		Filename: file.Filename,
		Content:  content,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(doc))
}

// List returns the caller's documents.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals(auth.UserIDLocal).(string)
	docs, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return err
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toResponse(d))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Download streams the stored image of one of the caller's documents.
func (h *Handler) Download(c *fiber.Ctx) error {
	uid, _ := c.Locals(auth.UserIDLocal).(string)
	doc, content, err := h.service.Open(c.UserContext(), uid, c.Params("id"))
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, "Not found.")
	}
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", doc.Filename))
	return c.Status(http.StatusOK).Send(content)
}
