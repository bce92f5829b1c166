package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/negosyoko/nena/internal/validation"
)

const (
	defaultMaxBytes = 5 << 20
	maxLabelLen     = 64
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Service stores uploaded document images for a user.
type Service struct {
	repo     Repository
	storage  Storage
	maxBytes int64
	logger   *slog.Logger
}

// NewService prepares a document service. maxBytes <= 0 selects 5MB.
func NewService(repo Repository, storage Storage, maxBytes int64, logger *slog.Logger) *Service {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, storage: storage, maxBytes: maxBytes, logger: logger}
}

// MaxBytes is the largest accepted upload.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// UploadInput captures one uploaded file.
type UploadInput struct {
	UserID   string
	Label    string
	Filename string
	Content  []byte
}

// Upload sniffs the content type, stores the bytes and records metadata.
// The client-declared content type is ignored.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Document, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return Document{}, validation.Field("label", "This field is required.")
	}
	if utf8.RuneCountInString(label) > maxLabelLen {
		return Document{}, validation.Field("label", "Ensure this field has no more than 64 characters.")
	}
	if len(in.Content) == 0 {
		return Document{}, validation.Field("image", "The submitted file is empty.")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return Document{}, validation.Field("image", fmt.Sprintf("File too large. Maximum size is %d MB.", s.maxBytes>>20))
	}
	contentType := http.DetectContentType(in.Content)
	if !allowedTypes[contentType] {
		return Document{}, validation.Field("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}

	filename := filepath.Base(strings.ReplaceAll(in.Filename, "\\", "/"))
	if filename == "." || filename == "/" {
		filename = "upload"
	}

	doc := Document{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		Label:       label,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(in.Content)),
		UploadedAt:  time.Now().UTC(),
	}
	doc.StorageKey = in.UserID + "/" + doc.ID

	if err := s.storage.Put(ctx, doc.StorageKey, in.Content, contentType); err != nil {
		return Document{}, fmt.Errorf("store document: %w", err)
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Warn("orphaned document blob", slog.String("key", doc.StorageKey), slog.Any("error", delErr))
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Document, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Open returns a document of userID together with its bytes. Metadata whose
// blob is gone reports ErrNotFound.
func (s *Service) Open(ctx context.Context, userID, id string) (Document, []byte, error) {
	doc, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return Document{}, nil, err
	}
	content, _, err := s.storage.Get(ctx, doc.StorageKey)
	if errors.Is(err, ErrBlobNotFound) {
		s.logger.Warn("document blob missing", slog.String("id", doc.ID), slog.String("key", doc.StorageKey))
		return Document{}, nil, ErrNotFound
	}
	if err != nil {
		return Document{}, nil, fmt.Errorf("read document: %w", err)
	}
	return doc, content, nil
}
