package loans

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/negosyoko/nena/internal/notification"
	"github.com/negosyoko/nena/internal/validation"
)

const (
	// MinAmount and MaxAmount bound a request, in centavos.
	MinAmount      = 1_000_00
	MaxAmount      = 500_000_00
	minTermMonths  = 1
	maxTermMonths  = 60
	maxPurposeLen  = 255
	maxBusinessLen = 128
)

// Service records loan applications.
type Service struct {
	repo     Repository
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds a loan service instance.
func NewService(repo Repository, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// ApplyInput captures data required to apply for a loan.
type ApplyInput struct {
	UserID       string
	Phone        string
	Amount       int64
	TermMonths   int
	Purpose      string
	BusinessName string
}

// Apply validates and stores a new PENDING application.
func (s *Service) Apply(ctx context.Context, input ApplyInput) (Application, error) {
	if _, err := uuid.Parse(input.UserID); err != nil {
		return Application{}, fmt.Errorf("invalid user id: %w", err)
	}
	switch {
	case input.Amount < MinAmount:
		return Application{}, validation.Field("amount", "Ensure this value is at least 100000 centavos.")
	case input.Amount > MaxAmount:
		return Application{}, validation.Field("amount", "Ensure this value is at most 50000000 centavos.")
	case input.TermMonths < minTermMonths || input.TermMonths > maxTermMonths:
		return Application{}, validation.Field("term_months", "Term must be between 1 and 60 months.")
	}
	purpose := strings.TrimSpace(input.Purpose)
	if purpose == "" {
		return Application{}, validation.Field("purpose", "This field is required.")
	}
	if utf8.RuneCountInString(purpose) > maxPurposeLen {
		return Application{}, validation.Field("purpose", "Ensure this field has no more than 255 characters.")
	}
	business := strings.TrimSpace(input.BusinessName)
	if utf8.RuneCountInString(business) > maxBusinessLen {
		return Application{}, validation.Field("business_name", "Ensure this field has no more than 128 characters.")
	}

	app := Application{
		ID:           uuid.New().String(),
		UserID:       input.UserID,
		Amount:       input.Amount,
		TermMonths:   input.TermMonths,
		Purpose:      purpose,
		BusinessName: business,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return Application{}, err
	}

	if s.notifier != nil && input.Phone != "" {
		msg := notification.Message{
			Kind:        notification.KindLoanSubmitted,
			Destination: input.Phone,
			Body:        fmt.Sprintf("We received your loan application for PHP %s. Reference %s.", FormatPesos(app.Amount), app.ID),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("loan notification failed", slog.String("application_id", app.ID), slog.Any("error", err))
		}
	}
	return app, nil
}

// List returns the user's applications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Application, error) {
	return s.repo.ListByUser(ctx, userID)
}

// FormatPesos renders centavos as pesos with two decimals.
func FormatPesos(centavos int64) string {
	sign := ""
	if centavos < 0 {
		sign = "-"
		centavos = -centavos
	}
	return fmt.Sprintf("%s%d.%02d", sign, centavos/100, centavos%100)
}
