package records

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/negosyoko/nena/internal/validation"
)

const (
	maxSourceLen = 64
	maxNotesLen  = 500
)

// Service manages income records and their analytics.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// AddInput is a new income record. ReceivedOn uses DateLayout; empty means today.
type AddInput struct {
	UserID     string
	Amount     int64
	Source     string
	ReceivedOn string
	Notes      string
}

// Add validates and stores a record.
func (s *Service) Add(ctx context.Context, in AddInput) (Record, error) {
	if in.Amount <= 0 {
		return Record{}, validation.Field("amount", "Ensure this value is greater than 0.")
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		return Record{}, validation.Field("source", "This field is required.")
	}
	if utf8.RuneCountInString(source) > maxSourceLen {
		return Record{}, validation.Field("source", "Ensure this field has no more than 64 characters.")
	}
	notes := strings.TrimSpace(in.Notes)
	if utf8.RuneCountInString(notes) > maxNotesLen {
		return Record{}, validation.Field("notes", "Ensure this field has no more than 500 characters.")
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	receivedOn := today
	if in.ReceivedOn != "" {
		d, err := time.Parse(DateLayout, in.ReceivedOn)
		if err != nil {
			return Record{}, validation.Field("received_on", "Date has wrong format. Use YYYY-MM-DD.")
		}
		if d.After(today) {
			return Record{}, validation.Field("received_on", "Date cannot be in the future.")
		}
		receivedOn = d
	}

	rec := Record{
		ID:         uuid.New().String(),
		UserID:     in.UserID,
		Amount:     in.Amount,
		Source:     source,
		ReceivedOn: receivedOn,
		Notes:      notes,
		CreatedAt:  now,
	}
	if err := s.store.Add(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Record, error) {
	return s.store.List(ctx, userID)
}

// Analytics summarises all of the user's records.
func (s *Service) Analytics(ctx context.Context, userID string) (Analytics, error) {
	recs, err := s.store.List(ctx, userID)
	if err != nil {
		return Analytics{}, err
	}
	return Summarize(recs), nil
}
