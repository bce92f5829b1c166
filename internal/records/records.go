package records

import (
	"context"
	"errors"
	"time"
)

// DateLayout is the wire format of ReceivedOn.
const DateLayout = "2006-01-02"

// ErrDuplicateRecord is returned when a record ID is reused.
var ErrDuplicateRecord = errors.New("duplicate income record")

// Record is one income entry of a borrower. Amount is in centavos.
type Record struct {
	ID         string
	UserID     string
	Amount     int64
	Source     string
	ReceivedOn time.Time
	Notes      string
	CreatedAt  time.Time
}

// Store defines the contract implemented by record backends (e.g. Postgres).
type Store interface {
	Add(ctx context.Context, rec Record) error
	// List returns the user's records, most recent ReceivedOn first.
	List(ctx context.Context, userID string) ([]Record, error)
}
