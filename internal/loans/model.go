package loans

import "time"

// StatusPending is the status of every new application.
const StatusPending = "PENDING"

// Application is a borrower's loan request. Amounts are in centavos.
type Application struct {
	ID           string
	UserID       string
	Amount       int64
	TermMonths   int
	Purpose      string
	BusinessName string
	Status       string
	CreatedAt    time.Time
}
