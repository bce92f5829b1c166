package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists loan applications.
type Repository interface {
	Create(ctx context.Context, app Application) error
	// ListByUser returns the user's applications, newest first.
	ListByUser(ctx context.Context, userID string) ([]Application, error)
}

// PostgresRepository stores applications in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an application record.
func (r *PostgresRepository) Create(ctx context.Context, app Application) error {
	appID, err := uuid.Parse(app.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(app.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO loan_applications (id, user_id, amount, term_months, purpose, business_name, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		appID, userID, app.Amount, app.TermMonths, app.Purpose, app.BusinessName, app.Status, app.CreatedAt.UTC())
	return err
}

// ListByUser fetches a user's applications.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Application, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, amount, term_months, purpose, business_name, status, created_at
        FROM loan_applications WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var (
			id        uuid.UUID
			createdAt time.Time
			app       = Application{UserID: userID}
		)
		if err := rows.Scan(&id, &app.Amount, &app.TermMonths, &app.Purpose, &app.BusinessName, &app.Status, &createdAt); err != nil {
			return nil, err
		}
		app.ID = id.String()
		app.CreatedAt = createdAt.UTC()
		out = append(out, app)
	}
	return out, rows.Err()
}
