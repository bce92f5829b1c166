package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists income records in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a record.
func (s *PostgresStore) Add(ctx context.Context, rec Record) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(rec.UserID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO income_records (id, user_id, amount, source, received_on, notes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, userID, rec.Amount, rec.Source, rec.ReceivedOn, rec.Notes, rec.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateRecord
	}
	return err
}

// List returns a user's records ordered by date received.
func (s *PostgresStore) List(ctx context.Context, userID string) ([]Record, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT id, amount, source, received_on, notes, created_at
        FROM income_records WHERE user_id = $1
        ORDER BY received_on DESC, created_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id         uuid.UUID
			receivedOn time.Time
			createdAt  time.Time
			rec        = Record{UserID: userID}
		)
		if err := rows.Scan(&id, &rec.Amount, &rec.Source, &receivedOn, &rec.Notes, &createdAt); err != nil {
			return nil, err
		}
		rec.ID = id.String()
		rec.ReceivedOn = receivedOn.UTC()
		rec.CreatedAt = createdAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
