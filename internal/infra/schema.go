package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        phone TEXT NOT NULL UNIQUE,
        first_name TEXT NOT NULL DEFAULT '',
        middle_name TEXT NOT NULL DEFAULT '',
        last_name TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        pin_hash BYTEA,
        token_version INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        last_login TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS loan_applications (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users(id),
        amount BIGINT NOT NULL CHECK (amount > 0),
        term_months INTEGER NOT NULL,
        purpose TEXT NOT NULL,
        business_name TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS loan_applications_user_idx ON loan_applications (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS income_records (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users(id),
        amount BIGINT NOT NULL CHECK (amount > 0),
        source TEXT NOT NULL,
        received_on DATE NOT NULL,
        notes TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS income_records_user_idx ON income_records (user_id, received_on DESC)`,
	`CREATE TABLE IF NOT EXISTS documents (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users(id),
        label TEXT NOT NULL,
        filename TEXT NOT NULL,
        content_type TEXT NOT NULL,
        size BIGINT NOT NULL,
        storage_key TEXT NOT NULL,
        uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS documents_user_idx ON documents (user_id, uploaded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS document_blobs (
        key TEXT PRIMARY KEY,
        content BYTEA NOT NULL,
        content_type TEXT NOT NULL
    )`,
}

// EnsureSchema creates the service tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
