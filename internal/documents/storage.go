package documents

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrBlobNotFound is returned by Storage.Get for unknown keys.
var ErrBlobNotFound = errors.New("blob not found")

// Storage holds document bytes. Metadata lives in a Repository.
type Storage interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

type blob struct {
	content     []byte
	contentType string
}

// MemoryStorage keeps blobs in process memory; the sandbox default.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string]blob)}
}

func (s *MemoryStorage) Put(_ context.Context, key string, content []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = blob{content: append([]byte(nil), content...), contentType: contentType}
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, "", ErrBlobNotFound
	}
	return append([]byte(nil), b.content...), b.contentType, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// PostgresStorage keeps blobs in the document_blobs table so they survive
// restarts alongside their metadata.
type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) Put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO document_blobs (key, content, content_type) VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET content = EXCLUDED.content, content_type = EXCLUDED.content_type`,
		key, content, contentType)
	return err
}

func (s *PostgresStorage) Get(ctx context.Context, key string) ([]byte, string, error) {
	var (
		content     []byte
		contentType string
	)
	err := s.db.QueryRow(ctx, `SELECT content, content_type FROM document_blobs WHERE key = $1`, key).
		Scan(&content, &contentType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrBlobNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return content, contentType, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM document_blobs WHERE key = $1`, key)
	return err
}
