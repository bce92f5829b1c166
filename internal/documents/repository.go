package documents

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned for documents that do not exist or belong to
// another user.
var ErrNotFound = errors.New("document not found")

// Document is the metadata of an uploaded file.
type Document struct {
	ID          string
	UserID      string
	Label       string
	Filename    string
	ContentType string
	Size        int64
	StorageKey  string
	UploadedAt  time.Time
}

// Repository persists document metadata.
type Repository interface {
	Create(ctx context.Context, doc Document) error
	// ListByUser returns the user's documents, newest first.
	ListByUser(ctx context.Context, userID string) ([]Document, error)
	Get(ctx context.Context, userID, id string) (Document, error)
}

type memoryRepository struct {
	mu   sync.RWMutex
	docs []Document
}

func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Create(_ context.Context, doc Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Document
	for _, d := range r.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (r *memoryRepository) Get(_ context.Context, userID, id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.docs {
		if d.ID == id && d.UserID == userID {
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

// PostgresRepository stores document metadata in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, doc Document) error {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO documents (id, user_id, label, filename, content_type, size, storage_key, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, userID, doc.Label, doc.Filename, doc.ContentType, doc.Size, doc.StorageKey, doc.UploadedAt.UTC())
	return err
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Document, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, label, filename, content_type, size, storage_key, uploaded_at
        FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id         uuid.UUID
			uploadedAt time.Time
			doc        = Document{UserID: userID}
		)
		if err := rows.Scan(&id, &doc.Label, &doc.Filename, &doc.ContentType, &doc.Size, &doc.StorageKey, &uploadedAt); err != nil {
			return nil, err
		}
		doc.ID = id.String()
		doc.UploadedAt = uploadedAt.UTC()
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (Document, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Document{}, ErrNotFound
	}
	docID, err := uuid.Parse(id)
	if err != nil {
		return Document{}, ErrNotFound
	}
	var (
		uploadedAt time.Time
		doc        = Document{ID: docID.String(), UserID: uid.String()}
	)
	err = r.db.QueryRow(ctx, `SELECT label, filename, content_type, size, storage_key, uploaded_at
        FROM documents WHERE id = $1 AND user_id = $2`, docID, uid).
		Scan(&doc.Label, &doc.Filename, &doc.ContentType, &doc.Size, &doc.StorageKey, &uploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	doc.UploadedAt = uploadedAt.UTC()
	return doc, nil
}
