package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const uniqueViolation = "23505"

// Repository provides access to bucket record storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new bucket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new bucket record. The id column is the primary key, so
// the insert is create-if-absent: losing a race for the id surfaces as
// ErrIDConflict, which callers treat as a signal to re-allocate.
func (r *Repository) Create(ctx context.Context, b Bucket) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO buckets (id, kind, token_hash, body, filename, size_bytes, object_name, content_type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at;`

	var body, filename, objectName, contentType *string
	var sizeBytes *int64
	if b.Kind == KindText {
		body = &b.Text
	} else if b.File != nil {
		filename = &b.File.Filename
		sizeBytes = &b.File.SizeBytes
		objectName = &b.File.ObjectName
		contentType = &b.File.ContentType
	}

	err := r.pool.QueryRow(ctx, query,
		b.ID, b.Kind, b.TokenHash, body, filename, sizeBytes, objectName, contentType,
	).Scan(&b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Bucket{}, ErrIDConflict
		}
		return Bucket{}, fmt.Errorf("create bucket record: %w", err)
	}
	return b, nil
}

// Exists reports whether a live record holds the id.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM buckets WHERE id = $1);`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check bucket existence: %w", err)
	}
	return exists, nil
}

// Get fetches a single bucket record.
func (r *Repository) Get(ctx context.Context, id string) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT id, kind, created_at, token_hash, body, filename, size_bytes, object_name, content_type
FROM buckets
WHERE id = $1;`

	b, err := scanBucket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bucket{}, ErrNotFound
		}
		return Bucket{}, fmt.Errorf("get bucket record: %w", err)
	}
	return b, nil
}

// Delete removes a record and returns what was deleted, so callers can clean
// up the backing object. Deleting an absent id yields ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
DELETE FROM buckets
WHERE id = $1
RETURNING id, kind, created_at, token_hash, body, filename, size_bytes, object_name, content_type;`

	b, err := scanBucket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bucket{}, ErrNotFound
		}
		return Bucket{}, fmt.Errorf("delete bucket record: %w", err)
	}
	return b, nil
}

// FindExpired lists records created before the cutoff, oldest first.
func (r *Repository) FindExpired(ctx context.Context, cutoff time.Time) ([]Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT id, kind, created_at, token_hash, body, filename, size_bytes, object_name, content_type
FROM buckets
WHERE created_at < $1
ORDER BY created_at;`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find expired buckets: %w", err)
	}
	defer rows.Close()

	var expired []Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired bucket: %w", err)
		}
		expired = append(expired, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired buckets: %w", err)
	}
	return expired, nil
}

func scanBucket(row pgx.Row) (Bucket, error) {
	var b Bucket
	var body, filename, objectName, contentType *string
	var sizeBytes *int64

	err := row.Scan(&b.ID, &b.Kind, &b.CreatedAt, &b.TokenHash,
		&body, &filename, &sizeBytes, &objectName, &contentType)
	if err != nil {
		return Bucket{}, err
	}

	if body != nil {
		b.Text = *body
	}
	if filename != nil {
		info := &FileInfo{Filename: *filename}
		if sizeBytes != nil {
			info.SizeBytes = *sizeBytes
		}
		if objectName != nil {
			info.ObjectName = *objectName
		}
		if contentType != nil {
			info.ContentType = *contentType
		}
		b.File = info
	}
	return b, nil
}
