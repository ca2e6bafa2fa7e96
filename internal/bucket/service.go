package bucket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/fishy/errbatch"
	"github.com/hastebucket/hastebucket/internal/config"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// createAttempts bounds how many conditional-insert conflicts a create will
// absorb before giving up. Each conflict means a concurrent writer claimed
// the candidate id between the existence check and the insert.
const createAttempts = 10

type recordStore interface {
	Create(ctx context.Context, b Bucket) (Bucket, error)
	Get(ctx context.Context, id string) (Bucket, error)
	Delete(ctx context.Context, id string) (Bucket, error)
	FindExpired(ctx context.Context, cutoff time.Time) ([]Bucket, error)
}

type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// Service owns the bucket lifecycle: create, read, download, delete, reap.
type Service struct {
	repo         recordStore
	objects      objectStore
	cache        *ViewCache
	alloc        *Allocator
	objectBucket string
	maxFileSize  int64
	retention    time.Duration
	presignTTL   time.Duration
	log          *zap.Logger
}

// NewService constructs a bucket service.
func NewService(repo recordStore, objects objectStore, cache *ViewCache, alloc *Allocator, objectBucket string, cfg config.BucketConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:         repo,
		objects:      objects,
		cache:        cache,
		alloc:        alloc,
		objectBucket: objectBucket,
		maxFileSize:  cfg.MaxFileSize,
		retention:    cfg.Retention,
		presignTTL:   cfg.PresignTTL,
		log:          log,
	}
}

// Retention exposes the configured retention window.
func (s *Service) Retention() time.Duration {
	return s.retention
}

// CreateText persists a text bucket and returns the id plus the owner token.
// The token is handed out exactly once; only its bcrypt hash is stored.
func (s *Service) CreateText(ctx context.Context, text string) (Created, error) {
	if strings.TrimSpace(text) == "" {
		return Created{}, ErrEmptyPayload
	}

	token, hash, err := newOwnerToken()
	if err != nil {
		return Created{}, err
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		id, err := s.alloc.Allocate(ctx)
		if err != nil {
			return Created{}, err
		}

		_, err = s.repo.Create(ctx, Bucket{
			ID:        id,
			Kind:      KindText,
			TokenHash: hash,
			Text:      text,
		})
		if err == ErrIDConflict {
			// Lost the race between the existence check and the insert;
			// the conditional write is the arbiter, so just redraw.
			continue
		}
		if err != nil {
			return Created{}, err
		}
		return Created{ID: id, Kind: KindText, OwnerToken: token}, nil
	}
	return Created{}, ErrIDExhausted
}

// CreateFile uploads the object contents and then persists the record, so a
// visible record always has durable content behind it.
func (s *Service) CreateFile(ctx context.Context, fileHeader *multipart.FileHeader) (Created, error) {
	if fileHeader == nil {
		return Created{}, ErrEmptyPayload
	}
	if s.maxFileSize > 0 && fileHeader.Size > s.maxFileSize {
		return Created{}, ErrFileTooLarge
	}

	token, hash, err := newOwnerToken()
	if err != nil {
		return Created{}, err
	}

	filename := sanitizeFilename(fileHeader.Filename)
	contentType := detectContentType(fileHeader)

	for attempt := 0; attempt < createAttempts; attempt++ {
		id, err := s.alloc.Allocate(ctx)
		if err != nil {
			return Created{}, err
		}
		objectName := fmt.Sprintf("%s/%s", id, filename)

		size, err := s.putObject(ctx, objectName, contentType, fileHeader)
		if err != nil {
			return Created{}, err
		}

		_, err = s.repo.Create(ctx, Bucket{
			ID:        id,
			Kind:      KindFile,
			TokenHash: hash,
			File: &FileInfo{
				Filename:    filename,
				SizeBytes:   size,
				ObjectName:  objectName,
				ContentType: contentType,
			},
		})
		if err == ErrIDConflict {
			_ = s.objects.RemoveObject(ctx, s.objectBucket, objectName, minio.RemoveObjectOptions{})
			continue
		}
		if err != nil {
			_ = s.objects.RemoveObject(ctx, s.objectBucket, objectName, minio.RemoveObjectOptions{})
			return Created{}, err
		}
		return Created{ID: id, Kind: KindFile, OwnerToken: token}, nil
	}
	return Created{}, ErrIDExhausted
}

func (s *Service) putObject(ctx context.Context, objectName, contentType string, fileHeader *multipart.FileHeader) (int64, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	uploadInfo, err := s.objects.PutObject(ctx, s.objectBucket, objectName, file, fileHeader.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("store object: %w", err)
	}

	size := uploadInfo.Size
	if size <= 0 {
		size = fileHeader.Size
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		_ = s.objects.RemoveObject(ctx, s.objectBucket, objectName, minio.RemoveObjectOptions{})
		return 0, ErrFileTooLarge
	}
	return size, nil
}

// Read returns the token-free view of a bucket. Anyone holding the id may read.
func (s *Service) Read(ctx context.Context, id string) (View, error) {
	if cached, err := s.cache.Get(ctx, id); err != nil {
		s.log.Warn("bucket cache read failed", zap.String("id", id), zap.Error(err))
	} else if cached != nil {
		return *cached, nil
	}

	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}

	view := s.view(b)
	if err := s.cache.Set(ctx, view); err != nil {
		s.log.Warn("bucket cache write failed", zap.String("id", id), zap.Error(err))
	}
	return view, nil
}

// Download streams the object backing a file bucket.
func (s *Service) Download(ctx context.Context, id string) (View, io.ReadCloser, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, nil, err
	}
	if b.Kind != KindFile || b.File == nil {
		return View{}, nil, ErrNotFileBucket
	}

	object, err := s.objects.GetObject(ctx, s.objectBucket, b.File.ObjectName, minio.GetObjectOptions{})
	if err != nil {
		return View{}, nil, fmt.Errorf("fetch object: %w", err)
	}
	return s.view(b), object, nil
}

// DownloadURL returns a presigned GET URL for a file bucket.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if b.Kind != KindFile || b.File == nil {
		return "", ErrNotFileBucket
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", b.File.Filename))

	u, err := s.objects.PresignedGetObject(ctx, s.objectBucket, b.File.ObjectName, s.presignTTL, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

// PresignTTL exposes the configured presigned-URL lifetime.
func (s *Service) PresignTTL() time.Duration {
	return s.presignTTL
}

// VerifyOwner reports whether the presented token matches the bucket's owner
// token. A missing bucket verifies as false without error.
func (s *Service) VerifyOwner(ctx context.Context, id, presentedToken string) (bool, error) {
	b, err := s.repo.Get(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(b.TokenHash), []byte(presentedToken)) == nil, nil
}

// Delete removes a bucket on behalf of its owner. The record row is the
// source of truth: once it is gone the delete has succeeded, and a failed
// blob removal leaves only an orphaned object behind.
func (s *Service) Delete(ctx context.Context, id, presentedToken string) error {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(b.TokenHash), []byte(presentedToken)) != nil {
		return ErrForbidden
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		// A reap sweep may have won the race; both converge to deleted.
		return err
	}

	s.removeObjectFor(ctx, deleted)
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("bucket cache invalidate failed", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// Reap purges every record older than the retention window along with its
// object. Failures are aggregated per record and never stop the sweep.
func (s *Service) Reap(ctx context.Context, now time.Time) (ReapResult, error) {
	cutoff := now.Add(-s.retention)

	expired, err := s.repo.FindExpired(ctx, cutoff)
	if err != nil {
		return ReapResult{}, fmt.Errorf("find expired buckets: %w", err)
	}

	batch := new(errbatch.ErrBatch)
	var reaped int
	for _, b := range expired {
		deleted, err := s.repo.Delete(ctx, b.ID)
		if err == ErrNotFound {
			// Already gone: an overlapping sweep or an owner delete got
			// there first.
			continue
		}
		if err != nil {
			batch.Add(fmt.Errorf("reap %s: %w", b.ID, err))
			continue
		}

		s.removeObjectFor(ctx, deleted)
		if err := s.cache.Invalidate(ctx, b.ID); err != nil {
			s.log.Warn("bucket cache invalidate failed", zap.String("id", b.ID), zap.Error(err))
		}
		reaped++
	}

	result := ReapResult{Reaped: reaped, Failures: len(batch.GetErrors())}
	return result, batch.Compile()
}

func (s *Service) removeObjectFor(ctx context.Context, b Bucket) {
	if b.Kind != KindFile || b.File == nil {
		return
	}
	if err := s.objects.RemoveObject(ctx, s.objectBucket, b.File.ObjectName, minio.RemoveObjectOptions{}); err != nil {
		s.log.Warn("orphaned object left behind",
			zap.String("id", b.ID),
			zap.String("object", b.File.ObjectName),
			zap.Error(err),
		)
	}
}

func (s *Service) view(b Bucket) View {
	return View{
		ID:        b.ID,
		Kind:      b.Kind,
		CreatedAt: b.CreatedAt,
		ExpiresAt: b.CreatedAt.Add(s.retention),
		Text:      b.Text,
		File:      b.File,
	}
}

func newOwnerToken() (token, hash string, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate owner token: %w", err)
	}
	token = hex.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash owner token: %w", err)
	}
	return token, string(hashed), nil
}

func detectContentType(fileHeader *multipart.FileHeader) string {
	if fileHeader == nil {
		return "application/octet-stream"
	}
	if contentType := fileHeader.Header.Get("Content-Type"); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
