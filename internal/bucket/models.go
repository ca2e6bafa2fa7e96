package bucket

import "time"

// Kind discriminates what a bucket carries.
type Kind string

const (
	// KindText marks a bucket holding a shared text blob.
	KindText Kind = "text"
	// KindFile marks a bucket holding an uploaded file.
	KindFile Kind = "file"
)

// FileInfo describes the uploaded object backing a file bucket.
type FileInfo struct {
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"size_bytes"`
	ObjectName  string `json:"-"`
	ContentType string `json:"content_type"`
}

// Bucket is the persisted share record. Exactly one of Text and File is
// meaningful, selected by Kind. TokenHash is the bcrypt hash of the owner
// token and never leaves the package.
type Bucket struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time
	TokenHash string
	Text      string
	File      *FileInfo
}

// View is the read-side projection of a bucket. It carries no trace of the
// owner token.
type View struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Text      string    `json:"text,omitempty"`
	File      *FileInfo `json:"file,omitempty"`
}

// Created is returned once, at creation; the owner token is never
// retrievable again.
type Created struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	OwnerToken string `json:"owner_token"`
}

// ReapResult summarizes one retention sweep.
type ReapResult struct {
	Reaped   int `json:"reaped"`
	Failures int `json:"failures"`
}
