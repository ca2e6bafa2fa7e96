package bucket

import "errors"

var (
	// ErrNotFound signals that no bucket exists under the given id.
	ErrNotFound = errors.New("bucket not found")
	// ErrForbidden is returned when the presented owner token does not match.
	ErrForbidden = errors.New("owner token mismatch")
	// ErrIDConflict indicates a create lost the race for its candidate id.
	ErrIDConflict = errors.New("bucket id already taken")
	// ErrIDExhausted is returned when allocation gives up after too many collisions.
	ErrIDExhausted = errors.New("bucket id space exhausted")
	// ErrFileTooLarge signals that the upload exceeds configured limits.
	ErrFileTooLarge = errors.New("file too large")
	// ErrEmptyPayload is returned when a create carries neither text nor file content.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrNotFileBucket is returned for download requests against text buckets.
	ErrNotFileBucket = errors.New("bucket does not hold a file")
)
