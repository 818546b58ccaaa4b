package utils

import "github.com/google/uuid"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// NewID returns a random UUIDv4 string.
func NewID() string {
	return uuid.NewString()
}

// IsID reports whether s parses as a UUID.
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
