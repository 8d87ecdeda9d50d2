package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth indicates the upstream account rejected the configured credentials.
	ErrAuth = errors.New("upstream authentication failed")
	// ErrBucketExists is returned by sinks when the target bucket is already present.
	ErrBucketExists = errors.New("bucket already exists")
	// ErrStateCorrupt marks an unreadable persisted watermark record. Stores recover from it locally.
	ErrStateCorrupt = errors.New("watermark state corrupt")
)

// AuthError carries the upstream status for a rejected login.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upstream login rejected (status %d)", e.Status)
	}
	return fmt.Sprintf("upstream login rejected (status %d): %s", e.Status, e.Detail)
}

// Unwrap lets errors.Is match ErrAuth.
func (e *AuthError) Unwrap() error { return ErrAuth }

// ParseError reports a malformed field in a single upstream record.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
