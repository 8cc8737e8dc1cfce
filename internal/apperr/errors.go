// Package apperr holds the sentinel errors shared by the store, the service
// layer and the transports. Callers wrap them with fmt.Errorf("...: %w").
package apperr

import "errors"

var (
	// ErrNotFound also covers records owned by another tenant, so callers
	// cannot tell the two apart.
	ErrNotFound      = errors.New("not found or inaccessible")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnreadable    = errors.New("unreadable document")
)
