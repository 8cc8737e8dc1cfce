// Package storage defines the object storage collaborator and its local
// file-system implementation.
package storage

import (
	"context"
	"path"
	"strings"
	"time"
)

// Object describes a stored blob.
type Object struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	// Created is set when Put wrote the blob rather than finding it.
	Created bool `json:"-"`
}

// FileInfo describes a file found by List.
type FileInfo struct {
	Path      string
	Size      int64
	UpdatedAt time.Time
}

// ObjectStore is the blob storage used for document bytes.
type ObjectStore interface {
	// Put stores data under key. Writing the same key twice keeps the first
	// copy, since keys are derived from content.
	Put(ctx context.Context, key string, data []byte) (Object, error)
	// Get returns the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the blob stored under key. It is used to release a
	// blob written by a failed upload.
	Delete(ctx context.Context, key string) error
}

// ObjectKey derives the content-addressed key of a document:
// <tenant>/<hash[:2]>/<hash><ext>.
func ObjectKey(tenantID, contentHash, filename string) string {
	prefix := contentHash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(sanitizeSegment(tenantID), prefix, contentHash+ext)
}

func sanitizeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}
