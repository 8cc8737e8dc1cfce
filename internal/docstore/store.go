package docstore

import (
	"context"
	"time"

	"github.com/starford/paperasse/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	Snippet    string `json:"snippet"`
}

// Store defines the persistence operations used by the document service.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Store interface {
	InsertDocument(ctx context.Context, doc *models.Document) error
	InsertVersion(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error)
	FindByContentHash(ctx context.Context, tenantID, hash string) (*models.Document, error)
	FindByTextHash(ctx context.Context, tenantID, hash string) ([]string, error)
	Lineage(ctx context.Context, tenantID, lineageID string) ([]models.Document, error)
	ListDocuments(ctx context.Context, tenantID string, q ListQuery) ([]models.Document, int, error)
	AddLink(ctx context.Context, tenantID, documentID string, ref models.LinkRef) (*models.DocumentLink, error)
	RemoveLink(ctx context.Context, tenantID, documentID string, ref models.LinkRef) error
	UpdateStatus(ctx context.Context, tenantID, id string, from, to models.Status) error
	UpdateOCR(ctx context.Context, tenantID, id string, u OCRUpdate) error
	UpdateClassification(ctx context.Context, tenantID, id string, expected models.Status, c models.Classification, status models.Status, at time.Time) error
	SoftDelete(ctx context.Context, tenantID, id string) error
	UpsertEntity(ctx context.Context, e models.Entity) error
	EntityExists(ctx context.Context, tenantID string, kind models.LinkedType, id string) (bool, error)
	ListLeases(ctx context.Context, tenantID string) ([]models.Entity, error)
	Search(ctx context.Context, tenantID, query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
