package docservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/paperasse/internal/apperr"
	"github.com/starford/paperasse/internal/docstore"
	"github.com/starford/paperasse/internal/models"
	"github.com/starford/paperasse/internal/sse"
)

// ListQuery selects documents by link scope. A zero Ref means the global
// scope.
type ListQuery struct {
	Ref             models.LinkRef
	Status          models.Status
	IncludeArchived bool
	Limit           int
	Offset          int
}

// Get returns a document of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Document, error) {
	doc, err := s.store.GetDocument(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("docservice: get: %w", err)
	}
	return doc, nil
}

// Content returns the stored bytes of a document.
func (s *Service) Content(ctx context.Context, tenantID, id string) (*models.Document, []byte, error) {
	doc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.objects.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("docservice: content: %w", err)
	}
	return doc, data, nil
}

// List returns the documents linked to q.Ref. Listing always goes through
// link rows, the global scope included.
func (s *Service) List(ctx context.Context, tenantID string, q ListQuery) ([]models.Document, int, error) {
	if q.Ref.LinkedType == "" {
		q.Ref = models.GlobalLink
	}
	if err := q.Ref.Validate(); err != nil {
		return nil, 0, fmt.Errorf("docservice: list: %v: %w", err, apperr.ErrInvalidInput)
	}
	if q.Status != "" {
		if _, known := statusSet[q.Status]; !known {
			return nil, 0, fmt.Errorf("docservice: list: unknown status %q: %w", q.Status, apperr.ErrInvalidInput)
		}
	}
	docs, total, err := s.store.ListDocuments(ctx, tenantID, docstore.ListQuery{
		Ref:             q.Ref,
		Status:          q.Status,
		IncludeArchived: q.IncludeArchived,
		Limit:           q.Limit,
		Offset:          q.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("docservice: list: %w", err)
	}
	return docs, total, nil
}

var statusSet = map[models.Status]struct{}{
	models.StatusPending:    {},
	models.StatusClassified: {},
	models.StatusRejected:   {},
	models.StatusArchived:   {},
}

// Link attaches a document to an entity of the tenant's catalogue, or to
// the global scope.
func (s *Service) Link(ctx context.Context, tenantID, documentID string, ref models.LinkRef) (*models.DocumentLink, error) {
	if err := s.validateRefs(ctx, tenantID, []models.LinkRef{ref}); err != nil {
		return nil, fmt.Errorf("docservice: link: %w", err)
	}
	doc, err := s.store.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("docservice: link: %w", err)
	}
	link, err := s.store.AddLink(ctx, tenantID, documentID, ref)
	if err != nil {
		return nil, fmt.Errorf("docservice: link: %w", err)
	}
	if !doc.HasLink(ref) {
		s.publisher.PublishDocumentEvent(sse.KindLinked, tenantID, documentID)
	}
	return link, nil
}

// Unlink detaches a document from ref.
func (s *Service) Unlink(ctx context.Context, tenantID, documentID string, ref models.LinkRef) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("docservice: unlink: %v: %w", err, apperr.ErrInvalidInput)
	}
	if err := s.store.RemoveLink(ctx, tenantID, documentID, ref); err != nil {
		return fmt.Errorf("docservice: unlink: %w", err)
	}
	s.publisher.PublishDocumentEvent(sse.KindLinked, tenantID, documentID)
	return nil
}

// Archive moves a document to the terminal archived status.
func (s *Service) Archive(ctx context.Context, tenantID, id string) (*models.Document, error) {
	return s.transition(ctx, tenantID, id, models.StatusArchived, sse.KindArchived)
}

// Reject marks a document as rejected by a reviewer.
func (s *Service) Reject(ctx context.Context, tenantID, id string) (*models.Document, error) {
	return s.transition(ctx, tenantID, id, models.StatusRejected, sse.KindRejected)
}

func (s *Service) transition(ctx context.Context, tenantID, id string, to models.Status, event string) (*models.Document, error) {
	doc, err := s.store.GetDocument(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("docservice: %s: %w", to, err)
	}
	if !doc.Status.CanTransition(to) {
		return nil, fmt.Errorf("docservice: %s: document is %s: %w", to, doc.Status, apperr.ErrConflict)
	}
	if err := s.store.UpdateStatus(ctx, tenantID, id, doc.Status, to); err != nil {
		return nil, fmt.Errorf("docservice: %s: %w", to, err)
	}
	doc.Status = to
	doc.UpdatedAt = s.timestamp()
	s.publisher.PublishDocumentEvent(event, tenantID, id)
	s.logger.Info("document status changed",
		slog.String("document_id", id),
		slog.String("tenant_id", tenantID),
		slog.String("status", string(to)))
	return doc, nil
}

// Delete soft-deletes a document. Its bytes stay in the object store, which
// is content-addressed and may serve a later upload of the same content.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.store.SoftDelete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("docservice: delete: %w", err)
	}
	s.publisher.PublishDocumentEvent(sse.KindDeleted, tenantID, id)
	s.logger.Info("document deleted", slog.String("document_id", id), slog.String("tenant_id", tenantID))
	return nil
}

// Search runs a full-text query over extracted text and filenames.
func (s *Service) Search(ctx context.Context, tenantID, query string, limit int) ([]docstore.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("docservice: search: empty query: %w", apperr.ErrInvalidInput)
	}
	results, err := s.store.Search(ctx, tenantID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("docservice: search: %w", err)
	}
	return results, nil
}

// UpsertEntity records a catalogue entity documents can be linked to.
func (s *Service) UpsertEntity(ctx context.Context, e models.Entity) error {
	switch {
	case e.TenantID == "" || e.ID == "":
		return fmt.Errorf("docservice: upsert entity: tenant and id are required: %w", apperr.ErrInvalidInput)
	case !e.Kind.Scoped():
		return fmt.Errorf("docservice: upsert entity: kind %q cannot be catalogued: %w", e.Kind, apperr.ErrInvalidInput)
	case e.ExpectedRent != nil && e.ExpectedRent.IsNegative():
		return fmt.Errorf("docservice: upsert entity: negative expected rent: %w", apperr.ErrInvalidInput)
	}
	if err := s.store.UpsertEntity(ctx, e); err != nil {
		return fmt.Errorf("docservice: upsert entity: %w", err)
	}
	return nil
}

// validateRefs checks link targets: well formed, and scoped targets present
// in the tenant's catalogue.
func (s *Service) validateRefs(ctx context.Context, tenantID string, refs []models.LinkRef) error {
	for _, ref := range refs {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, apperr.ErrInvalidInput)
		}
		if !ref.LinkedType.Scoped() {
			continue
		}
		ok, err := s.store.EntityExists(ctx, tenantID, ref.LinkedType, ref.LinkedID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s %s: %w", ref.LinkedType, ref.LinkedID, apperr.ErrNotFound)
		}
	}
	return nil
}
