package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/paperasse/internal/apperr"
	"github.com/starford/paperasse/internal/checksum"
	"github.com/starford/paperasse/internal/jobs"
	"github.com/starford/paperasse/internal/metrics"
	"github.com/starford/paperasse/internal/models"
	"github.com/starford/paperasse/internal/ocr"
	"github.com/starford/paperasse/internal/sse"
	"github.com/starford/paperasse/internal/storage"
)

// UploadInput describes a new document.
type UploadInput struct {
	TenantID string
	OwnerID  string
	Filename string
	MimeType string
	Data     []byte
	Links    []models.LinkRef
	Tags     []string
	// Global attaches the document to the global scope in addition to Links.
	Global bool
}

// UploadResult is the outcome of an upload. When AlreadyExists is set,
// Document is the original holding the same bytes and nothing was written.
type UploadResult struct {
	Document      *models.Document `json:"document"`
	AlreadyExists bool             `json:"alreadyExists"`
}

// VersionInput describes the bytes of a new version. Empty fields inherit
// from the predecessor.
type VersionInput struct {
	Filename string
	MimeType string
	Data     []byte
}

// Upload stores a document once per distinct content in the tenant. The
// dedup gate runs before any storage write: identical bytes return the
// original. New documents are queued for OCR.
//
// An upload without any link is attached to the global scope.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(in.TenantID) == "" || strings.TrimSpace(in.Filename) == "" || len(in.Data) == 0 {
		return nil, fmt.Errorf("docservice: upload: tenant, filename and content are required: %w", apperr.ErrInvalidInput)
	}

	hash := checksum.Sum(in.Data)
	if existing, err := s.store.FindByContentHash(ctx, in.TenantID, hash); err != nil {
		return nil, fmt.Errorf("docservice: upload: %w", err)
	} else if existing != nil {
		return s.alreadyExists(existing), nil
	}

	refs := append([]models.LinkRef(nil), in.Links...)
	if in.Global || len(refs) == 0 {
		refs = append(refs, models.GlobalLink)
	}
	if err := s.validateRefs(ctx, in.TenantID, refs); err != nil {
		return nil, fmt.Errorf("docservice: upload: %w", err)
	}

	doc := s.newDocument(in.TenantID, in.OwnerID, in.Filename, in.MimeType, in.Data, hash)
	for _, ref := range refs {
		doc.Links = append(doc.Links, models.DocumentLink{LinkedType: ref.LinkedType, LinkedID: ref.LinkedID})
	}
	doc.Tags = normalizeTags(in.Tags)

	created, err := s.putObject(ctx, doc, in.Data)
	if err != nil {
		return nil, fmt.Errorf("docservice: upload: %w", err)
	}

	if err := s.store.InsertDocument(ctx, doc); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			// A concurrent upload of the same bytes won the insert and
			// shares the blob.
			if existing, ferr := s.store.FindByContentHash(ctx, in.TenantID, hash); ferr == nil && existing != nil {
				return s.alreadyExists(existing), nil
			}
		} else {
			s.releaseObject(ctx, doc, created)
		}
		return nil, fmt.Errorf("docservice: upload: %w", err)
	}

	if err := s.enqueueOCR(ctx, doc); err != nil {
		return nil, fmt.Errorf("docservice: upload: %w", err)
	}

	s.metrics.IncUpload(metrics.OutcomeCreated)
	s.publisher.PublishDocumentEvent(sse.KindCreated, doc.TenantID, doc.ID)
	s.logger.Info("document uploaded",
		slog.String("document_id", doc.ID),
		slog.String("tenant_id", doc.TenantID),
		slog.String("content_hash", hash),
		slog.Int64("size", doc.Size))

	return &UploadResult{Document: doc}, nil
}

func (s *Service) alreadyExists(existing *models.Document) *UploadResult {
	s.metrics.IncUpload(metrics.OutcomeExactDuplicate)
	s.logger.Info("upload short-circuited by exact duplicate",
		slog.String("document_id", existing.ID),
		slog.String("tenant_id", existing.TenantID),
		slog.String("content_hash", existing.ContentHash))
	return &UploadResult{Document: existing, AlreadyExists: true}
}

// CheckDuplicates reports an exact duplicate by raw-byte hash and near
// duplicates by normalized-text hash. Only identical text hashes are
// detected; their similarity is 1.0. The exact duplicate is not repeated in
// the near list.
func (s *Service) CheckDuplicates(ctx context.Context, tenantID string, q models.DuplicateQuery) (*models.DuplicateReport, error) {
	if tenantID == "" || (q.ContentHash == "" && q.TextHash == "") {
		return nil, fmt.Errorf("docservice: check duplicates: tenant and a hash are required: %w", apperr.ErrInvalidInput)
	}

	report := &models.DuplicateReport{NearDuplicates: []models.NearDuplicate{}}
	if q.ContentHash != "" {
		exact, err := s.store.FindByContentHash(ctx, tenantID, q.ContentHash)
		if err != nil {
			return nil, fmt.Errorf("docservice: check duplicates: %w", err)
		}
		if exact != nil {
			report.HasExactDuplicate = true
			report.ExactDocumentID = exact.ID
		}
	}

	if q.TextHash != "" {
		ids, err := s.store.FindByTextHash(ctx, tenantID, q.TextHash)
		if err != nil {
			return nil, fmt.Errorf("docservice: check duplicates: %w", err)
		}
		for _, id := range ids {
			if id == report.ExactDocumentID {
				continue
			}
			report.NearDuplicates = append(report.NearDuplicates, models.NearDuplicate{DocumentID: id, Similarity: 1.0})
		}
	}
	return report, nil
}

// CreateNewVersion stores data as the successor of predecessorID. The new
// document inherits links, tags and owner, gets the next version number,
// and the predecessor is archived in the same transaction. Identical bytes
// already stored in the tenant are rejected with ErrAlreadyExists.
func (s *Service) CreateNewVersion(ctx context.Context, tenantID, predecessorID string, in VersionInput) (*models.Document, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("docservice: create version: content is required: %w", apperr.ErrInvalidInput)
	}

	prev, err := s.store.GetDocument(ctx, tenantID, predecessorID)
	if err != nil {
		return nil, fmt.Errorf("docservice: create version: %w", err)
	}

	hash := checksum.Sum(in.Data)
	if existing, err := s.store.FindByContentHash(ctx, tenantID, hash); err != nil {
		return nil, fmt.Errorf("docservice: create version: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("docservice: create version: content already stored as %s: %w", existing.ID, apperr.ErrAlreadyExists)
	}

	filename := in.Filename
	if filename == "" {
		filename = prev.Filename
	}
	mimeType := in.MimeType
	if mimeType == "" && filename == prev.Filename {
		mimeType = prev.MimeType
	}

	doc := s.newDocument(tenantID, prev.OwnerID, filename, mimeType, in.Data, hash)
	doc.ReplacesDocumentID = prev.ID
	for _, l := range prev.Links {
		doc.Links = append(doc.Links, models.DocumentLink{LinkedType: l.LinkedType, LinkedID: l.LinkedID})
	}
	doc.Tags = append([]string{}, prev.Tags...)

	created, err := s.putObject(ctx, doc, in.Data)
	if err != nil {
		return nil, fmt.Errorf("docservice: create version: %w", err)
	}
	if err := s.store.InsertVersion(ctx, doc); err != nil {
		if !errors.Is(err, apperr.ErrAlreadyExists) {
			s.releaseObject(ctx, doc, created)
		}
		return nil, fmt.Errorf("docservice: create version: %w", err)
	}
	if err := s.enqueueOCR(ctx, doc); err != nil {
		return nil, fmt.Errorf("docservice: create version: %w", err)
	}

	s.metrics.IncUpload(metrics.OutcomeCreated)
	s.publisher.PublishDocumentEvent(sse.KindVersioned, tenantID, doc.ID)
	s.publisher.PublishDocumentEvent(sse.KindArchived, tenantID, prev.ID)
	s.logger.Info("document version created",
		slog.String("document_id", doc.ID),
		slog.String("replaces_document_id", prev.ID),
		slog.String("tenant_id", tenantID),
		slog.Int("version", doc.Version))
	return doc, nil
}

// Versions returns the version chain containing id, oldest first.
func (s *Service) Versions(ctx context.Context, tenantID, id string) ([]models.Document, error) {
	doc, err := s.store.GetDocument(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("docservice: versions: %w", err)
	}
	chain, err := s.store.Lineage(ctx, tenantID, doc.LineageID)
	if err != nil {
		return nil, fmt.Errorf("docservice: versions: %w", err)
	}
	return chain, nil
}

// Latest returns the newest live version of the chain containing id.
func (s *Service) Latest(ctx context.Context, tenantID, id string) (*models.Document, error) {
	chain, err := s.Versions(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("docservice: latest: %w", apperr.ErrNotFound)
	}
	latest := chain[len(chain)-1]
	return &latest, nil
}

// Reprocess queues another OCR pass for a document.
func (s *Service) Reprocess(ctx context.Context, tenantID, id string) error {
	doc, err := s.store.GetDocument(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("docservice: reprocess: %w", err)
	}
	if err := s.enqueueOCR(ctx, doc); err != nil {
		return fmt.Errorf("docservice: reprocess: %w", err)
	}
	return nil
}

func (s *Service) newDocument(tenantID, ownerID, filename, mimeType string, data []byte, hash string) *models.Document {
	now := s.timestamp()
	id := uuid.Must(uuid.NewV7()).String()
	return &models.Document{
		ID:          id,
		TenantID:    tenantID,
		OwnerID:     ownerID,
		Filename:    filename,
		MimeType:    ocr.DetectMediaType(filename, mimeType, data),
		Size:        int64(len(data)),
		ContentHash: hash,
		Status:      models.StatusPending,
		OCRStatus:   models.OCRPending,
		Version:     1,
		LineageID:   id,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// putObject stores data for doc and reports whether the blob was written
// by this call.
func (s *Service) putObject(ctx context.Context, doc *models.Document, data []byte) (bool, error) {
	obj, err := s.objects.Put(ctx, storage.ObjectKey(doc.TenantID, doc.ContentHash, doc.Filename), data)
	if err != nil {
		return false, err
	}
	doc.StorageKey = obj.Key
	doc.URL = obj.URL
	return obj.Created, nil
}

// releaseObject removes a blob written for a document that was never
// inserted. Blobs that existed before the upload are left alone.
func (s *Service) releaseObject(ctx context.Context, doc *models.Document, created bool) {
	if !created {
		return
	}
	if err := s.objects.Delete(context.WithoutCancel(ctx), doc.StorageKey); err != nil {
		s.logger.Warn("failed to release orphaned blob",
			slog.String("storage_key", doc.StorageKey),
			slog.String("error", err.Error()))
	}
}

func (s *Service) enqueueOCR(ctx context.Context, doc *models.Document) error {
	_, err := s.queue.Enqueue(ctx, jobs.Descriptor{Kind: jobs.KindOCR, DocumentID: doc.ID, TenantID: doc.TenantID})
	return err
}

func normalizeTags(tags []string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
