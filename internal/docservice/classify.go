package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/paperasse/internal/analyzer"
	"github.com/starford/paperasse/internal/apperr"
	"github.com/starford/paperasse/internal/checksum"
	"github.com/starford/paperasse/internal/docstore"
	"github.com/starford/paperasse/internal/jobs"
	"github.com/starford/paperasse/internal/metrics"
	"github.com/starford/paperasse/internal/models"
	"github.com/starford/paperasse/internal/ocr"
	"github.com/starford/paperasse/internal/sse"
)

// ClassifyResult is the outcome of a classification pass.
type ClassifyResult struct {
	Document   *models.Document    `json:"document"`
	Extraction analyzer.Extraction `json:"extraction"`
	Plan       analyzer.ActionPlan `json:"plan"`
}

// Analyze runs the analyzer on text. With a tenant, receipts are associated
// with the tenant's leases.
func (s *Service) Analyze(ctx context.Context, tenantID, text string) (analyzer.Extraction, analyzer.ActionPlan, error) {
	var leases []analyzer.Lease
	if tenantID != "" {
		var err error
		if leases, err = s.leases(ctx, tenantID); err != nil {
			return analyzer.Extraction{}, analyzer.ActionPlan{}, fmt.Errorf("docservice: analyze: %w", err)
		}
	}
	ext := s.analyzer.Analyze(text, leases)
	return ext, analyzer.GenerateActionPlan(ext), nil
}

// Classify analyses the stored text of a document and replaces its
// classification. The document becomes classified, or stays pending when
// the result needs manual review. Absent or partial text is accepted.
func (s *Service) Classify(ctx context.Context, tenantID, id string) (*ClassifyResult, error) {
	start := s.now()

	doc, err := s.store.GetDocument(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("docservice: classify: %w", err)
	}
	if doc.Status == models.StatusArchived || doc.Status == models.StatusRejected {
		return nil, fmt.Errorf("docservice: classify: document is %s: %w", doc.Status, apperr.ErrConflict)
	}

	leases, err := s.leases(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("docservice: classify: %w", err)
	}
	ext := s.analyzer.Analyze(doc.ExtractedText, leases)

	if doc.TextHash != "" {
		ids, err := s.store.FindByTextHash(ctx, tenantID, doc.TextHash)
		if err != nil {
			return nil, fmt.Errorf("docservice: classify: %w", err)
		}
		for _, other := range ids {
			if other != doc.ID {
				ext.IsDuplicate = true
				break
			}
		}
	}

	status := models.StatusClassified
	if ext.NeedsManualReview {
		status = models.StatusPending
	}
	classification := toClassification(ext)
	at := s.timestamp()
	if err := s.store.UpdateClassification(ctx, tenantID, id, doc.Status, classification, status, at); err != nil {
		return nil, fmt.Errorf("docservice: classify: %w", err)
	}

	doc.Classification = &classification
	doc.Status = status
	doc.ClassifiedAt = &at
	doc.UpdatedAt = at

	s.metrics.ObserveAnalysis(string(ext.Type), ext.Anomalies, ext.NeedsManualReview, start)
	s.publisher.PublishDocumentEvent(sse.KindClassified, tenantID, id)
	s.logger.Info("document classified",
		slog.String("document_id", id),
		slog.String("tenant_id", tenantID),
		slog.String("type", string(ext.Type)),
		slog.Float64("confidence", ext.Confidence),
		slog.Bool("needs_manual_review", ext.NeedsManualReview))

	return &ClassifyResult{Document: doc, Extraction: ext, Plan: analyzer.GenerateActionPlan(ext)}, nil
}

// HandleJob consumes queued jobs. An OCR job recognizes the stored bytes,
// records the text and classifies the document. Unreadable input marks OCR
// as failed and still classifies, so the document surfaces for review.
// Returning an error makes the queue redeliver the job.
func (s *Service) HandleJob(ctx context.Context, job *jobs.Job) error {
	d := job.Descriptor
	log := s.logger.With(slog.String("job_id", job.ID), slog.String("document_id", d.DocumentID), slog.String("tenant_id", d.TenantID))
	if d.Kind != jobs.KindOCR {
		log.Warn("unknown job kind, dropping", slog.String("kind", d.Kind))
		return nil
	}

	doc, err := s.store.GetDocument(ctx, d.TenantID, d.DocumentID)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Info("document gone before ocr, dropping job")
		return nil
	}
	if err != nil {
		s.metrics.IncOCRJob(metrics.OCRRetried)
		return fmt.Errorf("docservice: ocr job: %w", err)
	}

	update, err := s.recognize(ctx, doc)
	if err != nil {
		s.metrics.IncOCRJob(metrics.OCRRetried)
		return fmt.Errorf("docservice: ocr job: %w", err)
	}
	if err := s.store.UpdateOCR(ctx, d.TenantID, doc.ID, update); err != nil {
		s.metrics.IncOCRJob(metrics.OCRRetried)
		return fmt.Errorf("docservice: ocr job: %w", err)
	}
	if update.Status == models.OCRFailed {
		s.metrics.IncOCRJob(metrics.OCRFailed)
	} else {
		s.metrics.IncOCRJob(metrics.OCRProcessed)
	}

	if _, err := s.Classify(ctx, d.TenantID, doc.ID); err != nil {
		if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrNotFound) {
			log.Info("document changed during ocr, classification skipped", slog.String("error", err.Error()))
			return nil
		}
		return err
	}
	return nil
}

// recognize returns the OCR outcome for doc. Only infrastructure failures
// are returned as errors.
func (s *Service) recognize(ctx context.Context, doc *models.Document) (docstore.OCRUpdate, error) {
	failed := docstore.OCRUpdate{Status: models.OCRFailed}

	data, err := s.objects.Get(ctx, doc.StorageKey)
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Error("stored bytes missing", slog.String("document_id", doc.ID), slog.String("storage_key", doc.StorageKey))
		return failed, nil
	}
	if err != nil {
		return docstore.OCRUpdate{}, err
	}

	res, err := s.recognizer.Recognize(ctx, doc.Filename, doc.MimeType, data)
	if errors.Is(err, apperr.ErrUnreadable) || errors.Is(err, ocr.ErrUnsupported) {
		s.logger.Warn("text recognition failed",
			slog.String("document_id", doc.ID),
			slog.String("mime_type", doc.MimeType),
			slog.String("error", err.Error()))
		return failed, nil
	}
	if err != nil {
		return docstore.OCRUpdate{}, err
	}

	return docstore.OCRUpdate{
		Status:     models.OCRProcessed,
		Text:       res.Text,
		TextHash:   checksum.TextSum(res.Text),
		Confidence: res.Confidence,
		Vendor:     res.Vendor,
	}, nil
}

func (s *Service) leases(ctx context.Context, tenantID string) ([]analyzer.Lease, error) {
	entities, err := s.store.ListLeases(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]analyzer.Lease, 0, len(entities))
	for _, e := range entities {
		if e.ExpectedRent == nil {
			continue
		}
		out = append(out, analyzer.Lease{ID: e.ID, PropertyID: e.PropertyID, ExpectedRent: *e.ExpectedRent})
	}
	return out, nil
}

func toClassification(ext analyzer.Extraction) models.Classification {
	return models.Classification{
		Type:              string(ext.Type),
		Confidence:        ext.Confidence,
		Amount:            ext.Amount,
		Date:              ext.Date,
		Period:            ext.Period,
		Year:              ext.Year,
		Nature:            ext.Nature,
		PropertyRef:       ext.PropertyRef,
		LeaseRef:          ext.LeaseRef,
		Anomalies:         nonNilSlice(ext.Anomalies),
		IsDuplicate:       ext.IsDuplicate,
		NeedsManualReview: ext.NeedsManualReview,
	}
}
