package docservice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/starford/paperasse/internal/apperr"
	"github.com/starford/paperasse/internal/checksum"
	"github.com/starford/paperasse/internal/docstore"
	"github.com/starford/paperasse/internal/jobs"
	"github.com/starford/paperasse/internal/models"
	"github.com/starford/paperasse/internal/ocr"
	"github.com/starford/paperasse/internal/sse"
	"github.com/starford/paperasse/internal/storage"
	"github.com/starford/paperasse/internal/testutil"
)

const (
	tenantA = "tenant-a"
	tenantB = "tenant-b"

	receiptText = "QUITTANCE DE LOYER\nOctobre 2025\nMontant : 850,00 €\nLocataire : M. Dubois"
)

var fixedNow = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

type recordedEvent struct {
	kind, tenantID, documentID string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishDocumentEvent(kind, tenantID, documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind, tenantID, documentID})
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.kind)
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	db        *docstore.DB
	objects   *storage.FS
	queue     *jobs.Queue
	publisher *recordingPublisher
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	t := s.T()
	s.ctx = context.Background()
	s.db = testutil.TestDB(t)
	s.queue = testutil.TestQueue(t, s.db)
	s.publisher = &recordingPublisher{}
	s.objects = testutil.TestObjects(t)
	s.svc = NewService(s.db, s.objects, s.queue,
		WithPublisher(s.publisher),
		WithClock(func() time.Time { return fixedNow }))
}

func (s *ServiceSuite) upload(tenantID, filename, body string, links ...models.LinkRef) *UploadResult {
	res, err := s.svc.Upload(s.ctx, UploadInput{
		TenantID: tenantID,
		Filename: filename,
		MimeType: "text/plain",
		Data:     []byte(body),
		Links:    links,
	})
	s.Require().NoError(err)
	return res
}

// process claims and handles every queued job.
func (s *ServiceSuite) process() {
	for {
		job, err := s.queue.Claim(s.ctx)
		s.Require().NoError(err)
		if job == nil {
			return
		}
		s.Require().NoError(s.svc.HandleJob(s.ctx, job))
		s.Require().NoError(s.queue.Ack(s.ctx, job.ID))
	}
}

func (s *ServiceSuite) catalogueLease(id, propertyID, rent string) {
	s.Require().NoError(s.svc.UpsertEntity(s.ctx, models.Entity{TenantID: tenantA, Kind: models.LinkProperty, ID: propertyID}))
	amount := decimal.RequireFromString(rent)
	s.Require().NoError(s.svc.UpsertEntity(s.ctx, models.Entity{
		TenantID: tenantA, Kind: models.LinkLease, ID: id, PropertyID: propertyID, ExpectedRent: &amount,
	}))
}

func (s *ServiceSuite) TestUploadIdenticalBytesStoresOnce() {
	first := s.upload(tenantA, "quittance.txt", receiptText)
	s.False(first.AlreadyExists)

	second := s.upload(tenantA, "copie.txt", receiptText)
	s.True(second.AlreadyExists)
	s.Equal(first.Document.ID, second.Document.ID)

	docs, total, err := s.svc.List(s.ctx, tenantA, ListQuery{})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Len(docs, 1)

	pending, err := s.queue.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, pending)
	s.Equal([]string{sse.KindCreated}, s.publisher.kinds())
}

func (s *ServiceSuite) TestUploadDedupIsPerTenant() {
	a := s.upload(tenantA, "quittance.txt", receiptText)
	b := s.upload(tenantB, "quittance.txt", receiptText)

	s.False(b.AlreadyExists)
	s.NotEqual(a.Document.ID, b.Document.ID)

	_, err := s.svc.Get(s.ctx, tenantB, a.Document.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *ServiceSuite) TestUploadValidation() {
	_, err := s.svc.Upload(s.ctx, UploadInput{TenantID: tenantA, Filename: "empty.txt"})
	s.ErrorIs(err, apperr.ErrInvalidInput)

	_, err = s.svc.Upload(s.ctx, UploadInput{
		TenantID: tenantA, Filename: "a.txt", Data: []byte("x"),
		Links: []models.LinkRef{{LinkedType: "building", LinkedID: "1"}},
	})
	s.ErrorIs(err, apperr.ErrInvalidInput)

	_, err = s.svc.Upload(s.ctx, UploadInput{
		TenantID: tenantA, Filename: "a.txt", Data: []byte("x"),
		Links: []models.LinkRef{{LinkedType: models.LinkProperty, LinkedID: "unknown"}},
	})
	s.ErrorIs(err, apperr.ErrNotFound)

	_, total, err := s.svc.List(s.ctx, tenantA, ListQuery{})
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *ServiceSuite) TestUnlinkedUploadIsGlobal() {
	res := s.upload(tenantA, "note.txt", "hello")
	s.True(res.Document.HasLink(models.GlobalLink))

	docs, _, err := s.svc.List(s.ctx, tenantA, ListQuery{Ref: models.GlobalLink})
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal(res.Document.ID, docs[0].ID)
}

func (s *ServiceSuite) TestScopedUploadStaysOutOfGlobalListing() {
	s.catalogueLease("lease-1", "prop-1", "850")
	prop := models.LinkRef{LinkedType: models.LinkProperty, LinkedID: "prop-1"}
	res := s.upload(tenantA, "diag.txt", "diagnostic", prop)

	docs, _, err := s.svc.List(s.ctx, tenantA, ListQuery{Ref: prop})
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal(res.Document.ID, docs[0].ID)

	_, total, err := s.svc.List(s.ctx, tenantA, ListQuery{})
	s.Require().NoError(err)
	s.Zero(total)

	_, err = s.svc.Link(s.ctx, tenantA, res.Document.ID, models.GlobalLink)
	s.Require().NoError(err)
	_, total, err = s.svc.List(s.ctx, tenantA, ListQuery{})
	s.Require().NoError(err)
	s.Equal(1, total)

	s.Require().NoError(s.svc.Unlink(s.ctx, tenantA, res.Document.ID, prop))
	_, total, err = s.svc.List(s.ctx, tenantA, ListQuery{Ref: prop})
	s.Require().NoError(err)
	s.Zero(total)
	s.ErrorIs(s.svc.Unlink(s.ctx, tenantA, res.Document.ID, prop), apperr.ErrNotFound)
}

func (s *ServiceSuite) TestLinkRequiresCatalogueEntity() {
	res := s.upload(tenantA, "note.txt", "hello")

	_, err := s.svc.Link(s.ctx, tenantA, res.Document.ID, models.LinkRef{LinkedType: models.LinkLoan, LinkedID: "loan-9"})
	s.ErrorIs(err, apperr.ErrNotFound)

	s.Require().NoError(s.svc.UpsertEntity(s.ctx, models.Entity{TenantID: tenantA, Kind: models.LinkLoan, ID: "loan-9"}))
	link, err := s.svc.Link(s.ctx, tenantA, res.Document.ID, models.LinkRef{LinkedType: models.LinkLoan, LinkedID: "loan-9"})
	s.Require().NoError(err)
	s.Equal(res.Document.ID, link.DocumentID)

	again, err := s.svc.Link(s.ctx, tenantA, res.Document.ID, models.LinkRef{LinkedType: models.LinkLoan, LinkedID: "loan-9"})
	s.Require().NoError(err)
	s.Equal(link.ID, again.ID)

	linked := 0
	for _, k := range s.publisher.kinds() {
		if k == sse.KindLinked {
			linked++
		}
	}
	s.Equal(1, linked)
}

func (s *ServiceSuite) TestUpsertEntityValidation() {
	negative := decimal.NewFromInt(-1)
	for _, e := range []models.Entity{
		{TenantID: tenantA, Kind: models.LinkGlobal, ID: "x"},
		{TenantID: tenantA, Kind: models.LinkLease},
		{TenantID: tenantA, Kind: models.LinkLease, ID: "l", ExpectedRent: &negative},
	} {
		s.ErrorIs(s.svc.UpsertEntity(s.ctx, e), apperr.ErrInvalidInput)
	}
}

func (s *ServiceSuite) TestCreateNewVersion() {
	s.catalogueLease("lease-1", "prop-1", "850")
	lease := models.LinkRef{LinkedType: models.LinkLease, LinkedID: "lease-1"}
	v1 := s.upload(tenantA, "bail.txt", "CONTRAT DE BAIL v1", lease).Document

	v2, err := s.svc.CreateNewVersion(s.ctx, tenantA, v1.ID, VersionInput{Data: []byte("CONTRAT DE BAIL v2")})
	s.Require().NoError(err)
	s.Equal(2, v2.Version)
	s.Equal(v1.ID, v2.ReplacesDocumentID)
	s.Equal(v1.LineageID, v2.LineageID)
	s.Equal("bail.txt", v2.Filename)
	s.True(v2.HasLink(lease))

	prev, err := s.svc.Get(s.ctx, tenantA, v1.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, prev.Status)

	chain, err := s.svc.Versions(s.ctx, tenantA, v1.ID)
	s.Require().NoError(err)
	s.Require().Len(chain, 2)
	s.Equal(v1.ID, chain[0].ID)

	latest, err := s.svc.Latest(s.ctx, tenantA, v1.ID)
	s.Require().NoError(err)
	s.Equal(v2.ID, latest.ID)

	docs, _, err := s.svc.List(s.ctx, tenantA, ListQuery{Ref: lease})
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal(v2.ID, docs[0].ID)

	_, err = s.svc.CreateNewVersion(s.ctx, tenantA, v1.ID, VersionInput{Data: []byte("CONTRAT DE BAIL v3")})
	s.ErrorIs(err, apperr.ErrConflict)

	_, err = s.svc.CreateNewVersion(s.ctx, tenantA, v2.ID, VersionInput{Data: []byte("CONTRAT DE BAIL v1")})
	s.ErrorIs(err, apperr.ErrAlreadyExists)

	_, err = s.svc.CreateNewVersion(s.ctx, tenantB, v2.ID, VersionInput{Data: []byte("other")})
	s.ErrorIs(err, apperr.ErrNotFound)

	s.Contains(s.publisher.kinds(), sse.KindVersioned)
}

func (s *ServiceSuite) TestRejectedVersionReleasesItsBlob() {
	v1 := s.upload(tenantA, "bail.txt", "CONTRAT DE BAIL v1").Document
	_, err := s.svc.CreateNewVersion(s.ctx, tenantA, v1.ID, VersionInput{Data: []byte("CONTRAT DE BAIL v2")})
	s.Require().NoError(err)

	orphan := []byte("CONTRAT DE BAIL v3")
	_, err = s.svc.CreateNewVersion(s.ctx, tenantA, v1.ID, VersionInput{Data: orphan})
	s.Require().ErrorIs(err, apperr.ErrConflict)

	_, err = s.objects.Get(s.ctx, storage.ObjectKey(tenantA, checksum.Sum(orphan), "bail.txt"))
	s.ErrorIs(err, apperr.ErrNotFound)

	data, err := s.objects.Get(s.ctx, v1.StorageKey)
	s.Require().NoError(err)
	s.Equal("CONTRAT DE BAIL v1", string(data))
}

func (s *ServiceSuite) TestOCRJobClassifiesReceipt() {
	s.catalogueLease("lease-1", "prop-1", "848.50")
	doc := s.upload(tenantA, "quittance.txt", receiptText).Document
	s.process()

	got, err := s.svc.Get(s.ctx, tenantA, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.OCRProcessed, got.OCRStatus)
	s.Equal(receiptText, got.ExtractedText)
	s.Equal(checksum.TextSum(receiptText), got.TextHash)
	s.Equal(models.StatusClassified, got.Status)
	s.Require().NotNil(got.Classification)
	s.Equal("receipt", got.Classification.Type)
	s.Equal("lease-1", got.Classification.LeaseRef)
	s.Equal("prop-1", got.Classification.PropertyRef)
	s.False(got.Classification.NeedsManualReview)
	s.Contains(s.publisher.kinds(), sse.KindClassified)
}

func (s *ServiceSuite) TestOCRJobOnUnreadableBytesStillClassifies() {
	doc := s.upload(tenantA, "broken.txt", "\xff\xfe\xfd").Document
	s.process()

	got, err := s.svc.Get(s.ctx, tenantA, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.OCRFailed, got.OCRStatus)
	s.Equal(models.StatusPending, got.Status)
	s.Require().NotNil(got.Classification)
	s.True(got.Classification.NeedsManualReview)
}

func (s *ServiceSuite) TestSameTextFlagsDuplicate() {
	first := s.upload(tenantA, "a.txt", receiptText).Document
	second := s.upload(tenantA, "b.txt", receiptText+"\n\n").Document
	s.process()

	res, err := s.svc.Classify(s.ctx, tenantA, second.ID)
	s.Require().NoError(err)
	s.True(res.Extraction.IsDuplicate)
	s.True(res.Document.Classification.IsDuplicate)

	report, err := s.svc.CheckDuplicates(s.ctx, tenantA, models.DuplicateQuery{
		ContentHash: second.ContentHash,
		TextHash:    checksum.TextSum(receiptText),
	})
	s.Require().NoError(err)
	s.True(report.HasExactDuplicate)
	s.Equal(second.ID, report.ExactDocumentID)
	s.Equal([]models.NearDuplicate{{DocumentID: first.ID, Similarity: 1.0}}, report.NearDuplicates)
}

func (s *ServiceSuite) TestCheckDuplicatesRequiresHash() {
	_, err := s.svc.CheckDuplicates(s.ctx, tenantA, models.DuplicateQuery{})
	s.ErrorIs(err, apperr.ErrInvalidInput)

	report, err := s.svc.CheckDuplicates(s.ctx, tenantA, models.DuplicateQuery{ContentHash: "missing"})
	s.Require().NoError(err)
	s.False(report.HasExactDuplicate)
	s.NotNil(report.NearDuplicates)
}

func (s *ServiceSuite) TestStatusTransitions() {
	doc := s.upload(tenantA, "a.txt", "hello").Document

	rejected, err := s.svc.Reject(s.ctx, tenantA, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)

	_, err = s.svc.Reject(s.ctx, tenantA, doc.ID)
	s.ErrorIs(err, apperr.ErrConflict)

	_, err = s.svc.Classify(s.ctx, tenantA, doc.ID)
	s.ErrorIs(err, apperr.ErrConflict)

	archived, err := s.svc.Archive(s.ctx, tenantA, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, archived.Status)

	_, err = s.svc.Archive(s.ctx, tenantA, doc.ID)
	s.ErrorIs(err, apperr.ErrConflict)
}

func (s *ServiceSuite) TestDeleteReleasesContent() {
	doc := s.upload(tenantA, "a.txt", "hello").Document
	s.Require().NoError(s.svc.Delete(s.ctx, tenantA, doc.ID))

	_, err := s.svc.Get(s.ctx, tenantA, doc.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
	s.ErrorIs(s.svc.Delete(s.ctx, tenantA, doc.ID), apperr.ErrNotFound)

	again := s.upload(tenantA, "a.txt", "hello")
	s.False(again.AlreadyExists)
	s.NotEqual(doc.ID, again.Document.ID)
}

type failingRecognizer struct{ err error }

func (r failingRecognizer) Recognize(context.Context, string, string, []byte) (ocr.Result, error) {
	return ocr.Result{}, r.err
}

func (s *ServiceSuite) TestOCRTransientFailureIsRetried() {
	svc := NewService(s.db, testutil.TestObjects(s.T()), s.queue,
		WithRecognizer(failingRecognizer{err: errors.New("engine busy")}),
		WithClock(func() time.Time { return fixedNow }))
	res, err := svc.Upload(s.ctx, UploadInput{TenantID: tenantA, Filename: "q.txt", MimeType: "text/plain", Data: []byte(receiptText)})
	s.Require().NoError(err)

	job, err := s.queue.Claim(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(job)
	s.Error(svc.HandleJob(s.ctx, job))

	got, err := svc.Get(s.ctx, tenantA, res.Document.ID)
	s.Require().NoError(err)
	s.Equal(models.OCRPending, got.OCRStatus)
	s.Nil(got.Classification)
}

func (s *ServiceSuite) TestHandleJobDropsMissingDocument() {
	err := s.svc.HandleJob(s.ctx, &jobs.Job{ID: "j1", Descriptor: jobs.Descriptor{Kind: jobs.KindOCR, TenantID: tenantA, DocumentID: "gone"}})
	s.NoError(err)

	err = s.svc.HandleJob(s.ctx, &jobs.Job{ID: "j2", Descriptor: jobs.Descriptor{Kind: "thumbnail"}})
	s.NoError(err)
}

func (s *ServiceSuite) TestContentAndReprocess() {
	doc := s.upload(tenantA, "a.txt", "hello").Document
	s.process()

	got, data, err := s.svc.Content(s.ctx, tenantA, doc.ID)
	s.Require().NoError(err)
	s.Equal("hello", string(data))
	s.Equal(doc.ID, got.ID)

	s.Require().NoError(s.svc.Reprocess(s.ctx, tenantA, doc.ID))
	n, err := s.queue.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestAnalyzeWithoutTenant() {
	ext, plan, err := s.svc.Analyze(s.ctx, "", receiptText)
	s.Require().NoError(err)
	s.Equal("receipt", string(ext.Type))
	s.NotEmpty(plan.Actions)
}

func (s *ServiceSuite) TestSearch() {
	s.upload(tenantA, "quittance.txt", receiptText)
	s.process()

	results, err := s.svc.Search(s.ctx, tenantA, "Dubois", 10)
	s.Require().NoError(err)
	s.Len(results, 1)

	_, err = s.svc.Search(s.ctx, tenantA, "", 10)
	s.ErrorIs(err, apperr.ErrInvalidInput)
}
