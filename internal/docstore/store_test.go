package docstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/starford/paperasse/internal/apperr"
	"github.com/starford/paperasse/internal/models"
)

const tenantA = "tenant-a"

type DocStoreSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

func (s *DocStoreSuite) SetupTest() {
	db, err := Open(filepath.Join(s.T().TempDir(), "paperasse.db"))
	s.Require().NoError(err)
	s.db = db
	s.ctx = context.Background()
}

func (s *DocStoreSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func TestDocStoreSuite(t *testing.T) {
	suite.Run(t, new(DocStoreSuite))
}

func (s *DocStoreSuite) newDocument(tenantID, hash string, links ...models.LinkRef) *models.Document {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := &models.Document{
		ID:          id,
		TenantID:    tenantID,
		Filename:    hash + ".pdf",
		MimeType:    "application/pdf",
		Size:        42,
		ContentHash: hash,
		StorageKey:  tenantID + "/" + hash,
		Status:      models.StatusPending,
		OCRStatus:   models.OCRPending,
		Tags:        []string{"2025"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, ref := range links {
		doc.Links = append(doc.Links, models.DocumentLink{LinkedType: ref.LinkedType, LinkedID: ref.LinkedID})
	}
	return doc
}

func (s *DocStoreSuite) insert(doc *models.Document) *models.Document {
	s.Require().NoError(s.db.InsertDocument(s.ctx, doc))
	return doc
}

func (s *DocStoreSuite) TestSchemaCreation() {
	for _, table := range []string{"documents", "document_links", "document_tags", "entities"} {
		var count int
		s.Require().NoError(s.db.conn.QueryRow(`SELECT count(*) FROM `+table).Scan(&count), table)
	}
}

func (s *DocStoreSuite) TestInsertAndGet() {
	doc := s.insert(s.newDocument(tenantA, "h1", models.GlobalLink, models.LinkRef{LinkedType: models.LinkProperty, LinkedID: "p1"}))

	got, err := s.db.GetDocument(s.ctx, tenantA, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.ID, got.ID)
	s.Equal(1, got.Version)
	s.Equal(doc.ID, got.LineageID)
	s.Equal(models.StatusPending, got.Status)
	s.Equal([]string{"2025"}, got.Tags)
	s.Len(got.Links, 2)
	s.True(got.HasLink(models.GlobalLink))
	s.Nil(got.Classification)
	s.Equal(doc.CreatedAt, got.CreatedAt)
}

func (s *DocStoreSuite) TestGetIsTenantScoped() {
	doc := s.insert(s.newDocument(tenantA, "h1"))

	_, err := s.db.GetDocument(s.ctx, "tenant-b", doc.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *DocStoreSuite) TestContentHashUniquePerTenant() {
	s.insert(s.newDocument(tenantA, "same"))

	err := s.db.InsertDocument(s.ctx, s.newDocument(tenantA, "same"))
	s.ErrorIs(err, apperr.ErrAlreadyExists)

	s.NoError(s.db.InsertDocument(s.ctx, s.newDocument("tenant-b", "same")))

	var count int
	s.Require().NoError(s.db.conn.QueryRow(`SELECT count(*) FROM documents WHERE tenant_id = ?`, tenantA).Scan(&count))
	s.Equal(1, count)
}

func (s *DocStoreSuite) TestFindByContentHash() {
	doc := s.insert(s.newDocument(tenantA, "h1"))

	found, err := s.db.FindByContentHash(s.ctx, tenantA, "h1")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(doc.ID, found.ID)

	missing, err := s.db.FindByContentHash(s.ctx, tenantA, "nope")
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *DocStoreSuite) TestSoftDeleteReleasesHash() {
	doc := s.insert(s.newDocument(tenantA, "h1", models.GlobalLink))
	s.Require().NoError(s.db.SoftDelete(s.ctx, tenantA, doc.ID))

	_, err := s.db.GetDocument(s.ctx, tenantA, doc.ID)
	s.ErrorIs(err, apperr.ErrNotFound)

	found, err := s.db.FindByContentHash(s.ctx, tenantA, "h1")
	s.Require().NoError(err)
	s.Nil(found)

	docs, total, err := s.db.ListDocuments(s.ctx, tenantA, ListQuery{Ref: models.GlobalLink})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(docs)

	s.NoError(s.db.InsertDocument(s.ctx, s.newDocument(tenantA, "h1")))
	s.ErrorIs(s.db.SoftDelete(s.ctx, tenantA, doc.ID), apperr.ErrNotFound)
}

func (s *DocStoreSuite) TestInsertVersion() {
	first := s.insert(s.newDocument(tenantA, "v1", models.LinkRef{LinkedType: models.LinkLease, LinkedID: "l1"}))

	next := s.newDocument(tenantA, "v2", models.LinkRef{LinkedType: models.LinkLease, LinkedID: "l1"})
	next.ReplacesDocumentID = first.ID
	s.Require().NoError(s.db.InsertVersion(s.ctx, next))
	s.Equal(2, next.Version)
	s.Equal(first.ID, next.LineageID)

	prev, err := s.db.GetDocument(s.ctx, tenantA, first.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusArchived, prev.Status)

	lineage, err := s.db.Lineage(s.ctx, tenantA, first.ID)
	s.Require().NoError(err)
	s.Require().Len(lineage, 2)
	s.Equal(first.ID, lineage[0].ID)
	s.Equal(next.ID, lineage[1].ID)
	s.Equal(first.ID, lineage[1].ReplacesDocumentID)
}

func (s *DocStoreSuite) TestInsertVersionRejectsSecondSuccessor() {
	first := s.insert(s.newDocument(tenantA, "v1"))

	a := s.newDocument(tenantA, "v2a")
	a.ReplacesDocumentID = first.ID
	s.Require().NoError(s.db.InsertVersion(s.ctx, a))

	b := s.newDocument(tenantA, "v2b")
	b.ReplacesDocumentID = first.ID
	s.ErrorIs(s.db.InsertVersion(s.ctx, b), apperr.ErrConflict)

	_, err := s.db.GetDocument(s.ctx, tenantA, b.ID)
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *DocStoreSuite) TestInsertVersionUnknownPredecessor() {
	other := s.insert(s.newDocument("tenant-b", "v1"))

	next := s.newDocument(tenantA, "v2")
	next.ReplacesDocumentID = other.ID
	s.ErrorIs(s.db.InsertVersion(s.ctx, next), apperr.ErrNotFound)
}

func (s *DocStoreSuite) TestUniqueSuccessorConstraint() {
	first := s.insert(s.newDocument(tenantA, "v1"))
	a := s.newDocument(tenantA, "v2a")
	a.ReplacesDocumentID = first.ID
	s.Require().NoError(s.db.InsertVersion(s.ctx, a))

	// Bypass the successor check to exercise the constraint itself.
	b := s.newDocument(tenantA, "v2b")
	b.ReplacesDocumentID = first.ID
	b.LineageID = first.ID
	s.ErrorIs(s.db.InsertDocument(s.ctx, b), apperr.ErrConflict)
}

func (s *DocStoreSuite) TestListDocumentsGlobalUsesLinksOnly() {
	global := s.insert(s.newDocument(tenantA, "g", models.GlobalLink))
	scoped := s.insert(s.newDocument(tenantA, "p", models.LinkRef{LinkedType: models.LinkProperty, LinkedID: "p1"}))
	s.insert(s.newDocument(tenantA, "none"))

	docs, total, err := s.db.ListDocuments(s.ctx, tenantA, ListQuery{Ref: models.GlobalLink})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(docs, 1)
	s.Equal(global.ID, docs[0].ID)

	docs, total, err = s.db.ListDocuments(s.ctx, tenantA, ListQuery{Ref: models.LinkRef{LinkedType: models.LinkProperty, LinkedID: "p1"}})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(scoped.ID, docs[0].ID)

	docs, _, err = s.db.ListDocuments(s.ctx, "tenant-b", ListQuery{Ref: models.GlobalLink})
	s.Require().NoError(err)
	s.Empty(docs)
}

func (s *DocStoreSuite) TestListDocumentsHidesArchived() {
	doc := s.insert(s.newDocument(tenantA, "a", models.GlobalLink))
	s.Require().NoError(s.db.UpdateStatus(s.ctx, tenantA, doc.ID, models.StatusPending, models.StatusArchived))

	docs, _, err := s.db.ListDocuments(s.ctx, tenantA, ListQuery{Ref: models.GlobalLink})
	s.Require().NoError(err)
	s.Empty(docs)

	docs, _, err = s.db.ListDocuments(s.ctx, tenantA, ListQuery{Ref: models.GlobalLink, IncludeArchived: true})
	s.Require().NoError(err)
	s.Len(docs, 1)

	docs, _, err = s.db.ListDocuments(s.ctx, tenantA, ListQuery{Ref: models.GlobalLink, Status: models.StatusArchived})
	s.Require().NoError(err)
	s.Len(docs, 1)
}

func (s *DocStoreSuite) TestListDocumentsPagination() {
	for _, h := range []string{"a", "b", "c"} {
		s.insert(s.newDocument(tenantA, h, models.GlobalLink))
	}
	docs, total, err := s.db.ListDocuments(s.ctx, tenantA, ListQuery{Ref: models.GlobalLink, Limit: 2, Offset: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(docs, 1)
}

func (s *DocStoreSuite) TestLinks() {
	doc := s.insert(s.newDocument(tenantA, "h"))
	ref := models.LinkRef{LinkedType: models.LinkTenant, LinkedID: "t1"}

	first, err := s.db.AddLink(s.ctx, tenantA, doc.ID, ref)
	s.Require().NoError(err)
	again, err := s.db.AddLink(s.ctx, tenantA, doc.ID, ref)
	s.Require().NoError(err)
	s.Equal(first.ID, again.ID)

	_, err = s.db.AddLink(s.ctx, "tenant-b", doc.ID, ref)
	s.ErrorIs(err, apperr.ErrNotFound)

	got, err := s.db.GetDocument(s.ctx, tenantA, doc.ID)
	s.Require().NoError(err)
	s.Len(got.Links, 1)

	s.Require().NoError(s.db.RemoveLink(s.ctx, tenantA, doc.ID, ref))
	s.ErrorIs(s.db.RemoveLink(s.ctx, tenantA, doc.ID, ref), apperr.ErrNotFound)
}

func (s *DocStoreSuite) TestUpdateStatusCompareAndSet() {
	doc := s.insert(s.newDocument(tenantA, "h"))

	s.Require().NoError(s.db.UpdateStatus(s.ctx, tenantA, doc.ID, models.StatusPending, models.StatusRejected))
	s.ErrorIs(s.db.UpdateStatus(s.ctx, tenantA, doc.ID, models.StatusPending, models.StatusClassified), apperr.ErrConflict)
	s.ErrorIs(s.db.UpdateStatus(s.ctx, tenantA, "missing", models.StatusPending, models.StatusClassified), apperr.ErrNotFound)
}

func (s *DocStoreSuite) TestUpdateOCRAndTextHash() {
	a := s.insert(s.newDocument(tenantA, "a"))
	b := s.insert(s.newDocument(tenantA, "b"))

	for _, id := range []string{a.ID, b.ID} {
		s.Require().NoError(s.db.UpdateOCR(s.ctx, tenantA, id, OCRUpdate{
			Status: models.OCRProcessed, Text: "Quittance de loyer", TextHash: "t1", Confidence: 0.98, Vendor: "text-layer",
		}))
	}

	ids, err := s.db.FindByTextHash(s.ctx, tenantA, "t1")
	s.Require().NoError(err)
	s.Equal([]string{a.ID, b.ID}, ids)

	got, err := s.db.GetDocument(s.ctx, tenantA, a.ID)
	s.Require().NoError(err)
	s.Equal(models.OCRProcessed, got.OCRStatus)
	s.Equal("Quittance de loyer", got.ExtractedText)
	s.Equal("text-layer", got.OCRVendor)

	empty, err := s.db.FindByTextHash(s.ctx, tenantA, "")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *DocStoreSuite) TestUpdateClassification() {
	doc := s.insert(s.newDocument(tenantA, "h"))
	amount := decimal.RequireFromString("850.00")
	c := models.Classification{Type: "receipt", Confidence: 0.95, Amount: &amount, Period: "2025-10", Anomalies: []string{}}
	at := time.Now().UTC().Truncate(time.Millisecond)

	s.Require().NoError(s.db.UpdateClassification(s.ctx, tenantA, doc.ID, models.StatusPending, c, models.StatusClassified, at))

	got, err := s.db.GetDocument(s.ctx, tenantA, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusClassified, got.Status)
	s.Require().NotNil(got.Classification)
	s.Equal("receipt", got.Classification.Type)
	s.True(amount.Equal(*got.Classification.Amount))
	s.Require().NotNil(got.ClassifiedAt)
	s.Equal(at, *got.ClassifiedAt)

	s.ErrorIs(s.db.UpdateClassification(s.ctx, tenantA, doc.ID, models.StatusPending, c, models.StatusClassified, at), apperr.ErrConflict)
}

func (s *DocStoreSuite) TestCatalogue() {
	rent := decimal.RequireFromString("797.00")
	s.Require().NoError(s.db.UpsertEntity(s.ctx, models.Entity{TenantID: tenantA, Kind: models.LinkLease, ID: "l1", PropertyID: "p1", ExpectedRent: &rent}))
	s.Require().NoError(s.db.UpsertEntity(s.ctx, models.Entity{TenantID: tenantA, Kind: models.LinkLease, ID: "l2", PropertyID: "p2"}))
	s.Require().NoError(s.db.UpsertEntity(s.ctx, models.Entity{TenantID: tenantA, Kind: models.LinkProperty, ID: "p1", Label: "Rue Oberkampf"}))

	ok, err := s.db.EntityExists(s.ctx, tenantA, models.LinkProperty, "p1")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.db.EntityExists(s.ctx, "tenant-b", models.LinkProperty, "p1")
	s.Require().NoError(err)
	s.False(ok)

	leases, err := s.db.ListLeases(s.ctx, tenantA)
	s.Require().NoError(err)
	s.Require().Len(leases, 2)
	s.Equal("l1", leases[0].ID)
	s.Require().NotNil(leases[0].ExpectedRent)
	s.True(rent.Equal(*leases[0].ExpectedRent))
	s.Nil(leases[1].ExpectedRent)
}

func (s *DocStoreSuite) TestSearch() {
	doc := s.insert(s.newDocument(tenantA, "h"))
	s.Require().NoError(s.db.UpdateOCR(s.ctx, tenantA, doc.ID, OCRUpdate{Status: models.OCRProcessed, Text: "Avis de taxe foncière"}))

	results, err := s.db.Search(s.ctx, tenantA, "taxe", 10)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(doc.ID, results[0].DocumentID)

	results, err = s.db.Search(s.ctx, "tenant-b", "taxe", 10)
	s.Require().NoError(err)
	s.Empty(results)
}
