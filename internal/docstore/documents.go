package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/paperasse/internal/apperr"
	"github.com/starford/paperasse/internal/models"
)

const documentColumns = `
	d.id, d.tenant_id, d.owner_id, d.filename, d.mime_type, d.size,
	d.content_hash, d.text_hash, d.storage_key, d.url,
	d.status, d.ocr_status, d.ocr_vendor, d.ocr_confidence, d.extracted_text,
	d.classification, d.version, d.replaces_document_id, d.lineage_id,
	d.created_at, d.updated_at, d.classified_at`

// OCRUpdate is the outcome of a text recognition pass.
type OCRUpdate struct {
	Status     models.OCRStatus
	Text       string
	TextHash   string
	Confidence float64
	Vendor     string
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*models.Document, error) {
	var (
		d              models.Document
		classification sql.NullString
		replaces       sql.NullString
		createdAt      int64
		updatedAt      int64
		classifiedAt   sql.NullInt64
	)
	err := s.Scan(
		&d.ID, &d.TenantID, &d.OwnerID, &d.Filename, &d.MimeType, &d.Size,
		&d.ContentHash, &d.TextHash, &d.StorageKey, &d.URL,
		&d.Status, &d.OCRStatus, &d.OCRVendor, &d.OCRConfidence, &d.ExtractedText,
		&classification, &d.Version, &replaces, &d.LineageID,
		&createdAt, &updatedAt, &classifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if classification.Valid {
		var c models.Classification
		if err := json.Unmarshal([]byte(classification.String), &c); err != nil {
			return nil, fmt.Errorf("decode classification of %s: %w", d.ID, err)
		}
		d.Classification = &c
	}
	d.ReplacesDocumentID = replaces.String
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	if classifiedAt.Valid {
		t := fromMillis(classifiedAt.Int64)
		d.ClassifiedAt = &t
	}
	return &d, nil
}

// InsertDocument stores a first version together with its links and tags.
func (db *DB) InsertDocument(ctx context.Context, doc *models.Document) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := insertDocument(ctx, tx, doc); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertVersion stores doc as the successor of doc.ReplacesDocumentID and
// archives the predecessor in the same transaction. The predecessor must
// belong to the same tenant and must not already have a successor.
func (db *DB) InsertVersion(ctx context.Context, doc *models.Document) error {
	if doc.ReplacesDocumentID == "" {
		return fmt.Errorf("docstore: insert version: %w: missing predecessor", apperr.ErrInvalidInput)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var version int
	var lineage string
	err = tx.QueryRowContext(ctx, `
		SELECT version, lineage_id FROM documents
		WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, doc.ReplacesDocumentID, doc.TenantID).Scan(&version, &lineage)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("docstore: predecessor %s: %w", doc.ReplacesDocumentID, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("docstore: load predecessor: %w", err)
	}

	var successors int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE replaces_document_id = ?`, doc.ReplacesDocumentID,
	).Scan(&successors); err != nil {
		return fmt.Errorf("docstore: count successors: %w", err)
	}
	if successors > 0 {
		return fmt.Errorf("docstore: document %s already has a newer version: %w", doc.ReplacesDocumentID, apperr.ErrConflict)
	}

	doc.Version = version + 1
	doc.LineageID = lineage
	if err := insertDocument(ctx, tx, doc); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ? WHERE id = ?
	`, models.StatusArchived, toMillis(doc.CreatedAt), doc.ReplacesDocumentID); err != nil {
		return fmt.Errorf("docstore: archive predecessor: %w", err)
	}
	return tx.Commit()
}

func insertDocument(ctx context.Context, tx *sql.Tx, doc *models.Document) error {
	var classification any
	if doc.Classification != nil {
		raw, err := json.Marshal(doc.Classification)
		if err != nil {
			return fmt.Errorf("docstore: encode classification: %w", err)
		}
		classification = string(raw)
	}
	var replaces any
	if doc.ReplacesDocumentID != "" {
		replaces = doc.ReplacesDocumentID
	}
	if doc.LineageID == "" {
		doc.LineageID = doc.ID
	}
	if doc.Version == 0 {
		doc.Version = 1
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO documents (
			id, tenant_id, owner_id, filename, mime_type, size,
			content_hash, text_hash, storage_key, url,
			status, ocr_status, ocr_vendor, ocr_confidence, extracted_text,
			classification, version, replaces_document_id, lineage_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		doc.ID, doc.TenantID, doc.OwnerID, doc.Filename, doc.MimeType, doc.Size,
		doc.ContentHash, doc.TextHash, doc.StorageKey, doc.URL,
		doc.Status, doc.OCRStatus, doc.OCRVendor, doc.OCRConfidence, doc.ExtractedText,
		classification, doc.Version, replaces, doc.LineageID,
		toMillis(doc.CreatedAt), toMillis(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("docstore: insert document: %w", translate(err))
	}

	links := make([]models.DocumentLink, 0, len(doc.Links))
	for _, l := range doc.Links {
		link, err := insertLink(ctx, tx, doc.ID, l.Ref(), doc.CreatedAt)
		if err != nil {
			return err
		}
		if link != nil {
			links = append(links, *link)
		}
	}
	doc.Links = links

	if err := insertTags(ctx, tx, doc.ID, doc.Tags); err != nil {
		return err
	}
	return ftsUpsert(ctx, tx, doc.ID, doc.TenantID, doc.Filename, doc.ExtractedText)
}

func insertLink(ctx context.Context, q querier, documentID string, ref models.LinkRef, at time.Time) (*models.DocumentLink, error) {
	link := models.DocumentLink{
		ID:         uuid.Must(uuid.NewV7()).String(),
		DocumentID: documentID,
		LinkedType: ref.LinkedType,
		LinkedID:   ref.LinkedID,
		CreatedAt:  at.UTC().Truncate(time.Millisecond),
	}
	res, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO document_links (id, document_id, linked_type, linked_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, link.ID, link.DocumentID, link.LinkedType, link.LinkedID, toMillis(link.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("docstore: insert link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return &link, nil
}

func insertTags(ctx context.Context, tx *sql.Tx, documentID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO document_tags (document_id, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("docstore: prepare tag insert: %w", err)
	}
	defer stmt.Close()
	for _, tag := range tags {
		if _, err := stmt.ExecContext(ctx, documentID, tag); err != nil {
			return fmt.Errorf("docstore: insert tag: %w", err)
		}
	}
	return nil
}

// GetDocument returns a live document of the tenant. Documents of other
// tenants are reported as not found.
func (db *DB) GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM documents d
		WHERE d.id = ? AND d.tenant_id = ? AND d.deleted_at IS NULL
	`, id, tenantID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("docstore: document %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get document: %w", err)
	}
	if err := db.hydrate(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByContentHash returns the live document of the tenant holding the
// given raw-byte hash, or nil when there is none.
func (db *DB) FindByContentHash(ctx context.Context, tenantID, hash string) (*models.Document, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM documents d
		WHERE d.tenant_id = ? AND d.content_hash = ? AND d.deleted_at IS NULL
	`, tenantID, hash)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: find by content hash: %w", err)
	}
	if err := db.hydrate(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FindByTextHash returns the ids of live documents of the tenant whose
// normalized text hashes to hash, oldest first.
func (db *DB) FindByTextHash(ctx context.Context, tenantID, hash string) ([]string, error) {
	if hash == "" {
		return []string{}, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id FROM documents
		WHERE tenant_id = ? AND text_hash = ? AND deleted_at IS NULL
		ORDER BY created_at, id
	`, tenantID, hash)
	if err != nil {
		return nil, fmt.Errorf("docstore: find by text hash: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Lineage returns every live version of a lineage, oldest first.
func (db *DB) Lineage(ctx context.Context, tenantID, lineageID string) ([]models.Document, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+documentColumns+`
		FROM documents d
		WHERE d.tenant_id = ? AND d.lineage_id = ? AND d.deleted_at IS NULL
		ORDER BY d.version
	`, tenantID, lineageID)
	if err != nil {
		return nil, fmt.Errorf("docstore: lineage: %w", err)
	}
	return db.collect(ctx, rows)
}

// UpdateStatus moves a document from one status to another. The update only
// applies while the document is still in from; otherwise ErrConflict.
func (db *DB) UpdateStatus(ctx context.Context, tenantID, id string, from, to models.Status) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND status = ? AND deleted_at IS NULL
	`, to, toMillis(time.Now()), id, tenantID, from)
	if err != nil {
		return fmt.Errorf("docstore: update status: %w", err)
	}
	return db.checkApplied(ctx, res, tenantID, id)
}

// UpdateOCR records the text recognition outcome and refreshes the search
// index.
func (db *DB) UpdateOCR(ctx context.Context, tenantID, id string, u OCRUpdate) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET ocr_status = ?, extracted_text = ?, text_hash = ?, ocr_confidence = ?, ocr_vendor = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, u.Status, u.Text, u.TextHash, u.Confidence, u.Vendor, toMillis(time.Now()), id, tenantID)
	if err != nil {
		return fmt.Errorf("docstore: update ocr: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("docstore: document %s: %w", id, apperr.ErrNotFound)
	}

	var filename string
	if err := tx.QueryRowContext(ctx, `SELECT filename FROM documents WHERE id = ?`, id).Scan(&filename); err != nil {
		return fmt.Errorf("docstore: reload filename: %w", err)
	}
	if err := ftsUpsert(ctx, tx, id, tenantID, filename, u.Text); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateClassification replaces the classification fields and sets the
// resulting status, provided the document is still in expected.
func (db *DB) UpdateClassification(ctx context.Context, tenantID, id string, expected models.Status, c models.Classification, status models.Status, at time.Time) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("docstore: encode classification: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE documents SET classification = ?, status = ?, classified_at = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND status = ? AND deleted_at IS NULL
	`, string(raw), status, toMillis(at), toMillis(at), id, tenantID, expected)
	if err != nil {
		return fmt.Errorf("docstore: update classification: %w", err)
	}
	return db.checkApplied(ctx, res, tenantID, id)
}

// SoftDelete hides a document from reads, listings and the dedup gate.
func (db *DB) SoftDelete(ctx context.Context, tenantID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := toMillis(time.Now())
	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, now, now, id, tenantID)
	if err != nil {
		return fmt.Errorf("docstore: soft delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("docstore: document %s: %w", id, apperr.ErrNotFound)
	}
	ftsDelete(ctx, tx, id)
	return tx.Commit()
}

// checkApplied distinguishes a missing document from a lost
// compare-and-set after a conditional update touched no row.
func (db *DB) checkApplied(ctx context.Context, res sql.Result, tenantID, id string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists int
	err := db.conn.QueryRowContext(ctx, `
		SELECT 1 FROM documents WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, id, tenantID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("docstore: document %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("docstore: check document: %w", err)
	}
	return fmt.Errorf("docstore: document %s changed concurrently: %w", id, apperr.ErrConflict)
}

// collect scans rows into documents and loads their links and tags.
func (db *DB) collect(ctx context.Context, rows *sql.Rows) ([]models.Document, error) {
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("docstore: scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if err := db.hydrate(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) hydrate(ctx context.Context, doc *models.Document) error {
	links, err := loadLinks(ctx, db.conn, doc.ID)
	if err != nil {
		return err
	}
	doc.Links = links

	rows, err := db.conn.QueryContext(ctx, `SELECT tag FROM document_tags WHERE document_id = ? ORDER BY tag`, doc.ID)
	if err != nil {
		return fmt.Errorf("docstore: load tags: %w", err)
	}
	defer rows.Close()
	doc.Tags = []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return err
		}
		doc.Tags = append(doc.Tags, tag)
	}
	return rows.Err()
}
