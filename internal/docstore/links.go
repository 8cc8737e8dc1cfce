package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/paperasse/internal/apperr"
	"github.com/starford/paperasse/internal/models"
)

// ListQuery selects documents through their links.
type ListQuery struct {
	Ref             models.LinkRef
	Status          models.Status
	IncludeArchived bool
	Limit           int
	Offset          int
}

// AddLink attaches a live document of the tenant to ref. Linking twice to
// the same target is a no-op and returns the existing link.
func (db *DB) AddLink(ctx context.Context, tenantID, documentID string, ref models.LinkRef) (*models.DocumentLink, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `
		SELECT count(*) FROM documents WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL
	`, documentID, tenantID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("docstore: check document: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("docstore: document %s: %w", documentID, apperr.ErrNotFound)
	}

	link, err := insertLink(ctx, tx, documentID, ref, time.Now())
	if err != nil {
		return nil, err
	}
	if link == nil {
		existing := models.DocumentLink{DocumentID: documentID, LinkedType: ref.LinkedType, LinkedID: ref.LinkedID}
		var createdAt int64
		if err := tx.QueryRowContext(ctx, `
			SELECT id, created_at FROM document_links
			WHERE document_id = ? AND linked_type = ? AND linked_id = ?
		`, documentID, ref.LinkedType, ref.LinkedID).Scan(&existing.ID, &createdAt); err != nil {
			return nil, fmt.Errorf("docstore: reload link: %w", err)
		}
		existing.CreatedAt = fromMillis(createdAt)
		link = &existing
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return link, nil
}

// RemoveLink detaches a document from ref.
func (db *DB) RemoveLink(ctx context.Context, tenantID, documentID string, ref models.LinkRef) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM document_links
		WHERE document_id = (SELECT id FROM documents WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL)
		  AND linked_type = ? AND linked_id = ?
	`, documentID, tenantID, ref.LinkedType, ref.LinkedID)
	if err != nil {
		return fmt.Errorf("docstore: remove link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("docstore: link %s/%s on %s: %w", ref.LinkedType, ref.LinkedID, documentID, apperr.ErrNotFound)
	}
	return nil
}

// ListDocuments returns the tenant's documents holding a link to q.Ref,
// newest first, with the total count before pagination. The global scope is
// read from global links like any other scope: a document without one is
// never listed there.
func (db *DB) ListDocuments(ctx context.Context, tenantID string, q ListQuery) ([]models.Document, int, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	where := `
		FROM documents d
		JOIN document_links l ON l.document_id = d.id
		WHERE d.tenant_id = ? AND d.deleted_at IS NULL
		  AND l.linked_type = ? AND l.linked_id = ?`
	args := []any{tenantID, q.Ref.LinkedType, q.Ref.LinkedID}
	if q.Status != "" {
		where += ` AND d.status = ?`
		args = append(args, q.Status)
	} else if !q.IncludeArchived {
		where += ` AND d.status != ?`
		args = append(args, models.StatusArchived)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("docstore: count documents: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+documentColumns+where+` ORDER BY d.created_at DESC, d.id DESC LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("docstore: list documents: %w", err)
	}
	docs, err := db.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func loadLinks(ctx context.Context, q querier, documentID string) ([]models.DocumentLink, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, document_id, linked_type, linked_id, created_at
		FROM document_links WHERE document_id = ?
		ORDER BY created_at, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("docstore: load links: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentLink{}
	for rows.Next() {
		var l models.DocumentLink
		var createdAt int64
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.LinkedType, &l.LinkedID, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = fromMillis(createdAt)
		out = append(out, l)
	}
	return out, rows.Err()
}
