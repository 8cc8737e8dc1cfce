//go:build !sqlite_fts5

package docstore

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on documents.extracted_text.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _, _, _, _ string) error {
	return nil
}

func ftsDelete(_ context.Context, _ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(ctx context.Context, tenantID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, filename, substr(extracted_text, 1, 200)
		FROM documents
		WHERE tenant_id = ? AND deleted_at IS NULL
		  AND (filename LIKE ? OR extracted_text LIKE ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, tenantID, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("docstore: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocumentID, &r.Filename, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
