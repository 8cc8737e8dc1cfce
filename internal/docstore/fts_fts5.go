//go:build sqlite_fts5

package docstore

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			document_id UNINDEXED,
			tenant_id UNINDEXED,
			filename,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, documentID, tenantID, filename, body string) error {
	_, _ = tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE document_id = ?`, documentID)
	_, err := tx.ExecContext(ctx, `INSERT INTO documents_fts (document_id, tenant_id, filename, body) VALUES (?, ?, ?, ?)`,
		documentID, tenantID, filename, body)
	if err != nil {
		return fmt.Errorf("docstore: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, documentID string) {
	_, _ = tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE document_id = ?`, documentID)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(ctx context.Context, tenantID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT document_id,
		       filename,
		       snippet(documents_fts, 3, '<b>', '</b>', '...', 64)
		FROM documents_fts
		WHERE documents_fts MATCH ? AND tenant_id = ?
		ORDER BY rank
		LIMIT ?
	`, query, tenantID, limit)
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
