// Package docstore provides SQLite-backed persistence for documents, their
// polymorphic links and tags, the per-tenant entity catalogue, and optional
// FTS5 full-text search over extracted text.
package docstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Times are stored as Unix milliseconds. Soft-deleted rows keep their
// content hash but leave the partial unique index, so the same bytes can be
// uploaded again after a delete.
const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id                   TEXT PRIMARY KEY,
	tenant_id            TEXT NOT NULL,
	owner_id             TEXT NOT NULL DEFAULT '',
	filename             TEXT NOT NULL,
	mime_type            TEXT NOT NULL DEFAULT '',
	size                 INTEGER NOT NULL DEFAULT 0,
	content_hash         TEXT NOT NULL,
	text_hash            TEXT NOT NULL DEFAULT '',
	storage_key          TEXT NOT NULL,
	url                  TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL,
	ocr_status           TEXT NOT NULL,
	ocr_vendor           TEXT NOT NULL DEFAULT '',
	ocr_confidence       REAL NOT NULL DEFAULT 0,
	extracted_text       TEXT NOT NULL DEFAULT '',
	classification       TEXT,
	version              INTEGER NOT NULL DEFAULT 1,
	replaces_document_id TEXT UNIQUE REFERENCES documents(id),
	lineage_id           TEXT NOT NULL,
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL,
	classified_at        INTEGER,
	deleted_at           INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_content
	ON documents(tenant_id, content_hash) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_documents_text ON documents(tenant_id, text_hash);
CREATE INDEX IF NOT EXISTS idx_documents_lineage ON documents(lineage_id, version);

CREATE TABLE IF NOT EXISTS document_links (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	linked_type TEXT NOT NULL,
	linked_id   TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	UNIQUE(document_id, linked_type, linked_id)
);

CREATE INDEX IF NOT EXISTS idx_document_links_target ON document_links(linked_type, linked_id);

CREATE TABLE IF NOT EXISTS document_tags (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	tag         TEXT NOT NULL,
	PRIMARY KEY (document_id, tag)
);

CREATE TABLE IF NOT EXISTS entities (
	tenant_id     TEXT NOT NULL,
	kind          TEXT NOT NULL,
	id            TEXT NOT NULL,
	label         TEXT NOT NULL DEFAULT '',
	property_id   TEXT NOT NULL DEFAULT '',
	expected_rent TEXT,
	PRIMARY KEY (tenant_id, kind, id)
);
`

// DB wraps a sql.DB with document-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Write transactions take the lock immediately so that the read-then-write
// sequences in versioning cannot deadlock against each other.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Conn exposes the shared handle to collaborators that keep their own
// tables in the same file, such as the job queue.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
