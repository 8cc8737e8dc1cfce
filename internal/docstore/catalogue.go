package docstore

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/starford/paperasse/internal/models"
)

// UpsertEntity records or replaces a catalogue entry.
func (db *DB) UpsertEntity(ctx context.Context, e models.Entity) error {
	var rent decimal.NullDecimal
	if e.ExpectedRent != nil {
		rent = decimal.NewNullDecimal(*e.ExpectedRent)
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO entities (tenant_id, kind, id, label, property_id, expected_rent)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, kind, id) DO UPDATE SET
			label         = excluded.label,
			property_id   = excluded.property_id,
			expected_rent = excluded.expected_rent
	`, e.TenantID, e.Kind, e.ID, e.Label, e.PropertyID, rent)
	if err != nil {
		return fmt.Errorf("docstore: upsert entity: %w", err)
	}
	return nil
}

// EntityExists reports whether the tenant's catalogue holds kind/id.
func (db *DB) EntityExists(ctx context.Context, tenantID string, kind models.LinkedType, id string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT count(*) FROM entities WHERE tenant_id = ? AND kind = ? AND id = ?
	`, tenantID, kind, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("docstore: entity exists: %w", err)
	}
	return n > 0, nil
}

// ListLeases returns the tenant's leases in catalogue order.
func (db *DB) ListLeases(ctx context.Context, tenantID string) ([]models.Entity, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, label, property_id, expected_rent
		FROM entities WHERE tenant_id = ? AND kind = ?
		ORDER BY rowid
	`, tenantID, models.LinkLease)
	if err != nil {
		return nil, fmt.Errorf("docstore: list leases: %w", err)
	}
	defer rows.Close()

	out := []models.Entity{}
	for rows.Next() {
		e := models.Entity{TenantID: tenantID, Kind: models.LinkLease}
		var rent decimal.NullDecimal
		if err := rows.Scan(&e.ID, &e.Label, &e.PropertyID, &rent); err != nil {
			return nil, err
		}
		if rent.Valid {
			r := rent.Decimal
			e.ExpectedRent = &r
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
