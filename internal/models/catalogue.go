package models

import "github.com/shopspring/decimal"

// Entity is a known record of the bookkeeping side (property, lease, ...)
// that documents may be linked to.
type Entity struct {
	TenantID     string           `json:"tenantId"`
	Kind         LinkedType       `json:"kind"`
	ID           string           `json:"id"`
	Label        string           `json:"label,omitempty"`
	PropertyID   string           `json:"propertyId,omitempty"`
	ExpectedRent *decimal.Decimal `json:"expectedRent,omitempty"`
}

// DuplicateQuery carries the hashes checked by the duplicate detector.
type DuplicateQuery struct {
	ContentHash string `json:"contentHash"`
	TextHash    string `json:"textHash,omitempty"`
}

// NearDuplicate is a document whose normalized text hashes identically.
type NearDuplicate struct {
	DocumentID string  `json:"documentId"`
	Similarity float64 `json:"similarity"`
}

// DuplicateReport is the result of a duplicate check.
type DuplicateReport struct {
	HasExactDuplicate bool            `json:"hasExactDuplicate"`
	ExactDocumentID   string          `json:"exactDocumentId,omitempty"`
	NearDuplicates    []NearDuplicate `json:"nearDuplicates"`
}
