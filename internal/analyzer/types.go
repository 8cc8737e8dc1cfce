package analyzer

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType is the closed set of document classes.
type DocumentType string

const (
	TypeLease         DocumentType = "lease"
	TypeReceipt       DocumentType = "receipt"
	TypeInvoice       DocumentType = "invoice"
	TypeTaxNotice     DocumentType = "tax-notice"
	TypeBankStatement DocumentType = "bank-statement"
	TypeInsurance     DocumentType = "insurance"
	TypeOther         DocumentType = "other"
)

// DocumentTypes lists every document class.
var DocumentTypes = []DocumentType{
	TypeLease, TypeReceipt, TypeInvoice, TypeTaxNotice, TypeBankStatement, TypeInsurance, TypeOther,
}

// Valid reports whether t is one of the known classes.
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Extraction is the result of analysing one document text.
type Extraction struct {
	Type                  DocumentType     `json:"type"`
	Confidence            float64          `json:"confidence"`
	Amount                *decimal.Decimal `json:"amount,omitempty"`
	Date                  *time.Time       `json:"date,omitempty"`
	Period                string           `json:"period,omitempty"`
	Year                  int              `json:"year,omitempty"`
	Nature                string           `json:"nature,omitempty"`
	PropertyRef           string           `json:"propertyRef,omitempty"`
	LeaseRef              string           `json:"leaseRef,omitempty"`
	AssociationConfidence float64          `json:"associationConfidence"`
	Keywords              []string         `json:"keywords"`
	Anomalies             []string         `json:"anomalies"`
	IsDuplicate           bool             `json:"isDuplicate"`
	NeedsManualReview     bool             `json:"needsManualReview"`
}

// RequiresReview evaluates the manual review rule against the current fields.
func (e *Extraction) RequiresReview() bool {
	return e.Confidence < ReviewThreshold ||
		len(e.Anomalies) > 0 ||
		(e.Amount == nil && e.Type != TypeLease)
}
