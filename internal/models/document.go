// Package models defines the domain types for paperasse.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle status of a stored document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClassified Status = "classified"
	StatusRejected   Status = "rejected"
	StatusArchived   Status = "archived"
)

var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusClassified, StatusRejected, StatusArchived},
	StatusClassified: {StatusPending, StatusRejected, StatusArchived},
	StatusRejected:   {StatusArchived},
	StatusArchived:   nil,
}

// CanTransition reports whether a document in status s may move to next.
// Re-classification may send a classified document back to pending when the
// new result needs review; archived is terminal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OCRStatus tracks text recognition independently from the lifecycle status.
type OCRStatus string

const (
	OCRPending   OCRStatus = "pending"
	OCRProcessed OCRStatus = "processed"
	OCRFailed    OCRStatus = "failed"
)

// Document is a stored upload and its classification state.
type Document struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenantId"`
	OwnerID            string          `json:"ownerId,omitempty"`
	Filename           string          `json:"filename"`
	MimeType           string          `json:"mimeType"`
	Size               int64           `json:"size"`
	ContentHash        string          `json:"contentHash"`
	TextHash           string          `json:"textHash,omitempty"`
	StorageKey         string          `json:"storageKey"`
	URL                string          `json:"url"`
	Status             Status          `json:"status"`
	OCRStatus          OCRStatus       `json:"ocrStatus"`
	OCRVendor          string          `json:"ocrVendor,omitempty"`
	OCRConfidence      float64         `json:"ocrConfidence,omitempty"`
	ExtractedText      string          `json:"extractedText,omitempty"`
	Classification     *Classification `json:"classification,omitempty"`
	Version            int             `json:"version"`
	ReplacesDocumentID string          `json:"replacesDocumentId,omitempty"`
	LineageID          string          `json:"lineageId"`
	Links              []DocumentLink  `json:"links"`
	Tags               []string        `json:"tags"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	ClassifiedAt       *time.Time      `json:"classifiedAt,omitempty"`
}

// Classification holds the fields written by a classification pass. A new
// pass replaces all of them at once.
type Classification struct {
	Type              string           `json:"type"`
	Confidence        float64          `json:"confidence"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Date              *time.Time       `json:"date,omitempty"`
	Period            string           `json:"period,omitempty"`
	Year              int              `json:"year,omitempty"`
	Nature            string           `json:"nature,omitempty"`
	PropertyRef       string           `json:"propertyRef,omitempty"`
	LeaseRef          string           `json:"leaseRef,omitempty"`
	Anomalies         []string         `json:"anomalies"`
	IsDuplicate       bool             `json:"isDuplicate"`
	NeedsManualReview bool             `json:"needsManualReview"`
}

// HasLink reports whether the document holds a link matching ref.
func (d *Document) HasLink(ref LinkRef) bool {
	for _, l := range d.Links {
		if l.LinkedType == ref.LinkedType && l.LinkedID == ref.LinkedID {
			return true
		}
	}
	return false
}
