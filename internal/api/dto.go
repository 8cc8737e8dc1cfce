package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/starford/paperasse/internal/analyzer"
	"github.com/starford/paperasse/internal/docstore"
	"github.com/starford/paperasse/internal/models"
)

// LinkRequest is the request body for attaching a document to an entity.
type LinkRequest struct {
	LinkedType models.LinkedType `json:"linkedType" example:"property" validate:"required"`
	LinkedID   string            `json:"linkedId,omitempty" example:"prop-1"`
}

// Validate implements validation.Validatable.
func (r LinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.LinkedType, validation.Required, validation.By(knownLinkedType)),
		validation.Field(&r.LinkedID,
			validation.When(r.LinkedType == models.LinkGlobal, validation.Empty),
			validation.When(r.LinkedType != models.LinkGlobal, validation.Required)),
	)
}

// Ref converts the request into a link target.
func (r LinkRequest) Ref() models.LinkRef {
	return models.LinkRef{LinkedType: r.LinkedType, LinkedID: r.LinkedID}
}

func knownLinkedType(value any) error {
	if t, _ := value.(models.LinkedType); !t.Valid() {
		return errors.New("unknown linked type")
	}
	return nil
}

// AnalyzeRequest is the request body for a stateless analysis.
type AnalyzeRequest struct {
	Text string `json:"text" example:"QUITTANCE DE LOYER Octobre 2025 850,00 €"`
}

// Validate implements validation.Validatable. Empty text is accepted and
// analysed as such.
func (r AnalyzeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Length(0, maxJSONBytes)),
	)
}

// AnalyzeResponse wraps an extraction and its action plan.
type AnalyzeResponse struct {
	Extraction analyzer.Extraction `json:"extraction" validate:"required"`
	Plan       analyzer.ActionPlan `json:"plan" validate:"required"`
}

// DuplicateCheckRequest is the request body for a duplicate check.
type DuplicateCheckRequest struct {
	ContentHash string `json:"contentHash" example:"9f86d081884c7d65..."`
	TextHash    string `json:"textHash,omitempty"`
}

// Validate implements validation.Validatable.
func (r DuplicateCheckRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ContentHash, validation.Required.When(r.TextHash == ""), validation.Length(64, 64)),
		validation.Field(&r.TextHash, validation.Length(64, 64)),
	)
}

// EntityRequest is the request body for recording a catalogue entity.
type EntityRequest struct {
	Label        string           `json:"label,omitempty" example:"12 rue des Lilas"`
	PropertyID   string           `json:"propertyId,omitempty" example:"prop-1"`
	ExpectedRent *decimal.Decimal `json:"expectedRent,omitempty" example:"850.00"`
}

// Validate implements validation.Validatable.
func (r EntityRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Label, validation.Length(0, 200)),
		validation.Field(&r.ExpectedRent, validation.By(nonNegative)),
	)
}

func nonNegative(value any) error {
	if d, _ := value.(*decimal.Decimal); d != nil && d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.Document `json:"documents" validate:"required"`
	Total     int               `json:"total" example:"42" validate:"required"`
}

// VersionsResponse wraps a version chain, oldest first.
type VersionsResponse struct {
	Versions []models.Document `json:"versions" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []docstore.SearchResult `json:"results" validate:"required"`
}
