package analyzer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/starford/paperasse/internal/models"
)

// Op is an advisory operation name. Plans never carry write operations on
// authoritative records; a separate trusted path decides what to apply.
type Op string

const (
	OpClassify Op = "classify"
	OpLink     Op = "link"
	OpValidate Op = "validate"
	OpFlag     Op = "flag"
	OpAnalyze  Op = "analyze"
)

var permittedOps = map[Op]struct{}{
	OpClassify: {},
	OpLink:     {},
	OpValidate: {},
	OpFlag:     {},
	OpAnalyze:  {},
}

// Permitted reports whether op may appear in a plan.
func (op Op) Permitted() bool {
	_, ok := permittedOps[op]
	return ok
}

// Entity names the record family an action targets.
type Entity string

const (
	EntityDocument     Entity = "document"
	EntityTransactions Entity = "transactions"
)

// Payload is the closed set of action payloads.
type Payload interface {
	payload()
}

// ClassifyPayload carries the classification proposed for the document.
type ClassifyPayload struct {
	Type        DocumentType     `json:"type"`
	Status      models.Status    `json:"status"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Period      string           `json:"period,omitempty"`
	PropertyRef string           `json:"propertyRef,omitempty"`
	LeaseRef    string           `json:"leaseRef,omitempty"`
	Nature      string           `json:"nature,omitempty"`
}

// FlagPayload carries the anomalies that require a human decision.
type FlagPayload struct {
	Anomalies   []string `json:"anomalies"`
	NeedsReview bool     `json:"needsReview"`
}

func (ClassifyPayload) payload() {}
func (FlagPayload) payload()     {}

// MatchCriteria selects reconciliation candidates.
type MatchCriteria struct {
	AmountMin decimal.Decimal `json:"amountMin"`
	AmountMax decimal.Decimal `json:"amountMax"`
	Date      string          `json:"date"`
}

// Action is one advisory step of a plan.
type Action struct {
	Op     Op             `json:"op"`
	Entity Entity         `json:"entity"`
	Set    Payload        `json:"set,omitempty"`
	Where  *MatchCriteria `json:"where,omitempty"`
}

// ActionPlan is an ordered list of advisory actions.
type ActionPlan struct {
	Actions []Action `json:"actions"`
}

// Validate rejects plans holding an operation outside the advisory set.
func (p ActionPlan) Validate() error {
	for i, a := range p.Actions {
		if !a.Op.Permitted() {
			return fmt.Errorf("analyzer: action %d: operation %q is not advisory", i, a.Op)
		}
	}
	return nil
}

// GenerateActionPlan turns a finished extraction into the minimal list of
// actions supported by its signals.
func GenerateActionPlan(ext Extraction) ActionPlan {
	status := models.StatusClassified
	if ext.NeedsManualReview {
		status = models.StatusPending
	}

	actions := []Action{{
		Op:     OpClassify,
		Entity: EntityDocument,
		Set: ClassifyPayload{
			Type:        ext.Type,
			Status:      status,
			Amount:      ext.Amount,
			Period:      ext.Period,
			PropertyRef: ext.PropertyRef,
			LeaseRef:    ext.LeaseRef,
			Nature:      ext.Nature,
		},
	}}

	if ext.Amount != nil && ext.Date != nil && ext.Type != TypeLease {
		actions = append(actions, Action{
			Op:     OpLink,
			Entity: EntityTransactions,
			Where: &MatchCriteria{
				AmountMin: ext.Amount.Sub(ReconciliationWindow),
				AmountMax: ext.Amount.Add(ReconciliationWindow),
				Date:      ext.Date.Format("2006-01-02"),
			},
		})
	}

	if len(ext.Anomalies) > 0 {
		actions = append(actions, Action{
			Op:     OpFlag,
			Entity: EntityDocument,
			Set: FlagPayload{
				Anomalies:   append([]string(nil), ext.Anomalies...),
				NeedsReview: true,
			},
		})
	}

	return ActionPlan{Actions: actions}
}
