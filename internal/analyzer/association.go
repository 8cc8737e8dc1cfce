package analyzer

import "github.com/shopspring/decimal"

// Lease is a known lease with the rent it is expected to collect.
type Lease struct {
	ID           string
	PropertyID   string
	ExpectedRent decimal.Decimal
}

// Association is the outcome of matching an extraction against known leases.
type Association struct {
	PropertyRef string
	LeaseRef    string
	Confidence  float64
}

// Associate matches receipt amounts against expected rents. The lease with
// the smallest difference strictly under RentTolerance wins; ties keep
// catalogue order. Only the amount is compared.
func Associate(t DocumentType, amount *decimal.Decimal, leases []Lease) Association {
	none := Association{Confidence: ConfidenceAssociationAbsent}
	if t != TypeReceipt || amount == nil {
		return none
	}

	var best *Lease
	var bestDiff decimal.Decimal
	for i := range leases {
		diff := leases[i].ExpectedRent.Sub(*amount).Abs()
		if !diff.LessThan(RentTolerance) {
			continue
		}
		if best == nil || diff.LessThan(bestDiff) {
			best, bestDiff = &leases[i], diff
		}
	}
	if best == nil {
		return none
	}
	return Association{
		PropertyRef: best.PropertyID,
		LeaseRef:    best.ID,
		Confidence:  ConfidenceAssociationMatch,
	}
}
