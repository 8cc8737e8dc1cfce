package analyzer

import "github.com/shopspring/decimal"

// Calibrated confidence values assigned by the type classifier.
const (
	ConfidenceReceiptWithRent   = 0.95
	ConfidenceReceipt           = 0.80
	ConfidencePropertyTax       = 0.95
	ConfidenceWasteTax          = 0.85
	ConfidenceLeaseWithRental   = 0.95
	ConfidenceLease             = 0.75
	ConfidenceInvoiceWithWorks  = 0.90
	ConfidenceInvoice           = 0.85
	ConfidenceInsurance         = 0.90
	ConfidenceBankStatement     = 0.85
	ConfidenceOther             = 0.50
	ConfidenceAssociationMatch  = 0.90
	ConfidenceAssociationAbsent = 0.50
)

// ReviewThreshold is the confidence below which a result always needs a
// human look and is reported as an uncertain classification.
const ReviewThreshold = 0.70

// Year bounds used by the period resolver and the anomaly detector.
const (
	MinPlausibleYear = 2000
	TwoDigitYearBase = 2000
)

var (
	// MaxPlausibleAmount is the largest amount accepted without an anomaly.
	MaxPlausibleAmount = decimal.NewFromInt(100_000)
	// RentTolerance is the maximal difference between an extracted amount and
	// a lease's expected rent for the two to be associated.
	RentTolerance = decimal.NewFromInt(5)
	// ReconciliationWindow is the amount window proposed for transaction matching.
	ReconciliationWindow = decimal.NewFromInt(5)
)
