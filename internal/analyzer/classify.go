package analyzer

import "strings"

// Classification is the type decision for a document.
type Classification struct {
	Type       DocumentType
	Confidence float64
}

type keywordSet map[string]struct{}

func newKeywordSet(keywords []string) keywordSet {
	set := make(keywordSet, len(keywords))
	for _, k := range keywords {
		set[k] = struct{}{}
	}
	return set
}

func (s keywordSet) has(terms ...string) bool {
	for _, t := range terms {
		if _, ok := s[t]; ok {
			return true
		}
	}
	return false
}

// Classify assigns a document type. Rules are evaluated in priority order and
// the first match wins, since vocabularies overlap between types.
func Classify(text string, keywords []string) Classification {
	kw := newKeywordSet(keywords)

	if kw.has(kwReceipt) {
		if kw.has(kwRent) {
			return Classification{TypeReceipt, ConfidenceReceiptWithRent}
		}
		return Classification{TypeReceipt, ConfidenceReceipt}
	}

	if kw.has(kwTax) {
		switch {
		case kw.has(kwPropertyTax):
			return Classification{TypeTaxNotice, ConfidencePropertyTax}
		case kw.has(kwWaste):
			return Classification{TypeTaxNotice, ConfidenceWasteTax}
		}
	}

	if kw.has(kwLease, kwContract) {
		if kw.has(kwRental) || strings.Contains(Fold(text), "locataire") {
			return Classification{TypeLease, ConfidenceLeaseWithRental}
		}
		return Classification{TypeLease, ConfidenceLease}
	}

	if kw.has(kwInvoice) {
		if kw.has(kwWorks, kwMaintenance, kwRepair) {
			return Classification{TypeInvoice, ConfidenceInvoiceWithWorks}
		}
		return Classification{TypeInvoice, ConfidenceInvoice}
	}

	if kw.has(kwInsurance) {
		return Classification{TypeInsurance, ConfidenceInsurance}
	}

	if kw.has(kwStatement) && kw.has(kwBank, kwBanking, kwAccount) {
		return Classification{TypeBankStatement, ConfidenceBankStatement}
	}

	return Classification{TypeOther, ConfidenceOther}
}

// deriveNature names the accounting nature suggested by the keywords for the
// given type, or "" when none applies.
func deriveNature(t DocumentType, keywords []string) string {
	kw := newKeywordSet(keywords)
	switch t {
	case TypeReceipt:
		switch {
		case kw.has(kwRent):
			return "rent"
		case kw.has(kwCharges):
			return "charges"
		}
	case TypeTaxNotice:
		switch {
		case kw.has(kwPropertyTax):
			return "property-tax"
		case kw.has(kwWaste):
			return "waste-tax"
		}
	case TypeInvoice:
		switch {
		case kw.has(kwWorks):
			return "works"
		case kw.has(kwMaintenance):
			return "maintenance"
		case kw.has(kwRepair):
			return "repair"
		}
	case TypeInsurance:
		return "insurance"
	}
	return ""
}
