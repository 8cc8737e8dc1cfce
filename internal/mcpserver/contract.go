package mcpserver

import (
	"fmt"

	"github.com/starford/paperasse/internal/analyzer"
)

// ClassificationRulesURI is the resource URI of the rules document.
const ClassificationRulesURI = "paperasse://classification-rules"

// ClassificationRules describes how documents are typed and when they need
// a manual review. LLM consumers read it before acting on an analysis.
var ClassificationRules = fmt.Sprintf(`# Paperasse Classification Rules

Text is lowercased and stripped of diacritics before matching.

## Types (first matching rule wins)

| Rule | Type | Confidence |
|------|------|------------|
| "quittance" and "loyer" | receipt | %.2f |
| "quittance" | receipt | %.2f |
| "taxe" and "fonciere" | tax-notice | %.2f |
| "taxe" and "ordures menageres" | tax-notice | %.2f |
| "bail" or "contrat", with "location" or "locataire" | lease | %.2f |
| "bail" or "contrat" | lease | %.2f |
| "facture" with "travaux", "entretien" or "reparation" | invoice | %.2f |
| "facture" | invoice | %.2f |
| "assurance" | insurance | %.2f |
| "releve" with "banque", "bancaire" or "compte" | bank-statement | %.2f |
| anything else | other | %.2f |

## Amounts and dates

- Amounts are numbers followed by a currency marker (€, EUR, euro).
  The first amount in the text is kept.
- "1 248,50" and "1.248,50" both read as 1248.50. A single separator
  followed by two digits is a decimal separator.
- The period (YYYY-MM) comes from the first dd/mm/yyyy date, else from a
  French month name and a 20xx year.

## Anomalies

- %q: amount above %s
- %q: amount equal to zero
- %q / %q: date after today or before %d
- %q: confidence below %.2f
- %q and %q

## Manual review

A document needs review when its confidence is below %.2f, when any anomaly
is raised, or when no amount was found on anything but a lease.

## Association

A receipt is matched to the lease whose expected rent is closest to its
amount, within %s. The match carries confidence %.2f.

## Action plan

Plans only classify, link, validate or flag. They never delete.
`,
	analyzer.ConfidenceReceiptWithRent, analyzer.ConfidenceReceipt,
	analyzer.ConfidencePropertyTax, analyzer.ConfidenceWasteTax,
	analyzer.ConfidenceLeaseWithRental, analyzer.ConfidenceLease,
	analyzer.ConfidenceInvoiceWithWorks, analyzer.ConfidenceInvoice,
	analyzer.ConfidenceInsurance, analyzer.ConfidenceBankStatement, analyzer.ConfidenceOther,
	analyzer.AnomalyAmountTooHigh, analyzer.MaxPlausibleAmount.String(),
	analyzer.AnomalyZeroAmount,
	analyzer.AnomalyFutureDate, analyzer.AnomalyOldDate, analyzer.MinPlausibleYear,
	analyzer.AnomalyUncertain, analyzer.ReviewThreshold,
	analyzer.AnomalyReceiptNoPeriod, analyzer.AnomalyInvoiceNoAmount,
	analyzer.ReviewThreshold,
	analyzer.RentTolerance.String(), analyzer.ConfidenceAssociationMatch,
)
