package analyzer

import "time"

// Anomaly flags, in the order the detector evaluates them.
const (
	AnomalyAmountTooHigh   = "amount implausibly high"
	AnomalyZeroAmount      = "zero amount"
	AnomalyFutureDate      = "future date"
	AnomalyOldDate         = "implausibly old date"
	AnomalyUncertain       = "uncertain classification"
	AnomalyReceiptNoPeriod = "missing period for receipt"
	AnomalyInvoiceNoAmount = "missing amount for invoice"
)

// DetectAnomalies returns the flags raised by ext, evaluated at now. The
// order of the result is stable.
func DetectAnomalies(ext Extraction, now time.Time) []string {
	anomalies := []string{}

	if ext.Amount != nil {
		if ext.Amount.GreaterThan(MaxPlausibleAmount) {
			anomalies = append(anomalies, AnomalyAmountTooHigh)
		}
		if ext.Amount.IsZero() {
			anomalies = append(anomalies, AnomalyZeroAmount)
		}
	}
	if ext.Date != nil {
		if ext.Date.After(now) {
			anomalies = append(anomalies, AnomalyFutureDate)
		}
		if ext.Date.Year() < MinPlausibleYear {
			anomalies = append(anomalies, AnomalyOldDate)
		}
	}
	if ext.Confidence < ReviewThreshold {
		anomalies = append(anomalies, AnomalyUncertain)
	}
	if ext.Type == TypeReceipt && ext.Period == "" {
		anomalies = append(anomalies, AnomalyReceiptNoPeriod)
	}
	if ext.Type == TypeInvoice && ext.Amount == nil {
		anomalies = append(anomalies, AnomalyInvoiceNoAmount)
	}
	return anomalies
}
