package analyzer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

func testAnalyzer() *Analyzer {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestAnalyze_RentReceipt(t *testing.T) {
	ext := testAnalyzer().Analyze("QUITTANCE DE LOYER\nOctobre 2025\nMontant : 850,00 €\nLocataire : M. Dubois", nil)

	assert.Equal(t, TypeReceipt, ext.Type)
	require.NotNil(t, ext.Amount)
	assert.Equal(t, "850.00", ext.Amount.StringFixed(2))
	assert.Equal(t, "2025-10", ext.Period)
	assert.GreaterOrEqual(t, ext.Confidence, 0.85)
	assert.Equal(t, "rent", ext.Nature)
	assert.Equal(t, []string{"quittance", "loyer"}, ext.Keywords)
	assert.Empty(t, ext.Anomalies)
	assert.False(t, ext.NeedsManualReview)
}

func TestAnalyze_PropertyTaxNotice(t *testing.T) {
	ext := testAnalyzer().Analyze("AVIS DE TAXE FONCIÈRE 2025\nMontant à payer : 1 248,00 €\nÉchéance : 15/10/2025", nil)

	assert.Equal(t, TypeTaxNotice, ext.Type)
	require.NotNil(t, ext.Amount)
	assert.Equal(t, "1248.00", ext.Amount.StringFixed(2))
	assert.Equal(t, 2025, ext.Year)
	assert.Equal(t, "2025-10", ext.Period)
	assert.Equal(t, "property-tax", ext.Nature)
}

func TestAnalyze_LeaseTakesFirstAmount(t *testing.T) {
	text := "CONTRAT DE BAIL\nLocataire : Mme Martin\nLoyer mensuel : 797,00 €\nProvision sur charges : 53,00 €"
	ext := testAnalyzer().Analyze(text, nil)

	assert.Equal(t, TypeLease, ext.Type)
	assert.InDelta(t, 0.95, ext.Confidence, 1e-9)
	require.NotNil(t, ext.Amount)
	assert.Equal(t, "797.00", ext.Amount.StringFixed(2))
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := testAnalyzer()
	text := "Facture travaux du 02/09/2025\nTotal TTC : 1.530,40 €"

	first, err := json.Marshal(a.Analyze(text, nil))
	require.NoError(t, err)
	second, err := json.Marshal(a.Analyze(text, nil))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestAnalyze_EmptyTextIsFlagged(t *testing.T) {
	ext := testAnalyzer().Analyze("", nil)

	assert.Equal(t, TypeOther, ext.Type)
	assert.Equal(t, []string{AnomalyUncertain}, ext.Anomalies)
	assert.True(t, ext.NeedsManualReview)
}

func TestAnalyze_AssociatesReceiptWithLease(t *testing.T) {
	leases := []Lease{{ID: "lease-1", PropertyID: "prop-1", ExpectedRent: decimal.RequireFromString("848.50")}}
	ext := testAnalyzer().Analyze("Quittance de loyer Octobre 2025 Montant : 850,00 €", leases)

	assert.Equal(t, "lease-1", ext.LeaseRef)
	assert.Equal(t, "prop-1", ext.PropertyRef)
	assert.InDelta(t, 0.90, ext.AssociationConfidence, 1e-9)
}

func TestAnalyze_FutureDateFlagged(t *testing.T) {
	ext := testAnalyzer().Analyze("Facture n°7 du 01/03/2027 montant 120,00 €", nil)

	assert.Equal(t, []string{AnomalyFutureDate}, ext.Anomalies)
	assert.True(t, ext.NeedsManualReview)
}

func TestRequiresReview(t *testing.T) {
	amount := decimal.NewFromInt(10)
	tests := []struct {
		name string
		ext  Extraction
		want bool
	}{
		{"confident with amount", Extraction{Type: TypeInvoice, Confidence: 0.85, Amount: &amount}, false},
		{"low confidence", Extraction{Type: TypeInvoice, Confidence: 0.69, Amount: &amount}, true},
		{"anomaly", Extraction{Type: TypeInvoice, Confidence: 0.9, Amount: &amount, Anomalies: []string{"x"}}, true},
		{"missing amount", Extraction{Type: TypeInsurance, Confidence: 0.9}, true},
		{"lease without amount", Extraction{Type: TypeLease, Confidence: 0.75}, false},
		{"exact threshold", Extraction{Type: TypeInvoice, Confidence: ReviewThreshold, Amount: &amount}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ext.RequiresReview())
		})
	}
}
