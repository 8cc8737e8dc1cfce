package analyzer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClassify_PriorityRules(t *testing.T) {
	tests := []struct {
		text       string
		wantType   DocumentType
		confidence float64
	}{
		{"Quittance de loyer", TypeReceipt, 0.95},
		{"Quittance", TypeReceipt, 0.80},
		{"Avis de taxe foncière", TypeTaxNotice, 0.95},
		{"Taxe d'enlèvement des ordures ménagères", TypeTaxNotice, 0.85},
		{"Contrat de location meublée", TypeLease, 0.95},
		{"Bail. Locataire : M. Dubois", TypeLease, 0.95},
		{"Contrat d'entretien chaudière", TypeLease, 0.75},
		{"Facture entretien chaudière", TypeInvoice, 0.90},
		{"Facture n° 42", TypeInvoice, 0.85},
		{"Attestation d'assurance habitation", TypeInsurance, 0.90},
		{"Relevé de compte bancaire", TypeBankStatement, 0.85},
		{"Relevé bancaire", TypeBankStatement, 0.85},
		{"Taxe", TypeOther, 0.50},
		{"Bonjour", TypeOther, 0.50},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			text := Normalize(tt.text)
			got := Classify(text, ExtractValues(text).Keywords)
			assert.Equal(t, tt.wantType, got.Type)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestClassify_ReceiptBeatsLease(t *testing.T) {
	text := "Quittance de loyer pour le contrat de bail, locataire M. Dubois"
	got := Classify(text, ExtractValues(text).Keywords)
	assert.Equal(t, TypeReceipt, got.Type)
}

func TestAssociate(t *testing.T) {
	leases := []Lease{
		{ID: "lease-a", PropertyID: "prop-a", ExpectedRent: decimal.NewFromInt(700)},
		{ID: "lease-b", PropertyID: "prop-b", ExpectedRent: decimal.NewFromInt(852)},
		{ID: "lease-c", PropertyID: "prop-c", ExpectedRent: decimal.NewFromInt(849)},
	}
	amount := decimal.NewFromInt(850)

	got := Associate(TypeReceipt, &amount, leases)
	assert.Equal(t, "lease-c", got.LeaseRef)
	assert.Equal(t, "prop-c", got.PropertyRef)
	assert.InDelta(t, 0.90, got.Confidence, 1e-9)

	far := decimal.NewFromInt(805)
	got = Associate(TypeReceipt, &far, []Lease{{ID: "x", ExpectedRent: decimal.NewFromInt(800)}})
	assert.Empty(t, got.LeaseRef, "a difference of exactly 5 is outside the tolerance")
	assert.InDelta(t, 0.50, got.Confidence, 1e-9)

	got = Associate(TypeInvoice, &amount, leases)
	assert.Empty(t, got.LeaseRef)

	got = Associate(TypeReceipt, nil, leases)
	assert.Empty(t, got.LeaseRef)
}
