// Package analyzer turns OCR text into a classified, confidence-scored
// extraction and an advisory action plan.
//
// The pipeline is: Normalize → ExtractValues → ResolvePeriod → Classify →
// DetectAnomalies / Associate → GenerateActionPlan. Every step is a pure
// function; the wall clock is only read for the future-date check.
package analyzer

import (
	"time"
)

// Analyzer runs the analysis pipeline with an injectable clock.
type Analyzer struct {
	now func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the time source used for future-date detection.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAnalyzer = New()

// AnalyzeDocument analyses text with the wall clock and no lease catalogue.
func AnalyzeDocument(text string) Extraction {
	return defaultAnalyzer.Analyze(text, nil)
}

// Analyze extracts, classifies, and enriches text. A result is always
// returned; uncertainty is reported through Anomalies and NeedsManualReview.
func (a *Analyzer) Analyze(text string, leases []Lease) Extraction {
	normalized := Normalize(text)
	values := ExtractValues(normalized)
	class := Classify(normalized, values.Keywords)

	ext := Extraction{
		Type:       class.Type,
		Confidence: class.Confidence,
		Nature:     deriveNature(class.Type, values.Keywords),
		Keywords:   values.Keywords,
	}
	if len(values.Amounts) > 0 {
		amount := values.Amounts[0]
		ext.Amount = &amount
	}

	period := ResolvePeriod(values.Dates, normalized)
	ext.Date, ext.Period, ext.Year = period.Date, period.Period, period.Year

	assoc := Associate(ext.Type, ext.Amount, leases)
	ext.PropertyRef, ext.LeaseRef, ext.AssociationConfidence = assoc.PropertyRef, assoc.LeaseRef, assoc.Confidence

	ext.Anomalies = DetectAnomalies(ext, a.now())
	ext.NeedsManualReview = ext.RequiresReview()
	return ext
}

// AnalyzeWithPlan runs the default analyzer and returns the extraction
// together with its action plan.
func AnalyzeWithPlan(text string) (Extraction, ActionPlan) {
	ext := AnalyzeDocument(text)
	return ext, GenerateActionPlan(ext)
}
