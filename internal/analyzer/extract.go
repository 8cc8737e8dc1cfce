package analyzer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Values holds the raw values found in a normalized text, in order of first
// appearance.
type Values struct {
	Amounts  []decimal.Decimal
	Dates    []time.Time
	Keywords []string
}

// Keyword vocabulary in accent-stripped canonical form.
const (
	kwReceipt     = "quittance"
	kwRent        = "loyer"
	kwInvoice     = "facture"
	kwLease       = "bail"
	kwContract    = "contrat"
	kwRental      = "location"
	kwTax         = "taxe"
	kwPropertyTax = "fonciere"
	kwWaste       = "ordures menageres"
	kwInsurance   = "assurance"
	kwStatement   = "releve"
	kwBank        = "banque"
	kwBanking     = "bancaire"
	kwAccount     = "compte"
	kwCharges     = "charges"
	kwMaintenance = "entretien"
	kwWorks       = "travaux"
	kwRepair      = "reparation"
)

var vocabulary = []string{
	kwReceipt, kwRent, kwInvoice, kwLease, kwContract, kwRental, kwTax, kwPropertyTax, kwWaste,
	kwInsurance, kwStatement, kwBank, kwBanking, kwAccount, kwCharges, kwMaintenance, kwWorks, kwRepair,
}

var (
	// An amount is an integer part (thousands-grouped or plain), an optional
	// two-digit decimal part and a trailing currency marker. It never starts
	// inside a word or right after a separator, so "850,5 €" yields nothing
	// rather than 5.
	amountRe = regexp.MustCompile(`(?:^|[^\w.,])(\d{1,3}(?:[ \x{00A0}\x{202F}.,]\d{3})+|\d+)([.,]\d{2})?[\s\x{00A0}\x{202F}]?(?:€|EUR\b|(?i:euros?)\b)`)
	dateRe   = regexp.MustCompile(`\b(\d{1,2})([/-])(\d{1,2})([/-])(\d{4}|\d{2})\b`)
)

// ExtractValues pulls amounts, dates, and vocabulary keywords out of
// normalized text. Unparseable or non-positive amounts and impossible
// calendar dates are dropped.
func ExtractValues(text string) Values {
	return Values{
		Amounts:  extractAmounts(text),
		Dates:    extractDates(text),
		Keywords: extractKeywords(text),
	}
}

func extractAmounts(text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		amount, ok := ParseAmount(m[1] + m[2])
		if !ok {
			continue
		}
		out = append(out, amount)
	}
	return out
}

// ParseAmount converts a numeric token such as "1 248,00" or "1,248.50" to a
// decimal. When both separators appear the right-most one is the decimal
// separator; a lone separator kind is decimal when it occurs once and a
// thousands separator when repeated. A single point followed by exactly
// three digits ("12.500") is a thousands separator. Spaces are always
// thousands separators.
func ParseAmount(token string) (decimal.Decimal, bool) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, token)
	if s == "" {
		return decimal.Decimal{}, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastPoint := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastPoint >= 0:
		decimalSep, thousandsSep := ",", "."
		if lastPoint > lastComma {
			decimalSep, thousandsSep = ".", ","
		}
		s = strings.ReplaceAll(s, thousandsSep, "")
		s = strings.Replace(s, decimalSep, ".", 1)
	case lastComma >= 0:
		s = singleSeparator(s, ",")
	case lastPoint >= 0 && len(s)-lastPoint-1 == 3:
		s = strings.ReplaceAll(s, ".", "")
	case lastPoint >= 0:
		s = singleSeparator(s, ".")
	}

	if strings.Count(s, ".") > 1 {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func singleSeparator(s, sep string) string {
	if strings.Count(s, sep) == 1 {
		return strings.Replace(s, sep, ".", 1)
	}
	return strings.ReplaceAll(s, sep, "")
}

func extractDates(text string) []time.Time {
	var out []time.Time
	for _, m := range dateRe.FindAllStringSubmatch(text, -1) {
		if m[2] != m[4] {
			continue
		}
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[3])
		year, _ := strconv.Atoi(m[5])
		if len(m[5]) == 2 {
			year += TwoDigitYearBase
		}
		if d, ok := calendarDate(year, month, day); ok {
			out = append(out, d)
		}
	}
	return out
}

// calendarDate builds a UTC date and rejects values time.Date would normalize
// (day 31 of a 30-day month, month 13, ...).
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func extractKeywords(text string) []string {
	folded := Fold(text)
	type hit struct {
		term string
		pos  int
	}
	var hits []hit
	for _, term := range vocabulary {
		if pos := strings.Index(folded, term); pos >= 0 {
			hits = append(hits, hit{term: term, pos: pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.term)
	}
	return out
}
