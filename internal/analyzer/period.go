package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	monthRe = regexp.MustCompile(`\b(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre)\b`)
	yearRe  = regexp.MustCompile(`\b(20\d{2})\b`)
	// A month name directly followed by its year, as in "octobre 2025".
	monthYearRe = regexp.MustCompile(`\b(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre)\b[\s,./-]{1,3}(20\d{2})\b`)
)

var frenchMonths = map[string]time.Month{
	"janvier":   time.January,
	"fevrier":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"aout":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"decembre":  time.December,
}

// Period is the resolved accounting period of a document.
type Period struct {
	Date   *time.Time
	Period string
	Year   int
}

// ResolvePeriod derives the period from the first extracted date. Without
// one, it falls back to a French month name followed by a 20xx year, then
// to the first month name and the first standalone 20xx year found
// anywhere in text, synthesizing the first day of that month. A year alone
// yields Year without Period.
func ResolvePeriod(dates []time.Time, text string) Period {
	if len(dates) > 0 {
		d := dates[0]
		return Period{Date: &d, Period: FormatPeriod(d), Year: d.Year()}
	}

	folded := Fold(text)
	if m := monthYearRe.FindStringSubmatch(folded); m != nil {
		year, _ := strconv.Atoi(m[2])
		return monthPeriod(year, frenchMonths[m[1]])
	}

	yearMatch := yearRe.FindStringSubmatch(folded)
	if yearMatch == nil {
		return Period{}
	}
	year, _ := strconv.Atoi(yearMatch[1])

	monthMatch := monthRe.FindStringSubmatch(folded)
	if monthMatch == nil {
		return Period{Year: year}
	}
	return monthPeriod(year, frenchMonths[monthMatch[1]])
}

func monthPeriod(year int, month time.Month) Period {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Date: &d, Period: FormatPeriod(d), Year: year}
}

// FormatPeriod renders d as "YYYY-MM".
func FormatPeriod(d time.Time) string {
	return fmt.Sprintf("%d-%02d", d.Year(), int(d.Month()))
}
