// Package normalize provides pure functions that infer canonical units,
// currencies, and periods from raw spreadsheet header and cell text.
package normalize

import (
	"regexp"
	"strings"
)

// currency codes recognized in header/cell text, checked case-insensitively.
var currencyCodes = []string{"USD", "EUR", "GBP"}

// Scale tokens match as standalone words or suffixed to a number
// ("$ mm", "(USD mm)", "400k"), but not inside ordinary words.
var (
	millionRe  = regexp.MustCompile(`(?i)(\d\s*|\b)mm\b|millions?`)
	thousandRe = regexp.MustCompile(`(?i)(\d\s*|\b)k\b|thousands?`)
)

// Unit infers a semantic unit tag and an ISO currency code from raw text.
// Percentage markers win outright and carry no currency. A scale token
// ("mm", "millions", "k", "thousands") tags the unit as a scaled currency
// amount; a bare currency code yields "<code>_raw". Text with neither
// yields a nil unit, which is not an error.
func Unit(text string) (unit, currency *string) {
	if strings.Contains(text, "%") || containsFold(text, "pct") {
		return ptr("pct"), nil
	}

	code := ""
	for _, c := range currencyCodes {
		if containsFold(text, c) {
			code = c
			break
		}
	}

	switch {
	case millionRe.MatchString(text):
		return ptr(orUSD(code) + "_mm"), currencyPtr(code)
	case thousandRe.MatchString(text):
		return ptr(orUSD(code) + "_k"), currencyPtr(code)
	case code != "":
		return ptr(code + "_raw"), ptr(code)
	default:
		return nil, nil
	}
}

// orUSD defaults the currency code to USD when a scale token appears
// without an explicit code.
func orUSD(code string) string {
	if code == "" {
		return "USD"
	}
	return code
}

func currencyPtr(code string) *string {
	if code == "" {
		return nil
	}
	return ptr(code)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func ptr(s string) *string { return &s }
