package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Spreadsheet serial dates count days from 1899-12-30 (the Lotus/Excel
// epoch, including its phantom leap day offset).
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	isoRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	quarterRe = regexp.MustCompile(`^(\d{4})[-/]Q([1-4])$`)
	monthRe   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b.*?\b(\d{4})\b|\b(\d{4})\b.*?\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
)

var monthNum = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// quarter-end months: Q1→03, Q2→06, Q3→09, Q4→12, always day 01.
var quarterMonth = map[string]string{"1": "03", "2": "06", "3": "09", "4": "12"}

// Period infers a canonical ISO date from any period-like raw value:
// ISO dates pass through, quarter labels map to quarter-end months,
// month-name + year tokens map to the last day of that month, and bare
// numbers are treated as spreadsheet serial dates. A false return means
// "not period-like", never an error; the caller may still keep the cell
// for its numeric value.
func Period(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return PeriodFromString(v)
	case float64:
		return PeriodFromSerial(v)
	case float32:
		return PeriodFromSerial(float64(v))
	case int:
		return PeriodFromSerial(float64(v))
	case int64:
		return PeriodFromSerial(float64(v))
	default:
		return "", false
	}
}

// PeriodFromString parses the textual period shapes, trying the serial
// form last for numeric strings.
func PeriodFromString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if isoRe.MatchString(s) {
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return s, true
		}
		return "", false
	}

	if m := quarterRe.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s-%s-01", m[1], quarterMonth[m[2]]), true
	}

	if m := monthRe.FindStringSubmatch(s); m != nil {
		mon, year := m[1], m[2]
		if mon == "" {
			year, mon = m[3], m[4]
		}
		y, err := strconv.Atoi(year)
		if err != nil {
			return "", false
		}
		return endOfMonth(y, monthNum[strings.ToLower(mon)]), true
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return PeriodFromSerial(n)
	}

	return "", false
}

// PeriodFromSerial converts a spreadsheet serial day count to an ISO
// date. Serials outside a sane calendar window (1900..2200) are rejected
// so arbitrary metric values are not mistaken for dates.
func PeriodFromSerial(n float64) (string, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "", false
	}
	days := int(n)
	if days < 367 || days > 109574 {
		return "", false
	}
	return serialEpoch.AddDate(0, 0, days).Format("2006-01-02"), true
}

// endOfMonth returns the ISO date of the last day of the given month.
func endOfMonth(year int, month time.Month) string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Format("2006-01-02")
}
