package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/dealfacts-cli/internal/model"
	"github.com/sells-group/dealfacts-cli/internal/normalize"
)

// FactsFromGrid extracts candidate facts from a raw string grid. The
// first row containing a period-like cell past the first column is the
// header; its period columns date every cell beneath them. Each data
// row's first non-empty cell is the label for the rest of the row.
// Cells that are neither numeric nor period-dated still become
// candidates; the store's persistence invariant drops them.
func FactsFromGrid(sheet string, rows [][]string) []model.CandidateFact {
	headerIdx, periods := findHeader(rows)
	if headerIdx < 0 {
		return nil
	}

	var facts []model.CandidateFact
	for r := headerIdx + 1; r < len(rows); r++ {
		row := rows[r]
		labelCol := firstNonEmpty(row)
		if labelCol < 0 {
			continue
		}
		label := strings.TrimSpace(row[labelCol])

		for c := labelCol + 1; c < len(row); c++ {
			text := strings.TrimSpace(row[c])
			if text == "" {
				continue
			}

			f := model.CandidateFact{
				Row:       r + 1,
				Col:       c + 1,
				Label:     label,
				SourceRef: fmt.Sprintf("%s!%s%d", sheet, columnName(c), r+1),
			}
			if p, ok := periods[c]; ok {
				p := p
				f.Period = &p
			}
			if v, ok := parseNumber(text); ok {
				v := v
				f.Value = &v
			}

			// Unit signals live in the cell itself ("72.1%") or in the
			// row label ("Revenue ($mm)").
			unit, currency := normalize.Unit(text)
			if unit == nil {
				unit, currency = normalize.Unit(label)
			}
			f.Unit = unit
			f.Currency = currency

			facts = append(facts, f)
		}
	}
	return facts
}

// findHeader locates the first row with a period-like cell past column
// zero and maps column index to normalized period.
func findHeader(rows [][]string) (int, map[int]string) {
	for r, row := range rows {
		periods := make(map[int]string)
		for c := 1; c < len(row); c++ {
			if p, ok := normalize.Period(strings.TrimSpace(row[c])); ok {
				periods[c] = p
			}
		}
		if len(periods) > 0 {
			return r, periods
		}
	}
	return -1, nil
}

func firstNonEmpty(row []string) int {
	for i, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return i
		}
	}
	return -1
}

// parseNumber reads spreadsheet-shaped numbers: thousands separators,
// currency symbols, trailing %, and accounting-style parentheses for
// negatives.
func parseNumber(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", "%", "", " ", "").Replace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// columnName converts a zero-based column index to A1 letters.
func columnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
