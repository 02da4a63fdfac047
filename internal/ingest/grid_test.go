package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealfacts-cli/internal/model"
)

func factAt(t *testing.T, facts []model.CandidateFact, ref string) model.CandidateFact {
	t.Helper()
	for _, f := range facts {
		if f.SourceRef == ref {
			return f
		}
	}
	t.Fatalf("no candidate with source ref %s", ref)
	return model.CandidateFact{}
}

func TestFactsFromGrid_PnL(t *testing.T) {
	rows := [][]string{
		{"Income Statement"},
		{"", "2024-Q3", "2025-Q3"},
		{"Revenue ($mm)", "96.8", "124.3"},
		{"Gross Margin", "70.0%", "72.1%"},
		{"", "", ""},
		{"Headcount", "322", "340"},
	}

	facts := FactsFromGrid("P&L", rows)
	require.Len(t, facts, 6)

	rev := factAt(t, facts, "P&L!C3")
	assert.Equal(t, "Revenue ($mm)", rev.Label)
	require.NotNil(t, rev.Period)
	assert.Equal(t, "2025-09-01", *rev.Period)
	require.NotNil(t, rev.Value)
	assert.InDelta(t, 124.3, *rev.Value, 1e-9)
	require.NotNil(t, rev.Unit)
	assert.Equal(t, "USD_mm", *rev.Unit)
	require.NotNil(t, rev.Currency)
	assert.Equal(t, "USD", *rev.Currency)

	gm := factAt(t, facts, "P&L!B4")
	require.NotNil(t, gm.Unit)
	assert.Equal(t, "pct", *gm.Unit)
	assert.Nil(t, gm.Currency)
	require.NotNil(t, gm.Value)
	assert.InDelta(t, 70.0, *gm.Value, 1e-9)

	hc := factAt(t, facts, "P&L!C6")
	assert.Equal(t, "Headcount", hc.Label)
	assert.Nil(t, hc.Unit)
	require.NotNil(t, hc.Value)
	assert.InDelta(t, 340, *hc.Value, 1e-9)
}

func TestFactsFromGrid_NoPeriodHeader(t *testing.T) {
	rows := [][]string{
		{"Notes"},
		{"just prose", "more prose"},
	}
	assert.Nil(t, FactsFromGrid("Sheet1", rows))
}

func TestFactsFromGrid_NonNumericCellKeepsPeriod(t *testing.T) {
	rows := [][]string{
		{"Label", "2025-09-30"},
		{"Auditor", "KPMG"},
	}
	facts := FactsFromGrid("Sheet1", rows)
	require.Len(t, facts, 1)
	assert.Nil(t, facts[0].Value)
	require.NotNil(t, facts[0].Period)
	assert.Equal(t, "2025-09-30", *facts[0].Period)
	assert.True(t, facts[0].Persistable())
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"124.3", 124.3, true},
		{"1,234,567", 1234567, true},
		{"$96.8", 96.8, true},
		{"72.1%", 72.1, true},
		{"(4.2)", -4.2, true},
		{"€1 250", 1250, true},
		{"-", 0, false},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", columnName(0))
	assert.Equal(t, "B", columnName(1))
	assert.Equal(t, "Z", columnName(25))
	assert.Equal(t, "AA", columnName(26))
	assert.Equal(t, "AB", columnName(27))
}
