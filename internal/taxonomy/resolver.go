// Package taxonomy maps source-specific concept identifiers to the
// canonical labels the KPI derivation engine queries by.
package taxonomy

import (
	"strings"
	"unicode"
)

// Resolver maps an external concept identifier to a canonical label.
// Implementations must be safe for concurrent use.
type Resolver interface {
	Resolve(conceptID string) string
}

// usGAAPLabels maps US-GAAP concepts to engine input labels. Margin-type
// concepts map to the label the engine queries for (GrossProfit feeds
// the GrossMargin series), not a restatement of the concept name.
var usGAAPLabels = map[string]string{
	"us-gaap:Revenues":                          "Revenue",
	"us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax": "Revenue",
	"us-gaap:SalesRevenueNet":                   "Revenue",
	"us-gaap:GrossProfit":                       "GrossMargin",
	"us-gaap:OperatingIncomeLoss":               "EBITDAMargin",
	"us-gaap:NetIncomeLoss":                     "NetIncome",
	"us-gaap:Assets":                            "TotalAssets",
	"us-gaap:Liabilities":                       "TotalLiabilities",
	"us-gaap:StockholdersEquity":                "Equity",
	"us-gaap:CashAndCashEquivalentsAtCarryingValue": "Cash",
	"us-gaap:LongTermDebt":                      "LongTermDebt",
	"us-gaap:InterestExpense":                   "InterestExpense",
}

// StaticResolver resolves concepts against a fixed table with a
// humanization fallback, so unmapped data is still retained under a
// readable label for manual inspection rather than dropped.
type StaticResolver struct {
	labels map[string]string
}

// NewStaticResolver returns a resolver over the built-in US-GAAP table.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{labels: usGAAPLabels}
}

// NewResolverWithTable returns a resolver over a caller-supplied table,
// for taxonomies beyond US-GAAP.
func NewResolverWithTable(table map[string]string) *StaticResolver {
	labels := make(map[string]string, len(table))
	for k, v := range table {
		labels[k] = v
	}
	return &StaticResolver{labels: labels}
}

func (r *StaticResolver) Resolve(conceptID string) string {
	if label, ok := r.labels[conceptID]; ok {
		return label
	}
	return Humanize(conceptID)
}

// Humanize strips the namespace prefix and inserts spaces before
// interior capital letters: "us-gaap:DeferredRevenue" → "Deferred Revenue".
func Humanize(conceptID string) string {
	name := conceptID
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
