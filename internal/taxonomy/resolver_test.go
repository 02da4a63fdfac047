package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_KnownConcepts(t *testing.T) {
	r := NewStaticResolver()

	tests := []struct {
		concept string
		want    string
	}{
		{"us-gaap:Revenues", "Revenue"},
		{"us-gaap:GrossProfit", "GrossMargin"},
		{"us-gaap:OperatingIncomeLoss", "EBITDAMargin"},
		{"us-gaap:Assets", "TotalAssets"},
		{"us-gaap:Liabilities", "TotalLiabilities"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Resolve(tt.concept), tt.concept)
	}
}

func TestResolve_UnmappedFallsBackToHumanized(t *testing.T) {
	r := NewStaticResolver()

	assert.Equal(t, "Deferred Revenue Current", r.Resolve("us-gaap:DeferredRevenueCurrent"))
	assert.Equal(t, "Entity Common Stock Shares Outstanding", r.Resolve("dei:EntityCommonStockSharesOutstanding"))
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"us-gaap:GrossProfit", "Gross Profit"},
		{"NoPrefix", "No Prefix"},
		{"already lower", "already lower"},
		{"ifrs-full:ProfitLossBeforeTax", "Profit Loss Before Tax"},
		{"us-gaap:EBITDA", "EBITDA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Humanize(tt.in), tt.in)
	}
}

func TestResolverWithTable(t *testing.T) {
	r := NewResolverWithTable(map[string]string{"erp:net_rev": "Revenue"})

	assert.Equal(t, "Revenue", r.Resolve("erp:net_rev"))
	// Custom tables keep the humanization fallback.
	assert.Equal(t, "Other Thing", r.Resolve("erp:OtherThing"))
}
