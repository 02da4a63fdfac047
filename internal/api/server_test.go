package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealfacts-cli/internal/kpi"
	"github.com/sells-group/dealfacts-cli/internal/model"
	"github.com/sells-group/dealfacts-cli/internal/store"
)

func testDefaults() KPIDefaults {
	return KPIDefaults{
		RevenueLabel:      "Revenue",
		GrossMarginLabel:  "GrossMargin",
		EBITDAMarginLabel: "EBITDAMargin",
		PeriodsToSum:      4,
		Approve:           true,
		TTLDays:           90,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	ts := httptest.NewServer(NewServer(s, testDefaults()).Router())
	t.Cleanup(ts.Close)
	return ts, s
}

func seedRevenue(t *testing.T, s store.Store, dealID string) {
	t.Helper()
	ctx := context.Background()
	doc, err := s.CreateDocument(ctx, model.Document{
		DealID: dealID, Name: "f.xlsx", Kind: model.DocKindSpreadsheet, ContentHash: "h-" + dealID,
	})
	require.NoError(t, err)
	tbl, err := s.CreateTable(ctx, model.LogicalTable{DocumentID: doc.ID, Name: "P&L", Sheet: "Sheet1"})
	require.NoError(t, err)

	p1, p2 := "2025-09-30", "2024-09-30"
	v1, v2 := 124.3, 96.8
	unit := "USD_mm"
	_, err = s.InsertFacts(ctx, tbl.ID, []model.CandidateFact{
		{Row: 3, Col: 2, Label: "Revenue", Period: &p1, Value: &v1, Unit: &unit, SourceRef: "Sheet1!B3"},
		{Row: 3, Col: 3, Label: "Revenue", Period: &p2, Value: &v2, Unit: &unit, SourceRef: "Sheet1!C3"},
	})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCompute_EndToEnd(t *testing.T) {
	ts, s := newTestServer(t)
	seedRevenue(t, s, "deal-1")

	resp, err := http.Post(ts.URL+"/v1/deals/deal-1/compute", "application/json",
		strings.NewReader(`{"periods_to_sum": 1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res kpi.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "2025-09-30", res.AsOf)
	require.NotEmpty(t, res.Created)

	// Default auto-approve published golden facts.
	gResp, err := http.Get(ts.URL + "/v1/deals/deal-1/golden?metric=Revenue_LTM")
	require.NoError(t, err)
	defer gResp.Body.Close()
	require.Equal(t, http.StatusOK, gResp.StatusCode)

	var snaps []model.GoldenSnapshot
	require.NoError(t, json.NewDecoder(gResp.Body).Decode(&snaps))
	require.Len(t, snaps, 1)
	assert.InDelta(t, 124.3, snaps[0].Value, 1e-9)
}

func TestCompute_NoRevenueIsUnprocessable(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/deals/deal-404/compute", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "no perioded facts")
}

func TestCompute_InvalidBody(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/deals/deal-1/compute", "application/json",
		strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApproveAndLineage(t *testing.T) {
	ts, s := newTestServer(t)
	seedRevenue(t, s, "deal-2")

	// Compute without auto-approval.
	resp, err := http.Post(ts.URL+"/v1/deals/deal-2/compute", "application/json",
		strings.NewReader(`{"periods_to_sum": 1, "approve": false}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res kpi.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))

	var mvID string
	for _, c := range res.Created {
		if c.Name == kpi.MetricRevenueLTM {
			require.NotNil(t, c.MetricValueID)
			mvID = *c.MetricValueID
		}
	}
	require.NotEmpty(t, mvID)

	// Nothing golden yet.
	gResp, err := http.Get(ts.URL + "/v1/deals/deal-2/golden")
	require.NoError(t, err)
	defer gResp.Body.Close()
	var snaps []model.GoldenSnapshot
	require.NoError(t, json.NewDecoder(gResp.Body).Decode(&snaps))
	assert.Empty(t, snaps)

	// Approve explicitly.
	aResp, err := http.Post(ts.URL+"/v1/metric-values/"+mvID+"/approve", "application/json",
		strings.NewReader(`{"ttl_days": 30}`))
	require.NoError(t, err)
	defer aResp.Body.Close()
	assert.Equal(t, http.StatusCreated, aResp.StatusCode)

	gResp2, err := http.Get(ts.URL + "/v1/deals/deal-2/golden")
	require.NoError(t, err)
	defer gResp2.Body.Close()
	require.NoError(t, json.NewDecoder(gResp2.Body).Decode(&snaps))
	require.Len(t, snaps, 1)

	// Lineage ties the value back to the source cells.
	lResp, err := http.Get(ts.URL + "/v1/deals/deal-2/lineage?metric=Revenue_LTM")
	require.NoError(t, err)
	defer lResp.Body.Close()
	require.Equal(t, http.StatusOK, lResp.StatusCode)

	var lineage map[string][]model.LineageFact
	require.NoError(t, json.NewDecoder(lResp.Body).Decode(&lineage))
	require.Len(t, lineage[kpi.MetricRevenueLTM], 1)
	assert.Equal(t, "Sheet1!B3", lineage[kpi.MetricRevenueLTM][0].SourceRef)
}
