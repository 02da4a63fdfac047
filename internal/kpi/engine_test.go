package kpi

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealfacts-cli/internal/model"
	"github.com/sells-group/dealfacts-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "kpi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type seedFact struct {
	label  string
	period string
	value  float64
	unit   string
}

// seedFacts ingests one document/table for the deal with the given facts.
func seedFacts(t *testing.T, s store.Store, dealID string, facts []seedFact) {
	t.Helper()
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, model.Document{
		DealID:      dealID,
		Name:        "financials.xlsx",
		Kind:        model.DocKindSpreadsheet,
		ContentHash: dealID + "-seed-" + time.Now().Format("150405.000000000"),
	})
	require.NoError(t, err)

	tbl, err := s.CreateTable(ctx, model.LogicalTable{
		DocumentID: doc.ID,
		Name:       "P&L",
		Sheet:      "Sheet1",
	})
	require.NoError(t, err)

	candidates := make([]model.CandidateFact, 0, len(facts))
	for i, f := range facts {
		f := f
		candidates = append(candidates, model.CandidateFact{
			Row:       i + 1,
			Col:       2,
			Label:     f.label,
			Period:    &f.period,
			Value:     &f.value,
			Unit:      &f.unit,
			SourceRef: "Sheet1!B" + string(rune('2'+i)),
		})
	}
	written, err := s.InsertFacts(ctx, tbl.ID, candidates)
	require.NoError(t, err)
	require.Equal(t, len(facts), written)
}

func valueIDFor(t *testing.T, res *Result, name string) *string {
	t.Helper()
	for _, c := range res.Created {
		if c.Name == name {
			return c.MetricValueID
		}
	}
	t.Fatalf("metric %s not in result", name)
	return nil
}

func TestCompute_TrailingAndYoY(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-1", []seedFact{
		{"Revenue", "2025-09-30", 124.3, "USD_mm"},
		{"Revenue", "2024-09-30", 96.8, "USD_mm"},
	})

	e := NewEngine(s)
	res, err := e.Compute(context.Background(), Params{DealID: "deal-1", PeriodsToSum: 1})
	require.NoError(t, err)
	assert.Equal(t, "2025-09-30", res.AsOf)

	require.NotNil(t, valueIDFor(t, res, MetricRevenueLTM))
	require.NotNil(t, valueIDFor(t, res, MetricYoYGrowth))

	lineage, err := e.Lineage(context.Background(), "deal-1")
	require.NoError(t, err)

	ltm := lineage[MetricRevenueLTM]
	require.Len(t, ltm, 1)
	require.NotNil(t, ltm[0].Value)
	assert.InDelta(t, 124.3, *ltm[0].Value, 1e-9)

	// YoY matched the same-month prior-year fact.
	yoy := lineage[MetricYoYGrowth]
	require.Len(t, yoy, 2)
	assert.Equal(t, "Revenue", yoy[0].Label)

	// Verify the computed growth value via an approved snapshot.
	id := valueIDFor(t, res, MetricYoYGrowth)
	_, err = e.Approve(context.Background(), *id, 30)
	require.NoError(t, err)

	snaps, err := e.GoldenFacts(context.Background(), "deal-1", MetricYoYGrowth)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.InDelta(t, (124.3-96.8)/96.8*100, snaps[0].Value, 1e-9)
	require.NotNil(t, snaps[0].Unit)
	assert.Equal(t, "pct", *snaps[0].Unit)
}

func TestCompute_TrailingSumOverWindow(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-2", []seedFact{
		{"Revenue", "2025-09-30", 30, "USD_mm"},
		{"Revenue", "2025-06-30", 28, "USD_mm"},
		{"Revenue", "2025-03-31", 27, "USD_mm"},
		{"Revenue", "2024-12-31", 25, "USD_mm"},
		{"Revenue", "2024-09-30", 24, "USD_mm"},
	})

	e := NewEngine(s)
	res, err := e.Compute(context.Background(), Params{DealID: "deal-2", PeriodsToSum: 4, Approve: true, TTLDays: 30})
	require.NoError(t, err)
	assert.Equal(t, "2025-09-30", res.AsOf)

	snaps, err := e.GoldenFacts(context.Background(), "deal-2", MetricRevenueLTM)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.InDelta(t, 110, snaps[0].Value, 1e-9)
	require.NotNil(t, snaps[0].Unit)
	assert.Equal(t, "USD_mm", *snaps[0].Unit)

	// YoY comparator: same month one year back exists (24).
	yoySnaps, err := e.GoldenFacts(context.Background(), "deal-2", MetricYoYGrowth)
	require.NoError(t, err)
	require.Len(t, yoySnaps, 1)
	assert.InDelta(t, (30.0-24.0)/24.0*100, yoySnaps[0].Value, 1e-9)
}

func TestCompute_MarginsAndOmission(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-3", []seedFact{
		{"Revenue", "2025-09-30", 124.3, "USD_mm"},
		{"GrossMargin", "2025-09-30", 72.1, "pct"},
		{"GrossMargin", "2024-09-30", 70.0, "pct"},
	})

	e := NewEngine(s)
	res, err := e.Compute(context.Background(), Params{DealID: "deal-3", PeriodsToSum: 1, Approve: true})
	require.NoError(t, err)

	require.NotNil(t, valueIDFor(t, res, MetricGrossMargin))
	// No EBITDA margin fact: omitted with a nil id, not an error.
	assert.Nil(t, valueIDFor(t, res, MetricEBITDAMargin))

	snaps, err := e.GoldenFacts(context.Background(), "deal-3", MetricGrossMargin)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.InDelta(t, 72.1, snaps[0].Value, 1e-9)
	require.NotNil(t, snaps[0].Unit)
	assert.Equal(t, "pct", *snaps[0].Unit)
	assert.Equal(t, "2025-09-30", snaps[0].AsOf)
}

func TestCompute_YoYOmittedWithSingleFact(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-4", []seedFact{
		{"Revenue", "2025-09-30", 124.3, "USD_mm"},
	})

	e := NewEngine(s)
	res, err := e.Compute(context.Background(), Params{DealID: "deal-4", PeriodsToSum: 1})
	require.NoError(t, err)

	require.NotNil(t, valueIDFor(t, res, MetricRevenueLTM))
	assert.Nil(t, valueIDFor(t, res, MetricYoYGrowth))
}

func TestCompute_YoYOmittedOnZeroPrior(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-5", []seedFact{
		{"Revenue", "2025-09-30", 124.3, "USD_mm"},
		{"Revenue", "2024-09-30", 0, "USD_mm"},
	})

	e := NewEngine(s)
	res, err := e.Compute(context.Background(), Params{DealID: "deal-5", PeriodsToSum: 1})
	require.NoError(t, err)
	assert.Nil(t, valueIDFor(t, res, MetricYoYGrowth))
}

func TestCompute_YoYFallbackToWindowEdge(t *testing.T) {
	// No same-month prior-year fact; the comparator falls back to the
	// fact just past the trailing window.
	s := newTestStore(t)
	seedFacts(t, s, "deal-6", []seedFact{
		{"Revenue", "2025-09-30", 30, "USD_mm"},
		{"Revenue", "2025-06-30", 28, "USD_mm"},
		{"Revenue", "2025-03-31", 26, "USD_mm"},
	})

	e := NewEngine(s)
	res, err := e.Compute(context.Background(), Params{DealID: "deal-6", PeriodsToSum: 2, Approve: true})
	require.NoError(t, err)
	require.NotNil(t, valueIDFor(t, res, MetricYoYGrowth))

	snaps, err := e.GoldenFacts(context.Background(), "deal-6", MetricYoYGrowth)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.InDelta(t, (30.0-26.0)/26.0*100, snaps[0].Value, 1e-9)
}

func TestCompute_NoRevenueFactsIsInputError(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-7", []seedFact{
		{"GrossMargin", "2025-09-30", 72.1, "pct"},
		{"Headcount", "2025-09-30", 340, ""},
		{"Headcount", "2025-06-30", 322, ""},
	})

	e := NewEngine(s)
	_, err := e.Compute(context.Background(), Params{DealID: "deal-7"})
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	// Diagnostic enumerates labels that do have perioded facts, by count.
	assert.Contains(t, err.Error(), "Headcount (2)")
	assert.Contains(t, err.Error(), "GrossMargin (1)")
}

func TestCompute_IdempotentTrailingSum(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-8", []seedFact{
		{"Revenue", "2025-09-30", 124.3, "USD_mm"},
		{"Revenue", "2024-09-30", 96.8, "USD_mm"},
	})

	e := NewEngine(s)
	p := Params{DealID: "deal-8", PeriodsToSum: 2, Approve: true}

	res1, err := e.Compute(context.Background(), p)
	require.NoError(t, err)
	res2, err := e.Compute(context.Background(), p)
	require.NoError(t, err)

	// Distinct MetricValue rows, identical trailing sum.
	id1 := valueIDFor(t, res1, MetricRevenueLTM)
	id2 := valueIDFor(t, res2, MetricRevenueLTM)
	require.NotNil(t, id1)
	require.NotNil(t, id2)
	assert.NotEqual(t, *id1, *id2)

	snaps, err := e.GoldenFacts(context.Background(), "deal-8", MetricRevenueLTM)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.InDelta(t, snaps[0].Value, snaps[1].Value, 1e-9)
	assert.InDelta(t, 221.1, snaps[0].Value, 1e-9)
}

func TestCompute_LineageRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-9", []seedFact{
		{"Revenue", "2025-09-30", 124.3, "USD_mm"},
		{"Revenue", "2024-09-30", 96.8, "USD_mm"},
		{"GrossMargin", "2025-09-30", 72.1, "pct"},
		{"EBITDAMargin", "2025-09-30", 31.4, "pct"},
	})

	e := NewEngine(s)
	res, err := e.Compute(context.Background(), Params{DealID: "deal-9", PeriodsToSum: 2})
	require.NoError(t, err)

	lineage, err := e.Lineage(context.Background(), "deal-9")
	require.NoError(t, err)

	inputLabels := map[string]bool{"Revenue": true, "GrossMargin": true, "EBITDAMargin": true}
	for _, c := range res.Created {
		if c.MetricValueID == nil {
			continue
		}
		facts := lineage[c.Name]
		require.NotEmpty(t, facts, c.Name)
		matched := false
		for _, f := range facts {
			if inputLabels[f.Label] {
				matched = true
			}
			assert.Equal(t, "P&L", f.TableName)
			assert.NotEmpty(t, f.SourceRef)
		}
		assert.True(t, matched, "lineage for %s must touch an input label", c.Name)
	}
}

func TestCompute_ConcurrentRunsStayTraceable(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-10", []seedFact{
		{"Revenue", "2025-09-30", 124.3, "USD_mm"},
		{"Revenue", "2024-09-30", 96.8, "USD_mm"},
		{"GrossMargin", "2025-09-30", 72.1, "pct"},
	})

	e := NewEngine(s)
	var g errgroup.Group
	results := make([]*Result, 2)
	for i := range results {
		g.Go(func() error {
			res, err := e.Compute(context.Background(), Params{DealID: "deal-10", PeriodsToSum: 2, Approve: true})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	require.NoError(t, g.Wait())

	id1 := valueIDFor(t, results[0], MetricRevenueLTM)
	id2 := valueIDFor(t, results[1], MetricRevenueLTM)
	require.NotNil(t, id1)
	require.NotNil(t, id2)
	assert.NotEqual(t, *id1, *id2)

	// Both runs produced independently traceable values.
	lineage, err := e.Lineage(context.Background(), "deal-10", MetricRevenueLTM)
	require.NoError(t, err)
	assert.Len(t, lineage[MetricRevenueLTM], 4) // 2 facts per run
}

func TestApprove_ExpiredGoldenFactExcluded(t *testing.T) {
	s := newTestStore(t)
	seedFacts(t, s, "deal-11", []seedFact{
		{"Revenue", "2025-09-30", 124.3, "USD_mm"},
	})

	e := NewEngine(s)
	res, err := e.Compute(context.Background(), Params{DealID: "deal-11", PeriodsToSum: 1})
	require.NoError(t, err)
	id := valueIDFor(t, res, MetricRevenueLTM)
	require.NotNil(t, id)

	// Status says approved but the TTL is already in the past.
	_, err = s.InsertGoldenFact(context.Background(), *id, model.GoldenApproved, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	snaps, err := e.GoldenFacts(context.Background(), "deal-11")
	require.NoError(t, err)
	assert.Empty(t, snaps)

	// A fresh approval makes it visible.
	_, err = e.Approve(context.Background(), *id, 7)
	require.NoError(t, err)
	snaps, err = e.GoldenFacts(context.Background(), "deal-11")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, MetricRevenueLTM, snaps[0].MetricName)
}
