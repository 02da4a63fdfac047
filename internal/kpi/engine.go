// Package kpi derives canonical financial metrics from atomic facts and
// manages their approval into golden, TTL-bounded snapshots. Every
// computed value records the formula used and lineage edges back to the
// exact source facts.
package kpi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealfacts-cli/internal/model"
	"github.com/sells-group/dealfacts-cli/internal/store"
)

// Canonical metric names and descriptions, upserted lazily on first use.
const (
	MetricRevenueLTM   = "Revenue_LTM"
	MetricYoYGrowth    = "YoY_Growth"
	MetricGrossMargin  = "Gross_Margin"
	MetricEBITDAMargin = "EBITDA_Margin"
)

var metricDescriptions = map[string]string{
	MetricRevenueLTM:   "Trailing revenue: sum of the most recent N perioded revenue facts",
	MetricYoYGrowth:    "Year-over-year revenue growth in percent against the same month one year prior",
	MetricGrossMargin:  "Latest reported gross margin",
	MetricEBITDAMargin: "Latest reported EBITDA margin",
}

// Params configures one derivation run for a deal.
type Params struct {
	DealID            string
	RevenueLabel      string
	GrossMarginLabel  string
	EBITDAMarginLabel string
	PeriodsToSum      int
	Approve           bool
	TTLDays           int
}

// defaults mirror a quarterly reporting cadence with a 90-day snapshot TTL.
func (p *Params) applyDefaults() {
	if p.RevenueLabel == "" {
		p.RevenueLabel = "Revenue"
	}
	if p.GrossMarginLabel == "" {
		p.GrossMarginLabel = "GrossMargin"
	}
	if p.EBITDAMarginLabel == "" {
		p.EBITDAMarginLabel = "EBITDAMargin"
	}
	if p.PeriodsToSum <= 0 {
		p.PeriodsToSum = 4
	}
	if p.TTLDays <= 0 {
		p.TTLDays = 90
	}
}

// CreatedMetric reports the outcome for one metric name: a nil value id
// means the metric was omitted for this run (missing comparator or
// input), which is not an error.
type CreatedMetric struct {
	Name          string  `json:"name"`
	MetricValueID *string `json:"metric_value_id"`
}

// Result is the outcome of one derivation run.
type Result struct {
	AsOf    string          `json:"as_of"`
	Created []CreatedMetric `json:"created"`
}

// Engine computes metrics over the fact store. It is stateless; every
// invocation is an independent unit of work.
type Engine struct {
	store store.Store
}

// NewEngine returns an Engine backed by the given store.
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// Compute runs the fixed derivation rules for one deal. Facts arrive
// from the query layer newest period first; that ordering carries the
// "latest" and "trailing N" semantics, so it is never re-sorted here.
// No unit conversion happens: revenue facts summed together are assumed
// to share a unit.
func (e *Engine) Compute(ctx context.Context, p Params) (*Result, error) {
	p.applyDefaults()
	log := zap.L().With(zap.String("component", "kpi.engine"), zap.String("deal_id", p.DealID))

	revenue, err := e.store.FactsByLabel(ctx, p.DealID, p.RevenueLabel)
	if err != nil {
		return nil, err
	}
	if len(revenue) == 0 {
		return nil, e.noRevenueError(ctx, p)
	}
	gross, err := e.store.FactsByLabel(ctx, p.DealID, p.GrossMarginLabel)
	if err != nil {
		return nil, err
	}
	ebitda, err := e.store.FactsByLabel(ctx, p.DealID, p.EBITDAMarginLabel)
	if err != nil {
		return nil, err
	}

	latest := revenue[0]
	asOf := latest.Period
	result := &Result{AsOf: asOf}

	ltm := trailingSum(revenue, p.PeriodsToSum, asOf)
	yoy := yearOverYear(revenue, p.PeriodsToSum)
	grossLatest := latestMargin(gross, p.GrossMarginLabel)
	ebitdaLatest := latestMargin(ebitda, p.EBITDAMarginLabel)

	for _, d := range []struct {
		name    string
		derived *derived
	}{
		{MetricRevenueLTM, ltm},
		{MetricYoYGrowth, yoy},
		{MetricGrossMargin, grossLatest},
		{MetricEBITDAMargin, ebitdaLatest},
	} {
		created := CreatedMetric{Name: d.name}
		if d.derived != nil {
			id, err := e.persist(ctx, p, d.name, asOf, d.derived)
			if err != nil {
				return nil, err
			}
			created.MetricValueID = &id
		} else {
			log.Debug("metric omitted", zap.String("metric", d.name))
		}
		result.Created = append(result.Created, created)
	}

	log.Info("kpi run complete",
		zap.String("as_of", asOf),
		zap.Int("metrics", len(result.Created)),
	)
	return result, nil
}

// derived is one computed metric ready for persistence.
type derived struct {
	value   float64
	unit    *string
	formula string
	factIDs []string
}

// persist upserts the metric, writes the value, its lineage edges, and
// optionally the approval record.
func (e *Engine) persist(ctx context.Context, p Params, name, asOf string, d *derived) (string, error) {
	metricID, err := e.store.UpsertMetric(ctx, name, metricDescriptions[name])
	if err != nil {
		return "", err
	}

	mv, err := e.store.InsertMetricValue(ctx, model.MetricValue{
		MetricID: metricID,
		DealID:   p.DealID,
		AsOf:     asOf,
		Value:    d.value,
		Unit:     d.unit,
		Formula:  d.formula,
	})
	if err != nil {
		return "", err
	}

	if err := e.store.InsertLineage(ctx, mv.ID, d.factIDs); err != nil {
		return "", err
	}

	if p.Approve {
		ttl := time.Now().UTC().Add(time.Duration(p.TTLDays) * 24 * time.Hour)
		if _, err := e.store.InsertGoldenFact(ctx, mv.ID, model.GoldenApproved, ttl); err != nil {
			return "", err
		}
	}
	return mv.ID, nil
}

// trailingSum sums the first n facts (newest first), treating nil values
// as zero. The unit comes from the first summed fact.
func trailingSum(facts []model.LabeledFact, n int, asOf string) *derived {
	if n > len(facts) {
		n = len(facts)
	}
	window := facts[:n]

	var sum float64
	factIDs := make([]string, 0, n)
	for _, f := range window {
		if f.Value != nil {
			sum += *f.Value
		}
		factIDs = append(factIDs, f.ID)
	}

	return &derived{
		value:   sum,
		unit:    window[0].Unit,
		formula: fmt.Sprintf("SUM(last %d revenue periods through %s)", n, asOf),
		factIDs: factIDs,
	}
}

// yearOverYear computes the growth percentage against a prior fact. The
// preferred comparator is the fact in the same calendar month one year
// before the latest period; failing that, the fact just past the
// trailing window; failing that, the oldest fact. A missing or zero
// prior omits the metric rather than erring.
func yearOverYear(facts []model.LabeledFact, periodsToSum int) *derived {
	latest := facts[0]
	prior := priorYearFact(facts, periodsToSum)
	if prior == nil || prior.Value == nil || *prior.Value == 0 {
		return nil
	}
	if latest.Value == nil {
		return nil
	}

	growth := (*latest.Value - *prior.Value) / *prior.Value * 100
	unit := "pct"
	return &derived{
		value: growth,
		unit:  &unit,
		formula: fmt.Sprintf("(%s@%s - %s@%s) / %s@%s * 100",
			fmtVal(latest.Value), latest.Period,
			fmtVal(prior.Value), prior.Period,
			fmtVal(prior.Value), prior.Period),
		factIDs: []string{latest.ID, prior.ID},
	}
}

// priorYearFact picks the YoY comparator with the documented fallback
// chain. The fallbacks can compare periods that are not exactly one
// year apart; that ambiguity is accepted rather than erred on.
func priorYearFact(facts []model.LabeledFact, periodsToSum int) *model.LabeledFact {
	latest := facts[0]
	if len(latest.Period) >= 7 {
		wantMonth := latest.Period[5:7]
		wantYear := latest.Period[:4]
		for i := 1; i < len(facts); i++ {
			p := facts[i].Period
			if len(p) >= 7 && p[5:7] == wantMonth && yearBefore(wantYear, p[:4]) {
				return &facts[i]
			}
		}
	}
	if periodsToSum < len(facts) {
		return &facts[periodsToSum]
	}
	if len(facts) > 1 {
		return &facts[len(facts)-1]
	}
	return nil
}

// yearBefore reports whether prior is exactly one calendar year before latest.
func yearBefore(latestYear, priorYear string) bool {
	var ly, py int
	if _, err := fmt.Sscanf(latestYear, "%d", &ly); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(priorYear, "%d", &py); err != nil {
		return false
	}
	return ly-py == 1
}

// latestMargin takes the single most recent fact for a margin label, if any.
func latestMargin(facts []model.LabeledFact, label string) *derived {
	if len(facts) == 0 {
		return nil
	}
	f := facts[0]
	if f.Value == nil {
		return nil
	}
	return &derived{
		value:   *f.Value,
		unit:    f.Unit,
		formula: fmt.Sprintf("latest %s at %s", label, f.Period),
		factIDs: []string{f.ID},
	}
}

// noRevenueError builds the diagnostic input error listing labels that
// do have perioded facts, so the caller can correct the label choice.
func (e *Engine) noRevenueError(ctx context.Context, p Params) error {
	counts, err := e.store.LabelsWithFacts(ctx, p.DealID, 10)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return &InputError{msg: fmt.Sprintf(
			"no perioded facts for revenue label %q on deal %s and no other labels have perioded data; ingest source files first",
			p.RevenueLabel, p.DealID)}
	}

	labels := make([]string, 0, len(counts))
	for _, c := range counts {
		labels = append(labels, fmt.Sprintf("%s (%d)", c.Label, c.Count))
	}
	return &InputError{msg: fmt.Sprintf(
		"no perioded facts for revenue label %q on deal %s; labels with data: %s",
		p.RevenueLabel, p.DealID, strings.Join(labels, ", "))}
}

// InputError marks a recoverable caller mistake (wrong or empty label),
// as opposed to a store failure.
type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

// IsInputError reports whether err is a recoverable input error.
func IsInputError(err error) bool {
	var ie *InputError
	return eris.As(err, &ie)
}

func fmtVal(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%g", *v)
}
