package kpi

import (
	"context"
	"time"

	"github.com/sells-group/dealfacts-cli/internal/model"
)

// Approve promotes a computed metric value into an approved golden fact
// with a TTL. A pure insert: nothing transitions existing golden rows,
// and expiry is evaluated lazily by readers.
func (e *Engine) Approve(ctx context.Context, metricValueID string, ttlDays int) (*model.GoldenFact, error) {
	if ttlDays <= 0 {
		ttlDays = 90
	}
	ttl := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
	return e.store.InsertGoldenFact(ctx, metricValueID, model.GoldenApproved, ttl)
}

// GoldenFacts returns the approved, unexpired snapshots for a deal,
// optionally filtered by metric name. Consumers see only values that
// passed the approval gate and whose TTL has not lapsed; the most recent
// row per metric is authoritative but duplicates are the reader's to
// filter.
func (e *Engine) GoldenFacts(ctx context.Context, dealID string, names ...string) ([]model.GoldenSnapshot, error) {
	return e.store.GoldenFacts(ctx, dealID, names)
}
