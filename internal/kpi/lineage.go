package kpi

import (
	"context"

	"github.com/sells-group/dealfacts-cli/internal/model"
)

// Lineage reconstructs, per metric name, the underlying facts behind
// every metric value for a deal: table, source cell reference, label,
// period, value, unit. Ordered newest period first within each metric.
// Read-only; used for audit.
func (e *Engine) Lineage(ctx context.Context, dealID string, names ...string) (map[string][]model.LineageFact, error) {
	return e.store.Lineage(ctx, dealID, names)
}
