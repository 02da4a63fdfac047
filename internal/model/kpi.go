package model

import "time"

// CanonicalMetric is a named KPI definition, upserted lazily by name on
// first computation. The name is a stable key; the description may grow.
type CanonicalMetric struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MetricValue is one computed instance of a metric for a deal at an
// as-of period. Multiple values may coexist per (metric, deal, as_of)
// across computation runs; only approval dedupes.
type MetricValue struct {
	ID        string    `json:"id"`
	MetricID  string    `json:"metric_id"`
	DealID    string    `json:"deal_id"`
	AsOf      string    `json:"as_of"`
	Value     float64   `json:"value"`
	Unit      *string   `json:"unit,omitempty"`
	Formula   string    `json:"formula"`
	CreatedAt time.Time `json:"created_at"`
}

// GoldenStatus is the approval state of a golden fact.
type GoldenStatus string

const (
	GoldenDraft    GoldenStatus = "draft"
	GoldenApproved GoldenStatus = "approved"
	GoldenExpired  GoldenStatus = "expired"
)

// GoldenFact wraps one MetricValue with an approval status and a TTL.
// Expiry is evaluated lazily at read time; nothing transitions the
// status column in the background.
type GoldenFact struct {
	ID            string       `json:"id"`
	MetricValueID string       `json:"metric_value_id"`
	Status        GoldenStatus `json:"status"`
	TTLUntil      time.Time    `json:"ttl_until"`
	CreatedAt     time.Time    `json:"created_at"`
}

// GoldenSnapshot is the external read view of an approved, unexpired
// metric value.
type GoldenSnapshot struct {
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Unit       *string   `json:"unit,omitempty"`
	AsOf       string    `json:"as_of"`
	Formula    string    `json:"formula"`
	TTLUntil   time.Time `json:"ttl_until"`
}

// LineageFact is one underlying cell behind a metric value, as returned
// by the lineage reader.
type LineageFact struct {
	TableName string   `json:"table_name"`
	SourceRef string   `json:"source_ref"`
	Label     string   `json:"label"`
	Period    *string  `json:"period,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Unit      *string  `json:"unit,omitempty"`
}
