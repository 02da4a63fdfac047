package model

import "time"

// CandidateFact is one extracted cell before persistence. Rows whose
// Period and Value are both nil carry no derivable information and are
// dropped by the writer rather than stored or erred on.
type CandidateFact struct {
	Row       int      `json:"row"`
	Col       int      `json:"col"`
	Label     string   `json:"label"`
	Period    *string  `json:"period,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Unit      *string  `json:"unit,omitempty"`
	Currency  *string  `json:"currency,omitempty"`
	SourceRef string   `json:"source_ref"`
}

// Persistable reports whether the candidate carries at least a period or
// a numeric value.
func (c CandidateFact) Persistable() bool {
	return c.Period != nil || c.Value != nil
}

// AtomicFact is the irreducible unit of ingested data: one normalized
// observation tied back to its source cell. Immutable once written.
type AtomicFact struct {
	ID        string    `json:"id"`
	TableID   string    `json:"table_id"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Label     string    `json:"label"`
	Period    *string   `json:"period,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Unit      *string   `json:"unit,omitempty"`
	Currency  *string   `json:"currency,omitempty"`
	SourceRef string    `json:"source_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// LabeledFact is the query-layer view of a fact: id, period, value, unit
// for one canonical label, returned newest period first.
type LabeledFact struct {
	ID     string   `json:"fact_id"`
	Period string   `json:"period"`
	Value  *float64 `json:"value,omitempty"`
	Unit   *string  `json:"unit,omitempty"`
}

// LabelCount pairs a label with how many perioded facts carry it, used
// for the diagnostic hint when a requested label has no facts.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
