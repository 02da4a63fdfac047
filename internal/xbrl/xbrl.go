// Package xbrl parses SEC EDGAR company-facts JSON and flattens it
// into period-tagged concept values ready for fact ingestion.
package xbrl

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/rotisserie/eris"
)

// CompanyFacts mirrors the EDGAR company facts JSON structure.
type CompanyFacts struct {
	CIK        int               `json:"cik"`
	EntityName string            `json:"entityName"`
	Facts      map[string]FactNS `json:"facts"`
}

// FactNS groups facts by namespace (e.g., "us-gaap", "dei").
type FactNS map[string]Fact

// Fact is a single XBRL concept with its units and reported values.
type Fact struct {
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	Units       map[string][]FactValue `json:"units"`
}

// FactValue is one reported data point for a concept.
type FactValue struct {
	End   string `json:"end"`
	Val   any    `json:"val"`
	Accn  string `json:"accn"`
	FY    int    `json:"fy"`
	FP    string `json:"fp"`
	Form  string `json:"form"`
	Filed string `json:"filed"`
	Frame string `json:"frame,omitempty"`
}

// ConceptFact is a flattened data point keyed by its namespaced concept.
type ConceptFact struct {
	Concept string // e.g. "us-gaap:Revenues"
	Period  string // period end date, ISO
	Value   float64
	Unit    string // XBRL unit, e.g. "USD"
	Form    string
	Filed   string
	FY      int
}

// ParseCompanyFacts decodes EDGAR company facts JSON from a reader.
func ParseCompanyFacts(r io.Reader) (*CompanyFacts, error) {
	var facts CompanyFacts
	if err := json.NewDecoder(r).Decode(&facts); err != nil {
		return nil, eris.Wrap(err, "xbrl: parse company facts")
	}
	return &facts, nil
}

// Flatten extracts concept values from the us-gaap and dei namespaces.
// Points without a period end or a numeric value are dropped. Output is
// sorted by concept then period descending for deterministic ingestion.
func Flatten(facts *CompanyFacts) []ConceptFact {
	if facts == nil || len(facts.Facts) == 0 {
		return nil
	}

	var result []ConceptFact
	for _, ns := range []string{"us-gaap", "dei"} {
		nsMap, ok := facts.Facts[ns]
		if !ok {
			continue
		}
		for name, fact := range nsMap {
			for unit, values := range fact.Units {
				for _, v := range values {
					if v.End == "" {
						continue
					}
					num, ok := asFloat(v.Val)
					if !ok {
						continue
					}
					result = append(result, ConceptFact{
						Concept: ns + ":" + name,
						Period:  v.End,
						Value:   num,
						Unit:    unit,
						Form:    v.Form,
						Filed:   v.Filed,
						FY:      v.FY,
					})
				}
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Concept != result[j].Concept {
			return result[i].Concept < result[j].Concept
		}
		return result[i].Period > result[j].Period
	})
	return result
}

// asFloat coerces the loosely-typed val field. EDGAR emits numbers for
// financial concepts and strings for dei metadata like ticker symbols.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
