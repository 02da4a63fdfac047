package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealfacts-cli/internal/fetcher"
	"github.com/sells-group/dealfacts-cli/internal/model"
	"github.com/sells-group/dealfacts-cli/internal/normalize"
	"github.com/sells-group/dealfacts-cli/internal/xbrl"
)

const companyFactsURL = "https://data.sec.gov/api/xbrl/companyfacts/CIK%010d.json"

// XBRLOptions configures an EDGAR company-facts ingestion pass.
type XBRLOptions struct {
	// Forms restricts ingestion to specific filing form types
	// (e.g. "10-K", "10-Q"). Empty means all forms.
	Forms   []string
	Version string
}

// IngestXBRLFile ingests a local EDGAR company-facts JSON file. Each
// concept value becomes an atomic fact labeled through the concept
// resolver, so "us-gaap:Revenues" data lands under "Revenue".
func (i *Ingestor) IngestXBRLFile(ctx context.Context, dealID, path string, opts XBRLOptions) (*Result, error) {
	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	doc, deduped, err := i.documentFor(ctx, model.Document{
		DealID:      dealID,
		Name:        filepath.Base(path),
		Kind:        model.DocKindXBRL,
		Version:     opts.Version,
		ContentHash: hash,
	})
	if err != nil {
		return nil, err
	}
	res := &Result{Document: doc, Deduped: deduped}
	if deduped {
		return res, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	facts, err := xbrl.ParseCompanyFacts(f)
	if err != nil {
		return nil, err
	}

	candidates := i.conceptCandidates(xbrl.Flatten(facts), opts.Forms)
	tbl := model.LogicalTable{
		DocumentID: doc.ID,
		Name:       "EDGAR company facts",
		Note:       facts.EntityName,
	}
	if err := i.writeTable(ctx, tbl, candidates, res); err != nil {
		return nil, err
	}
	return res, nil
}

// FetchEDGAR downloads company facts for a CIK to the given path using
// a rate-limited fetcher. SEC requires a descriptive User-Agent.
func FetchEDGAR(ctx context.Context, f fetcher.Fetcher, cik int, path string) error {
	url := fmt.Sprintf(companyFactsURL, cik)
	if _, err := f.DownloadToFile(ctx, url, path); err != nil {
		return eris.Wrapf(err, "ingest: fetch EDGAR facts for CIK %d", cik)
	}
	return nil
}

// conceptCandidates maps flattened XBRL points to candidate facts.
// Row numbering is the point's position in the flattened output; the
// source reference names the filing that reported the value.
func (i *Ingestor) conceptCandidates(points []xbrl.ConceptFact, forms []string) []model.CandidateFact {
	allowed := make(map[string]bool, len(forms))
	for _, f := range forms {
		allowed[f] = true
	}

	var candidates []model.CandidateFact
	for idx, p := range points {
		if len(allowed) > 0 && !allowed[p.Form] {
			continue
		}
		period := p.Period
		value := p.Value
		unit, currency := normalize.Unit(p.Unit)
		candidates = append(candidates, model.CandidateFact{
			Row:       idx + 1,
			Col:       1,
			Label:     i.resolver.Resolve(p.Concept),
			Period:    &period,
			Value:     &value,
			Unit:      unit,
			Currency:  currency,
			SourceRef: fmt.Sprintf("%s %s %s", p.Form, p.Filed, p.Concept),
		})
	}
	return candidates
}
