package ingest

import (
	"context"
	"path/filepath"

	"github.com/sells-group/dealfacts-cli/internal/fetcher"
	"github.com/sells-group/dealfacts-cli/internal/model"
)

// ExcelOptions configures a spreadsheet ingestion pass.
type ExcelOptions struct {
	// SheetHints restricts ingestion to the named sheets. Empty means
	// every sheet in the workbook.
	SheetHints []string
	Version    string
}

// IngestExcel ingests an XLSX workbook as one document with one
// logical table per sheet that yields facts.
func (i *Ingestor) IngestExcel(ctx context.Context, dealID, path string, opts ExcelOptions) (*Result, error) {
	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	doc, deduped, err := i.documentFor(ctx, model.Document{
		DealID:      dealID,
		Name:        filepath.Base(path),
		Kind:        model.DocKindSpreadsheet,
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

	var grids []fetcher.SheetGrid
	if len(opts.SheetHints) > 0 {
		grids, err = fetcher.ReadSheets(path, opts.SheetHints)
	} else {
		grids, err = fetcher.ReadWorkbook(path)
	}
	if err != nil {
		return nil, err
	}

	for _, grid := range grids {
		facts := FactsFromGrid(grid.Name, grid.Rows)
		tbl := model.LogicalTable{
			DocumentID: doc.ID,
			Name:       grid.Name,
			Sheet:      grid.Name,
		}
		if err := i.writeTable(ctx, tbl, facts, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}
