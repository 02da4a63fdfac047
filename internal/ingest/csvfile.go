package ingest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealfacts-cli/internal/fetcher"
	"github.com/sells-group/dealfacts-cli/internal/model"
)

// CSVOptions configures a delimited-file ingestion pass.
type CSVOptions struct {
	Delimiter rune
	Version   string
	// TableName overrides the default table name (the file base name).
	TableName string
}

// IngestCSV ingests a delimited export as one document with a single
// logical table.
func (i *Ingestor) IngestCSV(ctx context.Context, dealID, path string, opts CSVOptions) (*Result, error) {
	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	doc, deduped, err := i.documentFor(ctx, model.Document{
		DealID:      dealID,
		Name:        filepath.Base(path),
		Kind:        model.DocKindCSV,
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

	rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{Delimiter: opts.Delimiter, TrimSpace: true})
	if err != nil {
		return nil, err
	}

	name := opts.TableName
	if name == "" {
		name = filepath.Base(path)
	}
	facts := FactsFromGrid(name, rows)
	tbl := model.LogicalTable{DocumentID: doc.ID, Name: name}
	if err := i.writeTable(ctx, tbl, facts, res); err != nil {
		return nil, err
	}
	return res, nil
}
