// Package ingest turns deal source files into documents, logical
// tables, and atomic facts. Each file is ingested once per content
// hash; re-running an ingest over unchanged inputs is a no-op.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealfacts-cli/internal/model"
	"github.com/sells-group/dealfacts-cli/internal/store"
	"github.com/sells-group/dealfacts-cli/internal/taxonomy"
)

// Ingestor writes source files into the fact store.
type Ingestor struct {
	store    store.Store
	resolver taxonomy.Resolver
}

// New creates an Ingestor. A nil resolver falls back to the built-in
// static concept table.
func New(s store.Store, r taxonomy.Resolver) *Ingestor {
	if r == nil {
		r = taxonomy.NewStaticResolver()
	}
	return &Ingestor{store: s, resolver: r}
}

// Result summarizes one file ingestion.
type Result struct {
	Document       *model.Document `json:"document"`
	Deduped        bool            `json:"deduped"`
	Tables         int             `json:"tables"`
	FactsSubmitted int             `json:"facts_submitted"`
	FactsWritten   int             `json:"facts_written"`
	Chunks         int             `json:"chunks"`
}

// hashFile returns the hex SHA-256 of the file contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrapf(err, "ingest: hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// documentFor finds or creates the document for (deal, hash). The
// second return reports whether the document already existed.
func (i *Ingestor) documentFor(ctx context.Context, doc model.Document) (*model.Document, bool, error) {
	existing, err := i.store.FindDocumentByHash(ctx, doc.DealID, doc.ContentHash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		zap.L().Info("document already ingested, skipping",
			zap.String("deal_id", doc.DealID),
			zap.String("name", doc.Name),
			zap.String("content_hash", doc.ContentHash),
		)
		return existing, true, nil
	}

	created, err := i.store.CreateDocument(ctx, doc)
	if err != nil {
		return nil, false, err
	}
	return created, false, nil
}

// writeTable persists one logical table and its candidate facts.
// Tables with no candidates are not created.
func (i *Ingestor) writeTable(ctx context.Context, tbl model.LogicalTable, facts []model.CandidateFact, res *Result) error {
	if len(facts) == 0 {
		return nil
	}
	created, err := i.store.CreateTable(ctx, tbl)
	if err != nil {
		return err
	}
	written, err := i.store.InsertFacts(ctx, created.ID, facts)
	if err != nil {
		return err
	}
	res.Tables++
	res.FactsSubmitted += len(facts)
	res.FactsWritten += written
	zap.L().Info("table ingested",
		zap.String("table", tbl.Name),
		zap.Int("submitted", len(facts)),
		zap.Int("written", written),
	)
	return nil
}
