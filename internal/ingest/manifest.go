package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealfacts-cli/internal/model"
)

// Manifest describes a batch of deal source files to ingest together.
type Manifest struct {
	DealID      string         `yaml:"deal_id"`
	Concurrency int            `yaml:"concurrency"`
	Files       []ManifestFile `yaml:"files"`
}

// ManifestFile is one entry in a manifest. Kind is inferred from the
// file extension when omitted.
type ManifestFile struct {
	Path      string   `yaml:"path"`
	Kind      string   `yaml:"kind"`
	Sheets    []string `yaml:"sheets"`
	Delimiter string   `yaml:"delimiter"`
	Version   string   `yaml:"version"`
	Forms     []string `yaml:"forms"`
}

// LoadManifest reads and validates a YAML ingest manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse manifest %s", path)
	}
	if m.DealID == "" {
		return nil, eris.New("ingest: manifest missing deal_id")
	}
	if len(m.Files) == 0 {
		return nil, eris.New("ingest: manifest lists no files")
	}
	return &m, nil
}

// kind resolves the effective document kind for a manifest entry.
func (f ManifestFile) kind() (model.DocumentKind, error) {
	if f.Kind != "" {
		switch model.DocumentKind(f.Kind) {
		case model.DocKindSpreadsheet, model.DocKindCSV, model.DocKindText, model.DocKindXBRL:
			return model.DocumentKind(f.Kind), nil
		}
		return "", eris.Errorf("ingest: unknown kind %q for %s", f.Kind, f.Path)
	}
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".xlsx", ".xls":
		return model.DocKindSpreadsheet, nil
	case ".csv", ".tsv":
		return model.DocKindCSV, nil
	case ".txt", ".md":
		return model.DocKindText, nil
	case ".json":
		return model.DocKindXBRL, nil
	}
	return "", eris.Errorf("ingest: cannot infer kind for %s", f.Path)
}

// IngestManifest ingests every manifest file, a bounded number at a
// time. Paths are resolved relative to baseDir. The first failure
// cancels the remaining work.
func (i *Ingestor) IngestManifest(ctx context.Context, m *Manifest, baseDir string) ([]Result, error) {
	concurrency := m.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]Result, len(m.Files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for idx, file := range m.Files {
		g.Go(func() error {
			kind, err := file.kind()
			if err != nil {
				return err
			}
			path := file.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}

			var res *Result
			switch kind {
			case model.DocKindSpreadsheet:
				res, err = i.IngestExcel(ctx, m.DealID, path, ExcelOptions{SheetHints: file.Sheets, Version: file.Version})
			case model.DocKindCSV:
				var delim rune
				if file.Delimiter != "" {
					delim = rune(file.Delimiter[0])
				}
				res, err = i.IngestCSV(ctx, m.DealID, path, CSVOptions{Delimiter: delim, Version: file.Version})
			case model.DocKindText:
				res, err = i.IngestMemo(ctx, m.DealID, path, file.Version)
			case model.DocKindXBRL:
				res, err = i.IngestXBRLFile(ctx, m.DealID, path, XBRLOptions{Forms: file.Forms, Version: file.Version})
			}
			if err != nil {
				return err
			}
			results[idx] = *res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("manifest ingested",
		zap.String("deal_id", m.DealID),
		zap.Int("files", len(m.Files)),
	)
	return results, nil
}
