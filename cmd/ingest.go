package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealfacts-cli/internal/fetcher"
	"github.com/sells-group/dealfacts-cli/internal/ingest"
)

var (
	ingestDealID  string
	ingestVersion string
	ingestSheets  []string
	ingestDelim   string
	ingestForms   []string
	edgarCIK      int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest deal source files into atomic facts",
}

var ingestExcelCmd = &cobra.Command{
	Use:   "excel <file.xlsx>",
	Short: "Ingest an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngestor(cmd, func(ing *ingest.Ingestor) (*ingest.Result, error) {
			return ing.IngestExcel(cmd.Context(), ingestDealID, args[0], ingest.ExcelOptions{
				SheetHints: ingestSheets,
				Version:    ingestVersion,
			})
		})
	},
}

var ingestCSVCmd = &cobra.Command{
	Use:   "csv <file.csv>",
	Short: "Ingest a delimited export (ERP/BI/billing)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngestor(cmd, func(ing *ingest.Ingestor) (*ingest.Result, error) {
			var delim rune
			if ingestDelim != "" {
				delim = rune(ingestDelim[0])
			}
			return ing.IngestCSV(cmd.Context(), ingestDealID, args[0], ingest.CSVOptions{
				Delimiter: delim,
				Version:   ingestVersion,
			})
		})
	},
}

var ingestMemoCmd = &cobra.Command{
	Use:   "memo <file.txt|file.md>",
	Short: "Ingest a free-text memo into searchable chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngestor(cmd, func(ing *ingest.Ingestor) (*ingest.Result, error) {
			return ing.IngestMemo(cmd.Context(), ingestDealID, args[0], ingestVersion)
		})
	},
}

var ingestXBRLCmd = &cobra.Command{
	Use:   "xbrl <companyfacts.json>",
	Short: "Ingest an EDGAR company-facts JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngestor(cmd, func(ing *ingest.Ingestor) (*ingest.Result, error) {
			return ing.IngestXBRLFile(cmd.Context(), ingestDealID, args[0], ingest.XBRLOptions{
				Forms:   ingestForms,
				Version: ingestVersion,
			})
		})
	},
}

var ingestEDGARCmd = &cobra.Command{
	Use:   "edgar",
	Short: "Fetch company facts from SEC EDGAR by CIK and ingest them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if edgarCIK <= 0 {
			return eris.New("a positive --cik is required")
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.EDGAR.UserAgent,
			Timeout:    time.Duration(cfg.EDGAR.TimeoutSecs) * time.Second,
			MaxRetries: cfg.EDGAR.MaxRetries,
		})

		dir, err := os.MkdirTemp("", "dealfacts-edgar-*")
		if err != nil {
			return eris.Wrap(err, "create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		path := filepath.Join(dir, "companyfacts.json")
		if err := ingest.FetchEDGAR(ctx, f, edgarCIK, path); err != nil {
			return err
		}

		return withIngestor(cmd, func(ing *ingest.Ingestor) (*ingest.Result, error) {
			return ing.IngestXBRLFile(ctx, ingestDealID, path, ingest.XBRLOptions{
				Forms:   ingestForms,
				Version: ingestVersion,
			})
		})
	},
}

var ingestManifestCmd = &cobra.Command{
	Use:   "manifest <deal.yaml>",
	Short: "Ingest every file listed in a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		m, err := ingest.LoadManifest(args[0])
		if err != nil {
			return err
		}
		if m.Concurrency <= 0 {
			m.Concurrency = cfg.Ingest.Concurrency
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		ing := ingest.New(s, nil)
		results, err := ing.IngestManifest(ctx, m, filepath.Dir(args[0]))
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(results)
	},
}

// withIngestor opens the store, runs one ingestion, and prints the
// result as JSON.
func withIngestor(cmd *cobra.Command, fn func(*ingest.Ingestor) (*ingest.Result, error)) error {
	if ingestDealID == "" {
		return eris.New("--deal is required")
	}
	s, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	res, err := fn(ingest.New(s, nil))
	if err != nil {
		return err
	}

	zap.L().Info("ingestion complete",
		zap.String("deal_id", ingestDealID),
		zap.Bool("deduped", res.Deduped),
		zap.Int("facts_written", res.FactsWritten),
	)
	return json.NewEncoder(os.Stdout).Encode(res)
}

func init() {
	ingestCmd.PersistentFlags().StringVar(&ingestDealID, "deal", "", "deal identifier (required except for manifest)")
	ingestCmd.PersistentFlags().StringVar(&ingestVersion, "version", "", "document version tag")

	ingestExcelCmd.Flags().StringSliceVar(&ingestSheets, "sheet", nil, "restrict to named sheets (repeatable)")
	ingestCSVCmd.Flags().StringVar(&ingestDelim, "delimiter", "", "field delimiter (default comma)")
	ingestXBRLCmd.Flags().StringSliceVar(&ingestForms, "form", nil, "restrict to filing forms, e.g. 10-K (repeatable)")
	ingestEDGARCmd.Flags().StringSliceVar(&ingestForms, "form", nil, "restrict to filing forms, e.g. 10-K (repeatable)")
	ingestEDGARCmd.Flags().IntVar(&edgarCIK, "cik", 0, "SEC CIK number (required)")

	ingestCmd.AddCommand(ingestExcelCmd, ingestCSVCmd, ingestMemoCmd, ingestXBRLCmd, ingestEDGARCmd, ingestManifestCmd)
	rootCmd.AddCommand(ingestCmd)
}
