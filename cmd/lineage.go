package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/dealfacts-cli/internal/kpi"
)

var (
	lineageDealID  string
	lineageMetrics []string
	lineageJSON    bool
)

var lineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Show the source cells behind each computed metric",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		lineage, err := kpi.NewEngine(s).Lineage(ctx, lineageDealID, lineageMetrics...)
		if err != nil {
			return err
		}

		if lineageJSON {
			return json.NewEncoder(os.Stdout).Encode(lineage)
		}

		for name, facts := range lineage {
			cmd.Printf("%s\n", name)
			for _, f := range facts {
				period := "-"
				if f.Period != nil {
					period = *f.Period
				}
				value := "-"
				if f.Value != nil {
					value = strconv.FormatFloat(*f.Value, 'g', -1, 64)
				}
				cmd.Printf("  %-24s %-20s %-14s %10s  %s\n", f.TableName, f.SourceRef, f.Label, value, period)
			}
		}
		if len(lineage) == 0 {
			cmd.Println("no metric values for deal")
		}
		return nil
	},
}

func init() {
	lineageCmd.Flags().StringVar(&lineageDealID, "deal", "", "deal identifier (required)")
	_ = lineageCmd.MarkFlagRequired("deal")
	lineageCmd.Flags().StringSliceVar(&lineageMetrics, "metric", nil, "filter to metric names (repeatable)")
	lineageCmd.Flags().BoolVar(&lineageJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(lineageCmd)
}
