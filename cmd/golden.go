package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/dealfacts-cli/internal/kpi"
)

var (
	goldenDealID  string
	goldenMetrics []string
	goldenJSON    bool
)

var goldenCmd = &cobra.Command{
	Use:   "golden",
	Short: "List approved, unexpired golden facts for a deal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		snaps, err := kpi.NewEngine(s).GoldenFacts(ctx, goldenDealID, goldenMetrics...)
		if err != nil {
			return err
		}

		if goldenJSON {
			return json.NewEncoder(os.Stdout).Encode(snaps)
		}

		p := message.NewPrinter(language.English)
		for _, gs := range snaps {
			unit := ""
			if gs.Unit != nil {
				unit = " " + *gs.Unit
			}
			p.Fprintf(cmd.OutOrStdout(), "%-16s %12.1f%s  as of %s  (until %s)\n",
				gs.MetricName, gs.Value, unit, gs.AsOf, gs.TTLUntil.Format("2006-01-02"))
		}
		if len(snaps) == 0 {
			cmd.Println("no approved, unexpired golden facts")
		}
		return nil
	},
}

func init() {
	goldenCmd.Flags().StringVar(&goldenDealID, "deal", "", "deal identifier (required)")
	_ = goldenCmd.MarkFlagRequired("deal")
	goldenCmd.Flags().StringSliceVar(&goldenMetrics, "metric", nil, "filter to metric names (repeatable)")
	goldenCmd.Flags().BoolVar(&goldenJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(goldenCmd)
}
