package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealfacts-cli/internal/kpi"
)

var (
	computeDealID       string
	computeRevenueLabel string
	computeGrossLabel   string
	computeEBITDALabel  string
	computePeriods      int
	computeApprove      bool
	computeTTLDays      int
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Derive KPIs from ingested facts",
	Long:  "Computes Revenue_LTM, YoY_Growth, Gross_Margin, and EBITDA_Margin for a deal, records lineage back to the source cells, and optionally approves golden snapshots.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		// Unset flags fall back to configured defaults.
		params := kpi.Params{
			DealID:            computeDealID,
			RevenueLabel:      computeRevenueLabel,
			GrossMarginLabel:  computeGrossLabel,
			EBITDAMarginLabel: computeEBITDALabel,
			PeriodsToSum:      computePeriods,
			Approve:           computeApprove,
			TTLDays:           computeTTLDays,
		}
		if params.RevenueLabel == "" {
			params.RevenueLabel = cfg.KPI.RevenueLabel
		}
		if params.GrossMarginLabel == "" {
			params.GrossMarginLabel = cfg.KPI.GrossMarginLabel
		}
		if params.EBITDAMarginLabel == "" {
			params.EBITDAMarginLabel = cfg.KPI.EBITDAMarginLabel
		}
		if params.PeriodsToSum == 0 {
			params.PeriodsToSum = cfg.KPI.PeriodsToSum
		}
		if params.TTLDays == 0 {
			params.TTLDays = cfg.KPI.TTLDays
		}

		engine := kpi.NewEngine(s)
		res, err := engine.Compute(ctx, params)
		if err != nil {
			if kpi.IsInputError(err) {
				zap.L().Warn("no usable revenue facts", zap.String("deal_id", computeDealID))
			}
			return err
		}

		zap.L().Info("kpi computation complete",
			zap.String("deal_id", computeDealID),
			zap.String("as_of", res.AsOf),
			zap.Bool("approved", computeApprove),
		)
		return json.NewEncoder(os.Stdout).Encode(res)
	},
}

func init() {
	computeCmd.Flags().StringVar(&computeDealID, "deal", "", "deal identifier (required)")
	_ = computeCmd.MarkFlagRequired("deal")
	computeCmd.Flags().StringVar(&computeRevenueLabel, "revenue-label", "", "label for revenue facts")
	computeCmd.Flags().StringVar(&computeGrossLabel, "gross-margin-label", "", "label for gross margin facts")
	computeCmd.Flags().StringVar(&computeEBITDALabel, "ebitda-margin-label", "", "label for EBITDA margin facts")
	computeCmd.Flags().IntVar(&computePeriods, "periods", 0, "trailing periods to sum")
	computeCmd.Flags().BoolVar(&computeApprove, "approve", true, "auto-approve computed values as golden facts")
	computeCmd.Flags().IntVar(&computeTTLDays, "ttl-days", 0, "golden fact TTL in days")
	rootCmd.AddCommand(computeCmd)
}
