package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealfacts-cli/internal/kpi"
)

var approveTTLDays int

var approveCmd = &cobra.Command{
	Use:   "approve <metric-value-id>",
	Short: "Promote a computed metric value to a golden fact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		ttl := approveTTLDays
		if ttl == 0 {
			ttl = cfg.KPI.TTLDays
		}

		gf, err := kpi.NewEngine(s).Approve(ctx, args[0], ttl)
		if err != nil {
			return err
		}

		zap.L().Info("metric value approved",
			zap.String("golden_fact_id", gf.ID),
			zap.String("metric_value_id", args[0]),
			zap.Time("ttl_until", gf.TTLUntil),
		)
		cmd.Println(gf.ID)
		return nil
	},
}

func init() {
	approveCmd.Flags().IntVar(&approveTTLDays, "ttl-days", 0, "snapshot TTL in days")
	rootCmd.AddCommand(approveCmd)
}
