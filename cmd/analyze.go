package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/coverage-cli/internal/engine"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
)

var (
	analyzeLat     float64
	analyzeLon     float64
	analyzeDensity float64
	analyzeLimit   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify a location as served or a service desert",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		eng, err := newEngine(st)
		if err != nil {
			return err
		}
		return runAnalyze(ctx, cmd.OutOrStdout(), eng, analyzeLat, analyzeLon, analyzeDensity, analyzeLimit)
	},
}

func runAnalyze(ctx context.Context, w io.Writer, eng *engine.Engine, lat, lon, density float64, limit int) error {
	res, err := eng.Analyze(ctx, lat, lon, density, limit)
	if err != nil {
		return err
	}
	return printJSON(w, res)
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzeLat, "lat", 0, "latitude (required)")
	analyzeCmd.Flags().Float64Var(&analyzeLon, "lon", 0, "longitude (required)")
	analyzeCmd.Flags().Float64Var(&analyzeDensity, "density", rangemodel.ReferenceDensity, "population density per km²")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "nearby facilities to list (default from config)")
	_ = analyzeCmd.MarkFlagRequired("lat")
	_ = analyzeCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(analyzeCmd)
}
