package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/coverage-cli/internal/engine"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
)

var (
	coverageDensity float64
	coverageOut     string
	coverageSummary bool
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Build merged coverage regions as GeoJSON",
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

		w := cmd.OutOrStdout()
		if coverageOut != "" {
			f, err := os.Create(coverageOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", coverageOut)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		return runCoverage(ctx, w, eng, coverageDensity, coverageSummary)
	},
}

// runCoverage writes the coverage FeatureCollection, or with summary set a
// per-category table of area and facility count.
func runCoverage(ctx context.Context, w io.Writer, eng *engine.Engine, density float64, summary bool) error {
	set, err := eng.Coverage(ctx, density)
	if err != nil {
		return err
	}
	if !summary {
		return printJSON(w, set.FeatureCollection(eng.Catalog()))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tFACILITIES\tAREA_KM2\tFALLBACK")
	for _, r := range set.Regions {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%t\n", r.Category, r.FacilityCount, r.AreaKM2, r.Fallback)
	}
	return eris.Wrap(tw.Flush(), "write summary")
}

func init() {
	coverageCmd.Flags().Float64Var(&coverageDensity, "density", rangemodel.ReferenceDensity, "population density per km²")
	coverageCmd.Flags().StringVar(&coverageOut, "out", "", "write GeoJSON to file instead of stdout")
	coverageCmd.Flags().BoolVar(&coverageSummary, "summary", false, "print a per-category table instead of GeoJSON")
	rootCmd.AddCommand(coverageCmd)
}
