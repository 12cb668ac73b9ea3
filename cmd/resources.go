package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/coverage-cli/internal/engine"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
)

var resourcesDensity float64

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List facilities with their effective range",
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
		return runResources(ctx, cmd.OutOrStdout(), eng, resourcesDensity)
	},
}

func runResources(ctx context.Context, w io.Writer, eng *engine.Engine, density float64) error {
	res, err := eng.ListResources(ctx, density)
	if err != nil {
		return err
	}
	return printJSON(w, res)
}

func init() {
	resourcesCmd.Flags().Float64Var(&resourcesDensity, "density", rangemodel.ReferenceDensity, "population density per km²")
	rootCmd.AddCommand(resourcesCmd)
}
