package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/ingest"
)

var (
	importPath          string
	importCategory      string
	importCategoryField string
	importCapacity      int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import facilities from a shapefile (.shp or .zip)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importCategory == "" && importCategoryField == "" {
			return eris.New("one of --category or --category-field is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := ingest.NewImporter(st).ImportFile(ctx, importPath, ingest.Options{
			Category:      importCategory,
			CategoryField: importCategoryField,
			Capacity:      importCapacity,
		})
		if err != nil {
			return eris.Wrap(err, "import shapefile")
		}

		zap.L().Info("import complete",
			zap.String("path", importPath),
			zap.Int("imported", res.Imported),
			zap.Int("duplicates", res.Duplicates),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "path to .shp or zipped shapefile (required)")
	importCmd.Flags().StringVar(&importCategory, "category", "", "category for every record")
	importCmd.Flags().StringVar(&importCategoryField, "category-field", "", "attribute column holding the category")
	importCmd.Flags().IntVar(&importCapacity, "capacity", 0, "capacity for every record (default 50)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
