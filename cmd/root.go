package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/engine"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
	"github.com/sells-group/coverage-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "coverage-cli",
	Short: "Service coverage and density analysis",
	Long:  "Computes density-adjusted facility ranges, merges them into per-category coverage regions and classifies locations as served or service deserts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore opens and migrates the configured facility store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newEngine builds the coverage engine over st from config.
func newEngine(st engine.Source) (*engine.Engine, error) {
	var catalog *rangemodel.Catalog
	if cfg.Ranges.CatalogFile != "" {
		c, err := rangemodel.LoadCatalog(cfg.Ranges.CatalogFile)
		if err != nil {
			return nil, err
		}
		catalog = c
	}
	return engine.New(st, engine.Config{
		CircleVertices:   cfg.Engine.CircleVertices,
		TopN:             cfg.Engine.TopN,
		MaxTopN:          cfg.Engine.MaxTopN,
		UnionConcurrency: cfg.Engine.UnionConcurrency,
		CacheTTL:         cfg.Engine.CacheTTL(),
		BBoxPadding:      cfg.Engine.BBoxPadding,
		Catalog:          catalog,
	}), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
