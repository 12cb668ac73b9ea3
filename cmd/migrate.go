package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the facility store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		v, err := st.Version(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("store migrated",
			zap.String("driver", cfg.Store.Driver),
			zap.Int64("version", v),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
