package main

import (
	"github.com/spf13/cobra"
)

var extentCmd = &cobra.Command{
	Use:   "extent",
	Short: "Show the resolved analysis extent",
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
		ext, err := eng.Extent(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), ext)
	},
}

func init() {
	rootCmd.AddCommand(extentCmd)
}
