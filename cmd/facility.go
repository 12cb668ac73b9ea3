package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/facility"
)

var (
	facilityName     string
	facilityCategory string
	facilityCapacity int
	facilityLat      float64
	facilityLon      float64
)

var facilityCmd = &cobra.Command{
	Use:   "facility",
	Short: "Add or delete facilities",
}

var facilityAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a point facility",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cat, err := facility.ParseCategory(facilityCategory)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f, err := st.AddFacility(ctx, facility.Facility{
			Name:     facilityName,
			Category: cat,
			Capacity: facilityCapacity,
			Geometry: facility.NewPoint(facilityLat, facilityLon),
		})
		if err != nil {
			return eris.Wrap(err, "add facility")
		}
		zap.L().Info("facility added", zap.String("id", f.ID), zap.String("category", f.Category.String()))
		return printJSON(cmd.OutOrStdout(), f)
	},
}

var facilityDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a facility by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteFacility(ctx, args[0]); err != nil {
			return eris.Wrap(err, "delete facility")
		}
		zap.L().Info("facility deleted", zap.String("id", args[0]))
		return nil
	},
}

func init() {
	facilityAddCmd.Flags().StringVar(&facilityName, "name", "", "facility name")
	facilityAddCmd.Flags().StringVar(&facilityCategory, "category", "", "facility category (required)")
	facilityAddCmd.Flags().IntVar(&facilityCapacity, "capacity", facility.DefaultCapacity, "capacity 1-100")
	facilityAddCmd.Flags().Float64Var(&facilityLat, "lat", 0, "latitude (required)")
	facilityAddCmd.Flags().Float64Var(&facilityLon, "lon", 0, "longitude (required)")
	_ = facilityAddCmd.MarkFlagRequired("category")
	_ = facilityAddCmd.MarkFlagRequired("lat")
	_ = facilityAddCmd.MarkFlagRequired("lon")
	facilityCmd.AddCommand(facilityAddCmd, facilityDeleteCmd)
	rootCmd.AddCommand(facilityCmd)
}
