package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/facility"
)

var boundaryFile string

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Manage the project boundary",
}

var boundarySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save a GeoJSON polygon as the project boundary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		g, err := readBoundaryFile(boundaryFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		saved, err := st.SaveBoundary(ctx, facility.Boundary{Geometry: g})
		if err != nil {
			return eris.Wrap(err, "save boundary")
		}
		zap.L().Info("boundary saved", zap.String("file", boundaryFile))
		return printJSON(cmd.OutOrStdout(), saved)
	},
}

var boundaryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the project boundary and fall back to the auto extent",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.ResetBoundary(ctx); err != nil {
			return eris.Wrap(err, "reset boundary")
		}
		zap.L().Info("boundary reset")
		return nil
	},
}

var boundaryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved project boundary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := st.GetBoundary(ctx)
		if err != nil {
			return eris.Wrap(err, "get boundary")
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

// readBoundaryFile accepts a GeoJSON Polygon geometry or a Feature wrapping one.
func readBoundaryFile(path string) (facility.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return facility.Geometry{}, eris.Wrapf(err, "read %s", path)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return facility.Geometry{}, eris.Wrapf(err, "parse %s", path)
	}

	if head.Type == "Feature" {
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return facility.Geometry{}, eris.Wrapf(err, "parse feature %s", path)
		}
		return facility.FromGeom(f.Geometry)
	}

	var g facility.Geometry
	if err := json.Unmarshal(data, &g); err != nil {
		return facility.Geometry{}, err
	}
	return g, nil
}

func init() {
	boundarySetCmd.Flags().StringVar(&boundaryFile, "file", "", "GeoJSON file with the boundary polygon (required)")
	_ = boundarySetCmd.MarkFlagRequired("file")
	boundaryCmd.AddCommand(boundarySetCmd, boundaryResetCmd, boundaryShowCmd)
	rootCmd.AddCommand(boundaryCmd)
}
