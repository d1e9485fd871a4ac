package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/waterdragen/coverage-cli/internal/catalog"
	"github.com/waterdragen/coverage-cli/internal/coverage"
	"github.com/waterdragen/coverage-cli/internal/model"
	"github.com/waterdragen/coverage-cli/internal/shapeio"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Run the multi-type coverage analysis",
	Long: `Buffers every facility category to walking distance, intersects the buffers
of every K-category combination in parallel, and aggregates the results into
disjoint single-part regions clipped to the study-area boundary.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		facilitiesPath, _ := cmd.Flags().GetString("facilities")
		boundaryPath, _ := cmd.Flags().GetString("boundary")
		radius, _ := cmd.Flags().GetFloat64("radius")
		threshold, _ := cmd.Flags().GetInt("threshold")
		workers, _ := cmd.Flags().GetInt("workers")
		backend, _ := cmd.Flags().GetString("provider")
		outPath, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("output")

		if radius == 0 {
			radius = cfg.Coverage.RadiusMeters
		}
		if threshold == 0 {
			threshold = cfg.Coverage.Threshold
		}
		if workers == 0 {
			workers = cfg.Coverage.Workers
		}

		facilities, err := shapeio.LoadFacilities(facilitiesPath, cfg.Coverage.CategoryField)
		if err != nil {
			return err
		}
		boundary, err := shapeio.LoadBoundary(boundaryPath)
		if err != nil {
			return err
		}
		cat := catalog.New(facilities)

		zap.L().Info("coverage: inputs loaded",
			zap.Int("facilities", cat.Len()),
			zap.Int("categories", len(cat.Categories())),
		)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		provider, closeProvider, err := buildProvider(ctx, backend)
		if err != nil {
			return err
		}
		defer closeProvider()

		pipeline := coverage.New(provider, st, cfg.Coverage.ScratchDir)
		result, err := pipeline.Run(ctx, cat, boundary, coverage.Params{
			RadiusMeters: radius,
			Threshold:    threshold,
			Workers:      workers,
		})
		if err != nil {
			return eris.Wrap(err, "coverage")
		}

		if outPath != "" {
			if err := writeRegionsGeoJSON(outPath, result.Regions); err != nil {
				return err
			}
			fmt.Printf("Wrote %d regions to %s\n", len(result.Regions), outPath)
		}

		summary, err := renderSummary(format, result)
		if err != nil {
			return err
		}
		fmt.Print(summary)
		return nil
	},
}

func init() {
	coverageCmd.Flags().String("facilities", "", "facility point shapefile (required)")
	coverageCmd.Flags().String("boundary", "", "study-area boundary shapefile (required)")
	coverageCmd.Flags().Float64("radius", 0, "buffer radius in meters (default from config)")
	coverageCmd.Flags().IntP("threshold", "k", 0, "minimum distinct categories (default from config)")
	coverageCmd.Flags().Int("workers", 0, "worker pool size (default: available parallelism)")
	coverageCmd.Flags().String("provider", "", "geometry backend: geos or postgis (default from config)")
	coverageCmd.Flags().String("out", "", "write final regions as GeoJSON to this path")
	coverageCmd.Flags().String("output", "text", "summary format: text, json, or yaml")
	_ = coverageCmd.MarkFlagRequired("facilities")
	_ = coverageCmd.MarkFlagRequired("boundary")
	rootCmd.AddCommand(coverageCmd)
}

// writeRegionsGeoJSON writes the final region set as a GeoJSON
// FeatureCollection with per-region area properties.
func writeRegionsGeoJSON(path string, regions []model.CoverageRegion) error {
	fc := &geojson.FeatureCollection{}
	for _, r := range regions {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       fmt.Sprintf("region-%d", r.Index),
			Geometry: r.Geometry,
			Properties: map[string]any{
				"index":    r.Index,
				"area_sqm": r.Area(),
			},
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "coverage: encode GeoJSON")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "coverage: write %s", path)
	}
	return nil
}

// renderSummary formats the run diagnostics for the terminal.
func renderSummary(format string, result *coverage.Result) (string, error) {
	type summary struct {
		RunID       string            `json:"run_id" yaml:"run_id"`
		Diagnostics model.Diagnostics `json:"diagnostics" yaml:"diagnostics"`
	}
	s := summary{RunID: result.RunID, Diagnostics: result.Diagnostics}

	switch format {
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return "", eris.Wrap(err, "coverage: encode summary")
		}
		return string(data) + "\n", nil

	case "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return "", eris.Wrap(err, "coverage: encode summary")
		}
		return string(data), nil

	case "text", "":
		d := result.Diagnostics
		out := fmt.Sprintf("Run %s\n", result.RunID)
		out += fmt.Sprintf("  combinations: %d attempted, %d skipped (empty), %d failed, %d succeeded\n",
			d.Attempted, d.SkippedEmpty, d.Failed, d.Succeeded)
		if len(d.EmptyCategories) > 0 {
			out += fmt.Sprintf("  excluded categories: %v\n", d.EmptyCategories)
		}
		if len(d.FailedCombinations) > 0 {
			out += fmt.Sprintf("  failed combinations: %v\n", d.FailedCombinations)
		}
		out += fmt.Sprintf("  regions: %d covering %.2f sq km\n", d.Regions, d.TotalAreaSqM/1e6)
		return out, nil

	default:
		return "", eris.Errorf("coverage: unknown output format %q", format)
	}
}
