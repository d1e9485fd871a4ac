package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waterdragen/coverage-cli/internal/catalog"
	"github.com/waterdragen/coverage-cli/internal/shapeio"
)

var facilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "Inspect the facility catalog",
}

var facilitiesCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count facilities by category or district",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, err := loadCatalog(cmd)
		if err != nil {
			return err
		}

		by, _ := cmd.Flags().GetString("by")
		var rows []catalog.CountRow
		switch by {
		case "category":
			rows = cat.CountByCategory()
		case "district":
			rows = cat.CountByDistrict()
		default:
			return fmt.Errorf("unknown grouping %q (want category or district)", by)
		}

		for _, row := range rows {
			label := row.Label
			if label == "" {
				label = "(none)"
			}
			fmt.Printf("%s: %d\n", label, row.Count)
		}
		return nil
	},
}

var facilitiesNearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the facility nearest to a grid location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, err := loadCatalog(cmd)
		if err != nil {
			return err
		}

		easting, _ := cmd.Flags().GetFloat64("easting")
		northing, _ := cmd.Flags().GetFloat64("northing")

		nearest, dist, err := cat.Nearest(easting, northing)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) at %.1f m\n", nearest.Name, nearest.Category, dist)
		return nil
	},
}

var facilitiesWithinCmd = &cobra.Command{
	Use:   "within",
	Short: "List facilities within a radius of a grid location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, err := loadCatalog(cmd)
		if err != nil {
			return err
		}

		easting, _ := cmd.Flags().GetFloat64("easting")
		northing, _ := cmd.Flags().GetFloat64("northing")
		radius, _ := cmd.Flags().GetFloat64("radius")
		if radius == 0 {
			radius = cfg.Coverage.RadiusMeters
		}

		matches := cat.WithinRadius(easting, northing, radius)
		fmt.Printf("%d facilities within %.0f m of (%.0f, %.0f):\n", len(matches), radius, easting, northing)
		for _, f := range matches {
			fmt.Printf("  %s in %s\n", f.Category, f.Name)
		}
		return nil
	},
}

func loadCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	path, _ := cmd.Flags().GetString("facilities")
	facilities, err := shapeio.LoadFacilities(path, cfg.Coverage.CategoryField)
	if err != nil {
		return nil, err
	}
	return catalog.New(facilities), nil
}

func init() {
	for _, sub := range []*cobra.Command{facilitiesCountCmd, facilitiesNearestCmd, facilitiesWithinCmd} {
		sub.Flags().String("facilities", "", "facility point shapefile (required)")
		_ = sub.MarkFlagRequired("facilities")
	}
	facilitiesCountCmd.Flags().String("by", "category", "group by: category or district")
	for _, sub := range []*cobra.Command{facilitiesNearestCmd, facilitiesWithinCmd} {
		sub.Flags().Float64("easting", 0, "grid easting in meters")
		sub.Flags().Float64("northing", 0, "grid northing in meters")
	}
	facilitiesWithinCmd.Flags().Float64("radius", 0, "radius in meters (default from config)")

	facilitiesCmd.AddCommand(facilitiesCountCmd, facilitiesNearestCmd, facilitiesWithinCmd)
	rootCmd.AddCommand(facilitiesCmd)
}
