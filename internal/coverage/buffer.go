package coverage

import (
	"context"
	"strings"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/waterdragen/coverage-cli/internal/catalog"
	"github.com/waterdragen/coverage-cli/internal/geometry"
	"github.com/waterdragen/coverage-cli/internal/model"
	"github.com/waterdragen/coverage-cli/internal/scratch"
)

// bufferCategories builds the dissolved walking buffer for every category,
// sequentially: the geometry backend is long-running and I/O-bound, so
// fanning out buffer calls buys little and risks backend-side write races.
// A category whose buffer cannot be built is recorded as empty and excluded
// from scheduling; it never fails the run. Returns the buffer sets keyed by
// category and the list of excluded categories.
func bufferCategories(ctx context.Context, provider geometry.Provider, cat *catalog.Catalog, radius float64, sc *scratch.Scratch) (map[string]*model.CategoryBufferSet, []string) {
	sets := make(map[string]*model.CategoryBufferSet)
	var empty []string

	for _, category := range cat.Categories() {
		points := cat.PointsByCategory(category)
		coords := make([]geom.Coord, len(points))
		for i, p := range points {
			coords[i] = geom.Coord{p.Easting, p.Northing}
		}

		buffered, err := provider.Buffer(ctx, coords, radius)
		if err != nil {
			zap.L().Warn("coverage: buffer failed, excluding category",
				zap.String("category", category),
				zap.Int("points", len(points)),
				zap.Error(err),
			)
			sets[category] = &model.CategoryBufferSet{Category: category}
			empty = append(empty, category)
			continue
		}

		set := &model.CategoryBufferSet{Category: category, Geometry: buffered}
		if set.Empty() {
			zap.L().Warn("coverage: empty buffer, excluding category",
				zap.String("category", category),
			)
			empty = append(empty, category)
			sets[category] = set
			continue
		}

		// Materialize the buffer so later stages can reference it by name;
		// keeps memory bounded when category counts grow. A write failure
		// only loses the materialization, not the in-memory set.
		path, err := sc.WriteArtifact(ctx, "buffer_"+sanitizeName(category), buffered)
		if err != nil {
			zap.L().Warn("coverage: failed to materialize buffer",
				zap.String("category", category),
				zap.Error(err),
			)
		} else {
			set.Artifact = path
		}

		sets[category] = set
		zap.L().Info("coverage: buffered category",
			zap.String("category", category),
			zap.Int("points", len(points)),
			zap.Int("polygons", buffered.NumPolygons()),
		)
	}

	return sets, empty
}

// sanitizeName makes a category label safe for artifact file names.
func sanitizeName(name string) string {
	return strings.NewReplacer(
		" ", "_",
		"&", "and",
		",", "",
		"/", "_",
	).Replace(name)
}
