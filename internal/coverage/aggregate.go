package coverage

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/waterdragen/coverage-cli/internal/geometry"
	"github.com/waterdragen/coverage-cli/internal/model"
)

// aggregate folds the successful per-combination intersections into the
// final disjoint region set: merge, clip to the study-area boundary,
// dissolve into maximal contiguous shapes, then split multi-part results
// into single contiguous parts. A provider failure here is fatal; there is
// no safe partial output, so the error names the contributing combinations
// for a retry that excludes the suspect one.
func aggregate(ctx context.Context, provider geometry.Provider, results []model.IntersectionResult, boundary *geom.MultiPolygon) ([]model.CoverageRegion, error) {
	var (
		inputs       []*geom.MultiPolygon
		contributors []string
	)
	for _, r := range results {
		if r.Failed() || r.Empty() {
			continue
		}
		inputs = append(inputs, r.Geometry)
		contributors = append(contributors, r.Task.Key())
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	withContributors := func(err error, op string) error {
		return eris.Wrapf(err, "aggregate: %s failed (contributing combinations: %s)",
			op, strings.Join(contributors, ", "))
	}

	merged, err := provider.Union(ctx, inputs)
	if err != nil {
		return nil, withContributors(err, "merge")
	}

	clipped, err := provider.Clip(ctx, merged, boundary)
	if err != nil {
		return nil, withContributors(err, "clip")
	}

	dissolved, err := provider.Dissolve(ctx, clipped)
	if err != nil {
		return nil, withContributors(err, "dissolve")
	}

	parts, err := provider.SplitMultipart(ctx, dissolved)
	if err != nil {
		return nil, withContributors(err, "split")
	}

	regions := make([]model.CoverageRegion, len(parts))
	for i, part := range parts {
		regions[i] = model.CoverageRegion{Index: i, Geometry: part}
	}

	zap.L().Info("coverage: aggregated regions",
		zap.Int("contributions", len(inputs)),
		zap.Int("regions", len(regions)),
	)
	return regions, nil
}
