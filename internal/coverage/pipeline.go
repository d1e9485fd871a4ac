// Package coverage implements the multi-type coverage analysis: the
// geographic regions lying within a walking buffer of facilities from at
// least K distinct categories simultaneously.
package coverage

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/waterdragen/coverage-cli/internal/catalog"
	"github.com/waterdragen/coverage-cli/internal/geometry"
	"github.com/waterdragen/coverage-cli/internal/model"
	"github.com/waterdragen/coverage-cli/internal/scratch"
	"github.com/waterdragen/coverage-cli/internal/store"
)

// Params are the core inputs of a coverage run.
type Params struct {
	RadiusMeters float64
	Threshold    int // minimum number of distinct categories (K)
	Workers      int // worker pool size; <=0 means available parallelism
}

// Validate fails fast on input errors before any work is scheduled.
func (p Params) Validate(categories int) error {
	if categories == 0 {
		return eris.New("coverage: empty category set")
	}
	if p.RadiusMeters <= 0 {
		return eris.Errorf("coverage: buffer radius must be positive, got %v", p.RadiusMeters)
	}
	if p.Threshold < 1 || p.Threshold > categories {
		return eris.Errorf("coverage: threshold %d outside valid range [1, %d]", p.Threshold, categories)
	}
	return nil
}

// Result is the outcome of a completed run.
type Result struct {
	RunID       string
	Regions     []model.CoverageRegion
	Diagnostics model.Diagnostics
}

// Pipeline wires the buffer stage, combination scheduler, and aggregator
// around one geometry provider and run store.
type Pipeline struct {
	provider   geometry.Provider
	store      store.Store
	scratchDir string
}

// New creates a Pipeline.
func New(provider geometry.Provider, st store.Store, scratchDir string) *Pipeline {
	return &Pipeline{provider: provider, store: st, scratchDir: scratchDir}
}

// Run executes the full analysis: buffer each category, intersect every
// K-combination in parallel, aggregate into disjoint single-part regions
// clipped to the boundary. Scratch artifacts are removed on every exit path;
// the final regions and diagnostics survive in the store.
func (pl *Pipeline) Run(ctx context.Context, cat *catalog.Catalog, boundary *geom.MultiPolygon, params Params) (*Result, error) {
	categories := cat.Categories()
	if err := params.Validate(len(categories)); err != nil {
		return nil, err
	}
	if boundary == nil || boundary.NumPolygons() == 0 {
		return nil, eris.New("coverage: empty study-area boundary")
	}

	run, err := pl.store.CreateRun(ctx, model.RunParams{
		RadiusMeters: params.RadiusMeters,
		Threshold:    params.Threshold,
		Workers:      params.Workers,
		Categories:   len(categories),
	})
	if err != nil {
		return nil, eris.Wrap(err, "coverage: create run")
	}

	log := zap.L().With(zap.String("run", run.ID))
	log.Info("coverage: starting run",
		zap.Int("categories", len(categories)),
		zap.Float64("radius_m", params.RadiusMeters),
		zap.Int("threshold", params.Threshold),
	)

	sc, err := scratch.New(pl.scratchDir, run.ID, pl.store)
	if err != nil {
		pl.failRun(ctx, run.ID)
		return nil, err
	}
	// Cleanup on success, failure, and cancellation alike. A cleanup failure
	// is a warning, never a run failure.
	defer func() {
		if removeErr := sc.Remove(context.WithoutCancel(ctx)); removeErr != nil {
			log.Warn("coverage: scratch cleanup failed", zap.Error(removeErr))
		}
	}()

	sets, emptyCategories := bufferCategories(ctx, pl.provider, cat, params.RadiusMeters, sc)

	results, stats := scheduleIntersections(ctx, pl.provider, sets, categories, params.Threshold, params.Workers)
	if err := ctx.Err(); err != nil {
		pl.failRun(ctx, run.ID)
		return nil, eris.Wrap(err, "coverage: run cancelled")
	}

	regions, err := aggregate(ctx, pl.provider, results, boundary)
	if err != nil {
		pl.failRun(ctx, run.ID)
		return nil, err
	}

	diag := model.Diagnostics{
		BufferedCategories: len(categories) - len(emptyCategories),
		EmptyCategories:    emptyCategories,
		Attempted:          stats.Attempted,
		SkippedEmpty:       stats.SkippedEmpty,
		Failed:             stats.Failed,
		Succeeded:          stats.Succeeded,
		FailedCombinations: stats.FailedKeys,
		Regions:            len(regions),
	}
	for _, r := range regions {
		diag.TotalAreaSqM += r.Area()
	}

	if err := pl.store.SaveRegions(ctx, run.ID, regions); err != nil {
		pl.failRun(ctx, run.ID)
		return nil, eris.Wrap(err, "coverage: save regions")
	}
	if err := pl.store.SetRunDiagnostics(ctx, run.ID, &diag); err != nil {
		log.Warn("coverage: failed to persist diagnostics", zap.Error(err))
	}
	if err := pl.store.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete); err != nil {
		log.Warn("coverage: failed to mark run complete", zap.Error(err))
	}

	log.Info("coverage: run complete",
		zap.Int("regions", diag.Regions),
		zap.Float64("total_area_sqm", diag.TotalAreaSqM),
		zap.Int("attempted", diag.Attempted),
		zap.Int("skipped_empty", diag.SkippedEmpty),
		zap.Int("failed", diag.Failed),
		zap.Int("succeeded", diag.Succeeded),
	)

	return &Result{RunID: run.ID, Regions: regions, Diagnostics: diag}, nil
}

func (pl *Pipeline) failRun(ctx context.Context, runID string) {
	if err := pl.store.UpdateRunStatus(context.WithoutCancel(ctx), runID, model.RunStatusFailed); err != nil {
		zap.L().Warn("coverage: failed to mark run failed",
			zap.String("run", runID),
			zap.Error(err),
		)
	}
}
