package coverage

import (
	"context"
	"runtime"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/waterdragen/coverage-cli/internal/geometry"
	"github.com/waterdragen/coverage-cli/internal/model"
)

// scheduleStats tallies what happened to each enumerated combination.
type scheduleStats struct {
	Attempted    int
	SkippedEmpty int
	Failed       int
	Succeeded    int
	FailedKeys   []string
}

// scheduleIntersections enumerates every k-subset of categories in
// lexicographic order, skips subsets touching an excluded category, and fans
// the rest out across a bounded worker pool. It blocks until every
// dispatched task has reported, and returns results aligned to task-creation
// order regardless of completion order.
func scheduleIntersections(ctx context.Context, provider geometry.Provider, sets map[string]*model.CategoryBufferSet, categories []string, k, workers int) ([]model.IntersectionResult, scheduleStats) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var stats scheduleStats
	var tasks []model.CombinationTask
	for index, combo := range Combinations(categories, k) {
		stats.Attempted++

		task := model.CombinationTask{Index: index, Categories: combo}
		if excluded := emptyMembers(sets, combo); len(excluded) > 0 {
			stats.SkippedEmpty++
			zap.L().Info("coverage: skipping combination with empty categories",
				zap.Int("task", task.Index),
				zap.String("combination", task.Key()),
				zap.Strings("empty", excluded),
			)
			continue
		}
		tasks = append(tasks, task)
	}

	// One result slot per task, keyed by dispatch position: workers never
	// share an output location, so no locking is needed.
	results := make([]model.IntersectionResult, len(tasks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for slot, task := range tasks {
		g.Go(func() error {
			results[slot] = intersectTask(gCtx, provider, sets, task)
			// A failed task is isolated in its result; never abort siblings.
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Failed() {
			stats.Failed++
			stats.FailedKeys = append(stats.FailedKeys, r.Task.Key())
		} else {
			stats.Succeeded++
		}
	}
	return results, stats
}

// intersectTask computes the intersection of one combination's buffer sets.
// Geometry failures are captured in the result, not propagated.
func intersectTask(ctx context.Context, provider geometry.Provider, sets map[string]*model.CategoryBufferSet, task model.CombinationTask) model.IntersectionResult {
	inputs := make([]*geom.MultiPolygon, len(task.Categories))
	for i, category := range task.Categories {
		inputs[i] = sets[category].Geometry
	}

	intersection, err := provider.Intersect(ctx, inputs)
	if err != nil {
		zap.L().Warn("coverage: intersection failed",
			zap.Int("task", task.Index),
			zap.String("combination", task.Key()),
			zap.Error(err),
		)
		return model.IntersectionResult{Task: task, Err: err}
	}
	return model.IntersectionResult{Task: task, Geometry: intersection}
}

func emptyMembers(sets map[string]*model.CategoryBufferSet, combo []string) []string {
	var excluded []string
	for _, category := range combo {
		if sets[category].Empty() {
			excluded = append(excluded, category)
		}
	}
	return excluded
}
