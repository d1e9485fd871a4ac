package coverage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterdragen/coverage-cli/internal/model"
)

func bufferSet(category string, rects ...rect) *model.CategoryBufferSet {
	set := &model.CategoryBufferSet{Category: category}
	if len(rects) > 0 {
		set.Geometry = rectsToMP(rects)
	}
	return set
}

// overlapping unit squares shifted along x; any pair or triple intersects.
func overlappingSets(categories []string) map[string]*model.CategoryBufferSet {
	sets := make(map[string]*model.CategoryBufferSet)
	for i, c := range categories {
		x := float64(i)
		sets[c] = bufferSet(c, rect{x * 0.1, 0, x*0.1 + 10, 10})
	}
	return sets
}

func TestScheduleIntersections_AllSucceed(t *testing.T) {
	categories := []string{"A", "B", "C", "D"}
	sets := overlappingSets(categories)

	results, stats := scheduleIntersections(context.Background(), &fakeProvider{}, sets, categories, 3, 4)

	require.Len(t, results, 4)
	assert.Equal(t, 4, stats.Attempted)
	assert.Equal(t, 0, stats.SkippedEmpty)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 4, stats.Succeeded)

	// Results are aligned to task-creation order regardless of completion
	// order.
	wantKeys := []string{"A+B+C", "A+B+D", "A+C+D", "B+C+D"}
	for i, r := range results {
		assert.Equal(t, wantKeys[i], r.Task.Key())
		assert.False(t, r.Failed())
		assert.False(t, r.Empty())
	}
}

func TestScheduleIntersections_SkipsEmptyCategories(t *testing.T) {
	categories := []string{"A", "B", "C", "D"}
	sets := overlappingSets(categories)
	sets["B"] = bufferSet("B") // excluded: no buffer

	results, stats := scheduleIntersections(context.Background(), &fakeProvider{}, sets, categories, 3, 2)

	// Only A+C+D avoids the excluded category.
	require.Len(t, results, 1)
	assert.Equal(t, "A+C+D", results[0].Task.Key())
	assert.Equal(t, 4, stats.Attempted)
	assert.Equal(t, 3, stats.SkippedEmpty)
	assert.Equal(t, 1, stats.Succeeded)
}

func TestScheduleIntersections_FaultIsolation(t *testing.T) {
	categories := []string{"A", "B", "C", "D", "E"}
	sets := overlappingSets(categories)

	// C(5,3) = 10 tasks; fail exactly one. A single worker makes call order
	// equal task order.
	provider := &fakeProvider{FailIntersectCalls: map[int]bool{4: true}}
	results, stats := scheduleIntersections(context.Background(), provider, sets, categories, 3, 1)

	require.Len(t, results, 10)
	assert.Equal(t, 10, stats.Attempted)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 9, stats.Succeeded)
	require.Len(t, stats.FailedKeys, 1)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			assert.Equal(t, stats.FailedKeys[0], r.Task.Key())
			assert.Error(t, r.Err)
		} else {
			assert.NotNil(t, r.Geometry)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestScheduleIntersections_StableTaskIndices(t *testing.T) {
	categories := []string{"A", "B", "C", "D"}
	sets := overlappingSets(categories)

	first, _ := scheduleIntersections(context.Background(), &fakeProvider{}, sets, categories, 2, 4)
	second, _ := scheduleIntersections(context.Background(), &fakeProvider{}, sets, categories, 2, 1)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Task.Index, second[i].Task.Index)
		assert.Equal(t, first[i].Task.Key(), second[i].Task.Key())
	}
}

func TestIntersectTask_EmptyIntersection(t *testing.T) {
	sets := map[string]*model.CategoryBufferSet{
		"A": bufferSet("A", rect{0, 0, 1, 1}),
		"B": bufferSet("B", rect{10, 10, 11, 11}),
	}
	task := model.CombinationTask{Index: 0, Categories: []string{"A", "B"}}

	result := intersectTask(context.Background(), &fakeProvider{}, sets, task)
	assert.False(t, result.Failed())
	assert.True(t, result.Empty())
}
