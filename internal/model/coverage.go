package model

import (
	"strings"

	"github.com/twpayne/go-geom"
)

// CategoryBufferSet holds the dissolved walking-buffer polygon for one
// facility category. Geometry is nil when the category produced no usable
// buffer (no points, or the geometry backend rejected the input); such
// categories are excluded from combination scheduling.
type CategoryBufferSet struct {
	Category string
	Geometry *geom.MultiPolygon
	Artifact string // scratch artifact path, empty if not materialized
}

// Empty reports whether this category contributes no area.
func (s *CategoryBufferSet) Empty() bool {
	return s == nil || s.Geometry == nil || s.Geometry.NumPolygons() == 0
}

// CombinationTask is one k-subset of categories to intersect. Index is
// assigned in enumeration order and is stable across runs, so artifacts and
// diagnostics keyed by it are reproducible.
type CombinationTask struct {
	Index      int
	Categories []string
}

// Key returns a human-readable identifier for logs and diagnostics.
func (t CombinationTask) Key() string {
	return strings.Join(t.Categories, "+")
}

// IntersectionResult is the outcome of one combination task: either the
// intersection geometry (possibly empty) or a failure reason. At most one
// result exists per task.
type IntersectionResult struct {
	Task     CombinationTask
	Geometry *geom.MultiPolygon
	Err      error
}

// Failed reports whether the task's intersection could not be computed.
func (r IntersectionResult) Failed() bool {
	return r.Err != nil
}

// Empty reports whether the task succeeded but covers no area.
func (r IntersectionResult) Empty() bool {
	return r.Err == nil && (r.Geometry == nil || r.Geometry.NumPolygons() == 0)
}

// CoverageRegion is one contiguous, single-part region covered by buffers of
// at least K distinct categories. The aggregator guarantees regions are
// pairwise disjoint.
type CoverageRegion struct {
	Index    int
	Geometry *geom.Polygon
}

// Area returns the planar area of the region in square meters.
func (r CoverageRegion) Area() float64 {
	if r.Geometry == nil {
		return 0
	}
	return r.Geometry.Area()
}
