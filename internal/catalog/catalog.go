// Package catalog holds the immutable set of facility points for a run,
// grouped by category, and answers simple planar queries over them.
package catalog

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/waterdragen/coverage-cli/internal/model"
)

// Catalog owns the facility points loaded for one run. It is built once and
// read-only thereafter; downstream stages reference points by category index.
type Catalog struct {
	points     []model.FacilityPoint
	byCategory map[string][]int
	categories []string
}

// New builds a catalog from loaded facility points. Category order is the
// order of first appearance in the input, which keeps combination enumeration
// stable across runs over the same source.
func New(points []model.FacilityPoint) *Catalog {
	c := &Catalog{
		points:     points,
		byCategory: make(map[string][]int),
	}
	for i, p := range points {
		if _, seen := c.byCategory[p.Category]; !seen {
			c.categories = append(c.categories, p.Category)
		}
		c.byCategory[p.Category] = append(c.byCategory[p.Category], i)
	}
	return c
}

// Len returns the total number of facility points.
func (c *Catalog) Len() int { return len(c.points) }

// Categories returns the category labels in first-appearance order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// PointsByCategory returns the facility points of one category.
func (c *Catalog) PointsByCategory(category string) []model.FacilityPoint {
	idx := c.byCategory[category]
	out := make([]model.FacilityPoint, len(idx))
	for i, j := range idx {
		out[i] = c.points[j]
	}
	return out
}

// CountRow is one label with its facility count.
type CountRow struct {
	Label string
	Count int
}

// CountByCategory returns facility counts per category, most frequent first.
func (c *Catalog) CountByCategory() []CountRow {
	counts := make(map[string]int)
	for _, p := range c.points {
		counts[p.Category]++
	}
	return sortCounts(counts)
}

// CountByDistrict returns facility counts per district, most frequent first.
// Points without a district are grouped under the empty label.
func (c *Catalog) CountByDistrict() []CountRow {
	counts := make(map[string]int)
	for _, p := range c.points {
		counts[p.District]++
	}
	return sortCounts(counts)
}

func sortCounts(counts map[string]int) []CountRow {
	rows := make([]CountRow, 0, len(counts))
	for label, n := range counts {
		rows = append(rows, CountRow{Label: label, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Label < rows[j].Label
	})
	return rows
}

// Nearest returns the facility closest to the given grid location and its
// planar distance in meters.
func (c *Catalog) Nearest(easting, northing float64) (model.FacilityPoint, float64, error) {
	if len(c.points) == 0 {
		return model.FacilityPoint{}, 0, eris.New("catalog: no facilities loaded")
	}
	best := 0
	bestDist := math.Inf(1)
	for i, p := range c.points {
		d := math.Hypot(p.Easting-easting, p.Northing-northing)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return c.points[best], bestDist, nil
}

// WithinRadius returns all facilities within radius meters of the given grid
// location, in catalog order.
func (c *Catalog) WithinRadius(easting, northing, radius float64) []model.FacilityPoint {
	var out []model.FacilityPoint
	for _, p := range c.points {
		if math.Hypot(p.Easting-easting, p.Northing-northing) < radius {
			out = append(out, p)
		}
	}
	return out
}
