package coverage

import (
	"context"
	"sync"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/waterdragen/coverage-cli/internal/geometry"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// rect is an axis-aligned rectangle: minX, minY, maxX, maxY.
type rect [4]float64

func (r rect) empty() bool {
	return r[2] <= r[0] || r[3] <= r[1]
}

func (r rect) area() float64 {
	if r.empty() {
		return 0
	}
	return (r[2] - r[0]) * (r[3] - r[1])
}

func (r rect) intersect(o rect) rect {
	return rect{
		max(r[0], o[0]), max(r[1], o[1]),
		min(r[2], o[2]), min(r[3], o[3]),
	}
}

// touches reports whether the rectangles overlap or share an edge.
func (r rect) touches(o rect) bool {
	return r[0] <= o[2] && o[0] <= r[2] && r[1] <= o[3] && o[1] <= r[3]
}

func (r rect) bbox(o rect) rect {
	return rect{
		min(r[0], o[0]), min(r[1], o[1]),
		max(r[2], o[2]), max(r[3], o[3]),
	}
}

func rectPolygon(r rect) *geom.Polygon {
	poly := geom.NewPolygon(geom.XY)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		r[0], r[1],
		r[2], r[1],
		r[2], r[3],
		r[0], r[3],
		r[0], r[1],
	})
	if err := poly.Push(ring); err != nil {
		panic(err)
	}
	return poly
}

func rectsToMP(rects []rect) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	for _, r := range rects {
		if r.empty() {
			continue
		}
		if err := mp.Push(rectPolygon(r)); err != nil {
			panic(err)
		}
	}
	return mp
}

// mpToRects recovers rectangles from polygon bounds. Exact because the fake
// provider only ever produces axis-aligned rectangles.
func mpToRects(mp *geom.MultiPolygon) []rect {
	if mp == nil {
		return nil
	}
	rects := make([]rect, 0, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		b := mp.Polygon(i).Bounds()
		rects = append(rects, rect{b.Min(0), b.Min(1), b.Max(0), b.Max(1)})
	}
	return rects
}

// fakeProvider implements geometry.Provider with exact set algebra over
// axis-aligned rectangles, so pipeline behavior is testable without a
// geometry engine. FailIntersectCalls marks Intersect invocations (1-based,
// in call order) that should fail; with a single worker, call order equals
// task order.
type fakeProvider struct {
	mu                 sync.Mutex
	intersectCalls     int
	FailIntersectCalls map[int]bool
	FailDissolve       bool
}

func (f *fakeProvider) Buffer(_ context.Context, points []geom.Coord, radius float64) (*geom.MultiPolygon, error) {
	if len(points) == 0 {
		return nil, geometry.NewError(geometry.KindEmptyInput, "buffer", "no input points")
	}
	rects := make([]rect, len(points))
	for i, c := range points {
		rects[i] = rect{c.X() - radius, c.Y() - radius, c.X() + radius, c.Y() + radius}
	}
	return rectsToMP(rects), nil
}

func (f *fakeProvider) Intersect(_ context.Context, sets []*geom.MultiPolygon) (*geom.MultiPolygon, error) {
	f.mu.Lock()
	f.intersectCalls++
	call := f.intersectCalls
	f.mu.Unlock()
	if f.FailIntersectCalls[call] {
		return nil, geometry.NewError(geometry.KindDegenerate, "intersect", "injected failure")
	}

	if len(sets) == 0 {
		return nil, geometry.NewError(geometry.KindEmptyInput, "intersect", "no input sets")
	}
	acc := mpToRects(sets[0])
	for _, set := range sets[1:] {
		var next []rect
		for _, a := range acc {
			for _, b := range mpToRects(set) {
				if clipped := a.intersect(b); !clipped.empty() {
					next = append(next, clipped)
				}
			}
		}
		acc = next
	}
	return rectsToMP(acc), nil
}

func (f *fakeProvider) Union(_ context.Context, sets []*geom.MultiPolygon) (*geom.MultiPolygon, error) {
	var all []rect
	for _, set := range sets {
		all = append(all, mpToRects(set)...)
	}
	return rectsToMP(all), nil
}

func (f *fakeProvider) Dissolve(_ context.Context, polys *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if f.FailDissolve {
		return nil, geometry.NewError(geometry.KindBackend, "dissolve", "injected failure")
	}
	rects := mpToRects(polys)

	// Merge touching rectangles into bounding boxes until stable. Exact for
	// fixtures whose contiguous groups union to a rectangle.
	for {
		merged := false
		for i := 0; i < len(rects) && !merged; i++ {
			for j := i + 1; j < len(rects) && !merged; j++ {
				if rects[i].touches(rects[j]) {
					rects[i] = rects[i].bbox(rects[j])
					rects = append(rects[:j], rects[j+1:]...)
					merged = true
				}
			}
		}
		if !merged {
			return rectsToMP(rects), nil
		}
	}
}

func (f *fakeProvider) SplitMultipart(_ context.Context, polys *geom.MultiPolygon) ([]*geom.Polygon, error) {
	var parts []*geom.Polygon
	for _, r := range mpToRects(polys) {
		if r.area() > 0 {
			parts = append(parts, rectPolygon(r))
		}
	}
	return parts, nil
}

func (f *fakeProvider) Clip(_ context.Context, polys *geom.MultiPolygon, boundary *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if boundary == nil || boundary.NumPolygons() == 0 {
		return nil, geometry.NewError(geometry.KindEmptyInput, "clip", "empty boundary")
	}
	var out []rect
	for _, a := range mpToRects(polys) {
		for _, b := range mpToRects(boundary) {
			if clipped := a.intersect(b); !clipped.empty() {
				out = append(out, clipped)
			}
		}
	}
	return rectsToMP(out), nil
}

var _ geometry.Provider = (*fakeProvider)(nil)
