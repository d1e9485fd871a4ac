package geometry

import (
	"context"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geos"
)

// bufferQuadSegs controls the arc approximation of point buffers.
const bufferQuadSegs = 8

// GEOSProvider implements Provider on top of libgeos. The default go-geos
// context serializes engine calls, so a single provider value is safe to
// share across intersection workers.
type GEOSProvider struct{}

// NewGEOS returns a GEOS-backed provider.
func NewGEOS() *GEOSProvider {
	return &GEOSProvider{}
}

// catchGeos converts a libgeos panic into a classified provider error.
// go-geos reports engine errors (degenerate input, topology exceptions) by
// panicking, which maps here onto the explicit error return the pipeline
// expects.
func catchGeos(op string, err *error) {
	if r := recover(); r != nil {
		*err = &Error{Kind: KindDegenerate, Op: op, Msg: fmt.Sprint(r)}
	}
}

func (p *GEOSProvider) Buffer(ctx context.Context, points []geom.Coord, radius float64) (mp *geom.MultiPolygon, err error) {
	defer catchGeos("buffer", &err)
	if len(points) == 0 {
		return nil, NewError(KindEmptyInput, "buffer", "no input points")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	geoms := make([]*geos.Geom, len(points))
	for i, c := range points {
		geoms[i] = geos.NewPoint([]float64{c.X(), c.Y()})
	}
	multi := geos.NewCollection(geos.TypeIDMultiPoint, geoms)
	defer multi.Destroy()

	buffered := multi.Buffer(radius, bufferQuadSegs)
	defer buffered.Destroy()
	return fromGeos(buffered)
}

func (p *GEOSProvider) Intersect(ctx context.Context, sets []*geom.MultiPolygon) (mp *geom.MultiPolygon, err error) {
	defer catchGeos("intersect", &err)
	if len(sets) == 0 {
		return nil, NewError(KindEmptyInput, "intersect", "no input sets")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc := toGeos(sets[0])
	for _, set := range sets[1:] {
		if acc.IsEmpty() {
			break
		}
		next := toGeos(set)
		clipped := acc.Intersection(next)
		acc.Destroy()
		next.Destroy()
		acc = clipped
	}
	defer acc.Destroy()
	return fromGeos(acc)
}

// Union merges the sets into one collection without dissolving; overlap
// removal is Dissolve's job.
func (p *GEOSProvider) Union(ctx context.Context, sets []*geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if len(sets) == 0 {
		return nil, NewError(KindEmptyInput, "union", "no input sets")
	}
	return mergeSets(sets), nil
}

func (p *GEOSProvider) Dissolve(ctx context.Context, polys *geom.MultiPolygon) (mp *geom.MultiPolygon, err error) {
	defer catchGeos("dissolve", &err)
	if polys == nil || polys.NumPolygons() == 0 {
		return geom.NewMultiPolygon(geom.XY), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts := make([]*geos.Geom, polys.NumPolygons())
	for i := 0; i < polys.NumPolygons(); i++ {
		parts[i] = toGeosPolygon(polys.Polygon(i))
	}
	dissolved := cascadedUnion(parts)
	defer dissolved.Destroy()
	return fromGeos(dissolved)
}

func (p *GEOSProvider) SplitMultipart(ctx context.Context, polys *geom.MultiPolygon) ([]*geom.Polygon, error) {
	return splitParts(polys), nil
}

func (p *GEOSProvider) Clip(ctx context.Context, polys *geom.MultiPolygon, boundary *geom.MultiPolygon) (mp *geom.MultiPolygon, err error) {
	defer catchGeos("clip", &err)
	if boundary == nil || boundary.NumPolygons() == 0 {
		return nil, NewError(KindEmptyInput, "clip", "empty boundary")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subject := toGeos(polys)
	defer subject.Destroy()
	clip := toGeos(boundary)
	defer clip.Destroy()

	clipped := subject.Intersection(clip)
	defer clipped.Destroy()
	return fromGeos(clipped)
}

// cascadedUnion unions geometries pairwise, halving the set each level.
// Consumes its inputs.
func cascadedUnion(geoms []*geos.Geom) *geos.Geom {
	if len(geoms) == 1 {
		return geoms[0]
	}
	mid := len(geoms) / 2
	left := cascadedUnion(geoms[:mid])
	right := cascadedUnion(geoms[mid:])
	result := left.Union(right)
	left.Destroy()
	right.Destroy()
	return result
}

// toGeos converts a go-geom multipolygon into a geos multipolygon.
func toGeos(mp *geom.MultiPolygon) *geos.Geom {
	if mp == nil || mp.NumPolygons() == 0 {
		return geos.NewCollection(geos.TypeIDMultiPolygon, nil)
	}
	parts := make([]*geos.Geom, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		parts[i] = toGeosPolygon(mp.Polygon(i))
	}
	return geos.NewCollection(geos.TypeIDMultiPolygon, parts)
}

func toGeosPolygon(p *geom.Polygon) *geos.Geom {
	rings := make([][][]float64, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make([][]float64, 0, len(coords)+1)
		for _, c := range coords {
			ring = append(ring, []float64{c.X(), c.Y()})
		}
		// GEOS requires explicitly closed rings.
		if len(ring) > 0 && (ring[0][0] != ring[len(ring)-1][0] || ring[0][1] != ring[len(ring)-1][1]) {
			ring = append(ring, []float64{ring[0][0], ring[0][1]})
		}
		rings[i] = ring
	}
	return geos.NewPolygon(rings)
}

// fromGeos collects the polygonal parts of a geos geometry into a go-geom
// multipolygon. Non-areal parts (points, lines from degenerate overlaps) are
// dropped since only area matters downstream.
func fromGeos(g *geos.Geom) (*geom.MultiPolygon, error) {
	out := geom.NewMultiPolygon(geom.XY)
	if g == nil || g.IsEmpty() {
		return out, nil
	}
	if err := collectPolygons(g, out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectPolygons(g *geos.Geom, out *geom.MultiPolygon) error {
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		poly, err := fromGeosPolygon(g)
		if err != nil {
			return err
		}
		if poly != nil {
			if err := out.Push(poly); err != nil {
				return WrapError(KindBackend, "convert", err)
			}
		}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		for i := 0; i < g.NumGeometries(); i++ {
			if err := collectPolygons(g.Geometry(i), out); err != nil {
				return err
			}
		}
	}
	return nil
}

func fromGeosPolygon(g *geos.Geom) (*geom.Polygon, error) {
	if g.IsEmpty() {
		return nil, nil
	}
	poly := geom.NewPolygon(geom.XY)

	pushRing := func(ring *geos.Geom) error {
		cs := ring.CoordSeq()
		flat := make([]float64, 0, cs.Size()*2)
		for i := 0; i < cs.Size(); i++ {
			flat = append(flat, cs.X(i), cs.Y(i))
		}
		return poly.Push(geom.NewLinearRingFlat(geom.XY, flat))
	}

	if err := pushRing(g.ExteriorRing()); err != nil {
		return nil, WrapError(KindBackend, "convert", err)
	}
	for r := 0; r < g.NumInteriorRings(); r++ {
		if err := pushRing(g.InteriorRing(r)); err != nil {
			return nil, WrapError(KindBackend, "convert", err)
		}
	}
	return poly, nil
}

// mergeSets concatenates polygon sets into one collection. Merge order does
// not affect downstream dissolve output.
func mergeSets(sets []*geom.MultiPolygon) *geom.MultiPolygon {
	out := geom.NewMultiPolygon(geom.XY)
	for _, set := range sets {
		if set == nil {
			continue
		}
		for i := 0; i < set.NumPolygons(); i++ {
			// Push only fails on layout mismatch, which cannot happen for
			// XY-to-XY copies.
			_ = out.Push(set.Polygon(i))
		}
	}
	return out
}
