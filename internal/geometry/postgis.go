package geometry

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// Pool is the subset of pgxpool.Pool the PostGIS provider needs. pgxmock
// satisfies it in tests.
type Pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostGISProvider implements Provider by pushing geometry operations into a
// PostGIS database. Geometry crosses the wire as WKB; results are collected
// back with ST_AsBinary. Useful when the facility sets are large enough that
// engine-side spatial indexing beats in-process GEOS.
type PostGISProvider struct {
	pool Pool
}

// NewPostGIS returns a PostGIS-backed provider over the given pool.
func NewPostGIS(pool Pool) *PostGISProvider {
	return &PostGISProvider{pool: pool}
}

const (
	sqlBuffer = `SELECT ST_AsBinary(ST_Multi(ST_Buffer(ST_GeomFromWKB($1), $2)))`

	sqlPairIntersection = `SELECT ST_AsBinary(ST_Multi(ST_CollectionExtract(
		ST_Intersection(ST_GeomFromWKB($1), ST_GeomFromWKB($2)), 3)))`

	sqlDissolve = `SELECT ST_AsBinary(ST_Multi(ST_UnaryUnion(ST_GeomFromWKB($1))))`
)

func (p *PostGISProvider) Buffer(ctx context.Context, points []geom.Coord, radius float64) (*geom.MultiPolygon, error) {
	if len(points) == 0 {
		return nil, NewError(KindEmptyInput, "buffer", "no input points")
	}

	flat := make([]float64, 0, len(points)*2)
	for _, c := range points {
		flat = append(flat, c.X(), c.Y())
	}
	data, err := wkb.Marshal(geom.NewMultiPointFlat(geom.XY, flat), wkb.NDR)
	if err != nil {
		return nil, WrapError(KindBackend, "buffer", err)
	}

	return p.queryMultiPolygon(ctx, "buffer", sqlBuffer, data, radius)
}

func (p *PostGISProvider) Intersect(ctx context.Context, sets []*geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if len(sets) == 0 {
		return nil, NewError(KindEmptyInput, "intersect", "no input sets")
	}

	acc := sets[0]
	for _, set := range sets[1:] {
		if acc == nil || acc.NumPolygons() == 0 {
			return geom.NewMultiPolygon(geom.XY), nil
		}
		next, err := p.pairIntersection(ctx, acc, set)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

// Union merges the sets into one collection without dissolving; overlap
// removal is Dissolve's job.
func (p *PostGISProvider) Union(ctx context.Context, sets []*geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if len(sets) == 0 {
		return nil, NewError(KindEmptyInput, "union", "no input sets")
	}
	return mergeSets(sets), nil
}

func (p *PostGISProvider) Dissolve(ctx context.Context, polys *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if polys == nil || polys.NumPolygons() == 0 {
		return geom.NewMultiPolygon(geom.XY), nil
	}
	data, err := wkb.Marshal(polys, wkb.NDR)
	if err != nil {
		return nil, WrapError(KindBackend, "dissolve", err)
	}
	return p.queryMultiPolygon(ctx, "dissolve", sqlDissolve, data)
}

func (p *PostGISProvider) SplitMultipart(ctx context.Context, polys *geom.MultiPolygon) ([]*geom.Polygon, error) {
	return splitParts(polys), nil
}

func (p *PostGISProvider) Clip(ctx context.Context, polys *geom.MultiPolygon, boundary *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if boundary == nil || boundary.NumPolygons() == 0 {
		return nil, NewError(KindEmptyInput, "clip", "empty boundary")
	}
	if polys == nil || polys.NumPolygons() == 0 {
		return geom.NewMultiPolygon(geom.XY), nil
	}
	return p.pairIntersection(ctx, polys, boundary)
}

func (p *PostGISProvider) pairIntersection(ctx context.Context, a, b *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	left, err := wkb.Marshal(a, wkb.NDR)
	if err != nil {
		return nil, WrapError(KindBackend, "intersect", err)
	}
	right, err := wkb.Marshal(b, wkb.NDR)
	if err != nil {
		return nil, WrapError(KindBackend, "intersect", err)
	}
	return p.queryMultiPolygon(ctx, "intersect", sqlPairIntersection, left, right)
}

func (p *PostGISProvider) queryMultiPolygon(ctx context.Context, op, sql string, args ...any) (*geom.MultiPolygon, error) {
	var data []byte
	if err := p.pool.QueryRow(ctx, sql, args...).Scan(&data); err != nil {
		return nil, WrapError(KindBackend, op, eris.Wrap(err, "postgis: query"))
	}
	if len(data) == 0 {
		return geom.NewMultiPolygon(geom.XY), nil
	}

	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, WrapError(KindBackend, op, eris.Wrap(err, "postgis: decode WKB"))
	}
	mp, ok := g.(*geom.MultiPolygon)
	if !ok {
		return nil, NewError(KindUnsupported, op, "backend returned non-polygonal geometry")
	}
	return mp, nil
}
