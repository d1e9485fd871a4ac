// Package shapeio loads the study-area boundary and facility points from
// shapefiles into the geometry types the rest of the pipeline works with.
package shapeio

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadBoundary reads every polygon in the shapefile and collects them into
// one multipolygon describing the valid analysis extent.
func LoadBoundary(path string) (*geom.MultiPolygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapeio: open boundary %s", path)
	}
	defer func() { _ = reader.Close() }()

	boundary := geom.NewMultiPolygon(geom.XY)
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}
		if err := appendPolygonParts(boundary, poly); err != nil {
			skipped++
		}
	}
	if skipped > 0 {
		zap.L().Debug("shapeio: skipped non-polygon boundary records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if boundary.NumPolygons() == 0 {
		return nil, eris.Errorf("shapeio: no polygons in boundary %s", path)
	}
	return boundary, nil
}

// appendPolygonParts converts a shapefile polygon's parts into polygons on
// the target multipolygon. Shapefile ring nesting (holes) is not
// reconstructed; each part becomes its own single-ring polygon, which is
// sufficient for clip boundaries.
func appendPolygonParts(mp *geom.MultiPolygon, p *shp.Polygon) error {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return eris.New("shapeio: empty polygon record")
	}
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("shapeio: skipping malformed polygon ring",
				zap.Int32("part", i),
				zap.Error(err),
			)
			continue
		}
		if err := mp.Push(poly); err != nil {
			return eris.Wrap(err, "shapeio: push polygon")
		}
	}
	return nil
}
