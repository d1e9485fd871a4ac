package shapeio

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/waterdragen/coverage-cli/internal/model"
)

// Attribute names looked up (case-insensitively) in facility shapefiles.
const (
	FieldID       = "gmid"
	FieldCategory = "dataset"
	FieldName     = "facname"
	FieldAddress  = "address"
	FieldDistrict = "district"
)

// LoadFacilities reads a point shapefile into facility records. The point
// geometry supplies easting/northing; categoryField names the attribute
// holding the facility category (defaults to "dataset"). Records without a
// category or point geometry are skipped.
func LoadFacilities(path, categoryField string) ([]model.FacilityPoint, error) {
	if categoryField == "" {
		categoryField = FieldCategory
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapeio: open facilities %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map. DBF field names are fixed-width and
	// NUL-padded.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[strings.ToLower(name)]
		if !ok {
			return ""
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		val = strings.TrimSpace(val)
		// Facility exports mark unknown values as "N.A.".
		if val == "N.A." {
			return ""
		}
		return val
	}

	var (
		facilities []model.FacilityPoint
		skipped    int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		if !ok || point == nil {
			skipped++
			continue
		}

		category := attr(categoryField)
		if category == "" {
			skipped++
			continue
		}

		facilities = append(facilities, model.FacilityPoint{
			ID:       attr(FieldID),
			Category: category,
			Easting:  point.X,
			Northing: point.Y,
			Name:     attr(FieldName),
			Address:  attr(FieldAddress),
			District: attr(FieldDistrict),
		})
	}

	if skipped > 0 {
		zap.L().Debug("shapeio: skipped facility records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(facilities) == 0 {
		return nil, eris.Errorf("shapeio: no facilities in %s", path)
	}
	return facilities, nil
}
