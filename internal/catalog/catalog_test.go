package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterdragen/coverage-cli/internal/model"
)

func testPoints() []model.FacilityPoint {
	return []model.FacilityPoint{
		{ID: "1", Category: "Library", District: "Central", Easting: 100, Northing: 100},
		{ID: "2", Category: "Clinic", District: "Central", Easting: 200, Northing: 100},
		{ID: "3", Category: "Library", District: "North", Easting: 100, Northing: 500},
		{ID: "4", Category: "Park", District: "North", Easting: 300, Northing: 500},
		{ID: "5", Category: "Library", District: "South", Easting: 100, Northing: 900},
	}
}

func TestCategories_FirstAppearanceOrder(t *testing.T) {
	c := New(testPoints())
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, []string{"Library", "Clinic", "Park"}, c.Categories())
}

func TestCategories_ReturnsCopy(t *testing.T) {
	c := New(testPoints())
	first := c.Categories()
	first[0] = "mutated"
	assert.Equal(t, []string{"Library", "Clinic", "Park"}, c.Categories())
}

func TestPointsByCategory(t *testing.T) {
	c := New(testPoints())

	libraries := c.PointsByCategory("Library")
	require.Len(t, libraries, 3)
	assert.Equal(t, "1", libraries[0].ID)
	assert.Equal(t, "3", libraries[1].ID)
	assert.Equal(t, "5", libraries[2].ID)

	assert.Empty(t, c.PointsByCategory("Cinema"))
}

func TestCountByCategory(t *testing.T) {
	c := New(testPoints())
	assert.Equal(t, []CountRow{
		{Label: "Library", Count: 3},
		{Label: "Clinic", Count: 1},
		{Label: "Park", Count: 1},
	}, c.CountByCategory())
}

func TestCountByDistrict(t *testing.T) {
	c := New(testPoints())
	assert.Equal(t, []CountRow{
		{Label: "Central", Count: 2},
		{Label: "North", Count: 2},
		{Label: "South", Count: 1},
	}, c.CountByDistrict())
}

func TestNearest(t *testing.T) {
	c := New(testPoints())

	p, dist, err := c.Nearest(190, 110)
	require.NoError(t, err)
	assert.Equal(t, "2", p.ID)
	assert.InDelta(t, 14.142, dist, 0.001)
}

func TestNearest_EmptyCatalog(t *testing.T) {
	c := New(nil)
	_, _, err := c.Nearest(0, 0)
	assert.Error(t, err)
}

func TestWithinRadius(t *testing.T) {
	c := New(testPoints())

	near := c.WithinRadius(100, 100, 150)
	require.Len(t, near, 2)
	assert.Equal(t, "1", near[0].ID)
	assert.Equal(t, "2", near[1].ID)

	assert.Empty(t, c.WithinRadius(5000, 5000, 10))

	// The radius is exclusive.
	assert.Len(t, c.WithinRadius(0, 100, 100), 0)
	assert.Len(t, c.WithinRadius(0, 100, 101), 1)
}
