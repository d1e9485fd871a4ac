package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/waterdragen/coverage-cli/internal/coverage"
	"github.com/waterdragen/coverage-cli/internal/model"
)

func testResult() *coverage.Result {
	return &coverage.Result{
		RunID: "run-abc",
		Diagnostics: model.Diagnostics{
			BufferedCategories: 7,
			EmptyCategories:    []string{"Cinema"},
			Attempted:          56,
			SkippedEmpty:       21,
			Failed:             1,
			Succeeded:          34,
			FailedCombinations: []string{"Clinic+Library+Park"},
			Regions:            12,
			TotalAreaSqM:       2_500_000,
		},
	}
}

func TestRenderSummary_Text(t *testing.T) {
	out, err := renderSummary("text", testResult())
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-abc")
	assert.Contains(t, out, "56 attempted, 21 skipped (empty), 1 failed, 34 succeeded")
	assert.Contains(t, out, "excluded categories: [Cinema]")
	assert.Contains(t, out, "failed combinations: [Clinic+Library+Park]")
	assert.Contains(t, out, "regions: 12 covering 2.50 sq km")
}

func TestRenderSummary_JSON(t *testing.T) {
	out, err := renderSummary("json", testResult())
	require.NoError(t, err)

	var decoded struct {
		RunID       string            `json:"run_id"`
		Diagnostics model.Diagnostics `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "run-abc", decoded.RunID)
	assert.Equal(t, 12, decoded.Diagnostics.Regions)
}

func TestRenderSummary_YAML(t *testing.T) {
	out, err := renderSummary("yaml", testResult())
	require.NoError(t, err)
	assert.Contains(t, out, "run_id: run-abc")
	assert.Contains(t, out, "regions: 12")
}

func TestRenderSummary_UnknownFormat(t *testing.T) {
	_, err := renderSummary("xml", testResult())
	assert.Error(t, err)
}

func TestWriteRegionsGeoJSON(t *testing.T) {
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
	})))
	regions := []model.CoverageRegion{{Index: 0, Geometry: poly}}

	path := filepath.Join(t.TempDir(), "regions.geojson")
	require.NoError(t, writeRegionsGeoJSON(path, regions))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "region-0", fc.Features[0].ID)
	assert.InDelta(t, 100.0, fc.Features[0].Properties["area_sqm"].(float64), 1e-9)
}
