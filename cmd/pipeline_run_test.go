package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safestreets/crossing-cli/internal/ingest"
)

func TestOpenSourceByExtension(t *testing.T) {
	src, err := openSource("extract.geojson")
	require.NoError(t, err)
	assert.IsType(t, &ingest.GeoJSONSource{}, src)

	src, err = openSource("extract.JSON")
	require.NoError(t, err)
	assert.IsType(t, &ingest.GeoJSONSource{}, src)

	src, err = openSource("roads.shp")
	require.NoError(t, err)
	assert.IsType(t, &ingest.ShapefileSource{}, src)

	_, err = openSource("extract.osm.pbf")
	assert.Error(t, err)
}

func TestApplyBBox(t *testing.T) {
	base := ingest.NewGeoJSONSource("extract.geojson")

	src, err := applyBBox(base, "0, 0, 100, 50")
	require.NoError(t, err)
	assert.IsType(t, &ingest.BBoxSource{}, src)

	_, err = applyBBox(base, "0,0,100")
	assert.Error(t, err)

	_, err = applyBBox(base, "0,0,abc,50")
	assert.Error(t, err)

	_, err = applyBBox(base, "100,0,0,50")
	assert.Error(t, err)
}

func TestCommandTreeWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["pipeline"])
	assert.True(t, names["migrate"])

	sub := map[string]bool{}
	for _, c := range pipelineCmd.Commands() {
		sub[c.Name()] = true
	}
	assert.True(t, sub["run"])
	assert.True(t, sub["status"])
	assert.True(t, sub["prune"])
}
