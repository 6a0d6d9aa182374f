package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/safestreets/crossing-cli/internal/model"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"@id": "way/101", "highway": "primary", "name": "Main St", "lanes": 4},
      "geometry": {"type": "LineString", "coordinates": [[0, 0], [100, 0]]}
    },
    {
      "type": "Feature",
      "properties": {"@id": "node/201", "highway": "crossing", "crossing": "zebra"},
      "geometry": {"type": "Point", "coordinates": [50, 0]}
    },
    {
      "type": "Feature",
      "properties": {"name": "no geometry support"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}
    },
    {
      "type": "Feature",
      "properties": {"highway": "residential"},
      "geometry": {"type": "LineString", "coordinates": [[0, 10], [50, 10]]}
    }
  ]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))
	return path
}

func TestGeoJSONSource_Features(t *testing.T) {
	src := NewGeoJSONSource(writeSample(t))
	features, err := src.Features(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 3) // polygon skipped

	assert.Equal(t, int64(101), features[0].ID)
	assert.Equal(t, model.KindLine, features[0].Kind)
	assert.Equal(t, "Main St", features[0].Tags.Value("name"))
	assert.Equal(t, "4", features[0].Tags.Value("lanes"))

	assert.Equal(t, int64(201), features[1].ID)
	assert.Equal(t, model.KindPoint, features[1].Kind)
	assert.Equal(t, "zebra", features[1].Tags.Value("crossing"))
	pt, ok := features[1].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, []float64{50, 0}, pt.FlatCoords())

	// No id property: ordinal fallback (index in the collection).
	assert.Equal(t, int64(3), features[2].ID)
}

func TestGeoJSONSource_MissingFile(t *testing.T) {
	src := NewGeoJSONSource(filepath.Join(t.TempDir(), "nope.geojson"))
	_, err := src.Features(context.Background())
	assert.Error(t, err)
}

func TestGeoJSONSource_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": "FeatureCollection", "features": [`), 0o644))
	_, err := NewGeoJSONSource(path).Features(context.Background())
	assert.Error(t, err)
}

func TestFilterBBox(t *testing.T) {
	src := NewGeoJSONSource(writeSample(t))
	features, err := src.Features(context.Background())
	require.NoError(t, err)

	got := FilterBBox(features, 40, -5, 60, 5)
	require.Len(t, got, 2) // the primary road and the crossing
	assert.Equal(t, int64(101), got[0].ID)
	assert.Equal(t, int64(201), got[1].ID)
}

func TestBBoxSource(t *testing.T) {
	src := NewBBoxSource(NewGeoJSONSource(writeSample(t)), 40, -5, 60, 5)
	features, err := src.Features(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, int64(101), features[0].ID)
}

func TestTagSource(t *testing.T) {
	base := NewGeoJSONSource(writeSample(t))

	features, err := NewTagSource(base, "highway", "").Features(context.Background())
	require.NoError(t, err)
	assert.Len(t, features, 3)

	features, err = NewTagSource(base, "highway", "crossing").Features(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 1)

	features, err = NewTagSource(base, "railway", "").Features(context.Background())
	require.NoError(t, err)
	assert.Empty(t, features)
}
