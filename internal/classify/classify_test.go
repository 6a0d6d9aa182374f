package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/safestreets/crossing-cli/internal/model"
)

func lineFeature(id int64, tags model.Tags) model.Feature {
	return model.Feature{
		ID:       id,
		Kind:     model.KindLine,
		Tags:     tags,
		Geometry: geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0}),
	}
}

func pointFeature(id int64, tags model.Tags) model.Feature {
	return model.Feature{
		ID:       id,
		Kind:     model.KindPoint,
		Tags:     tags,
		Geometry: geom.NewPointFlat(geom.XY, []float64{1, 1}),
	}
}

func TestRoads_DrivableVocabulary(t *testing.T) {
	features := []model.Feature{
		lineFeature(1, model.Tags{"highway": "primary", "name": "Main St"}),
		lineFeature(2, model.Tags{"highway": "footway"}),
		lineFeature(3, model.Tags{"highway": "trunk_link"}),
		lineFeature(4, model.Tags{"building": "yes"}),
	}
	roads := Roads(features)
	require.Len(t, roads, 2)
	assert.Equal(t, int64(1), roads[0].ID)
	assert.Equal(t, "Main St", roads[0].Name)
	assert.Equal(t, "primary", roads[0].Class)
	assert.Equal(t, int64(3), roads[1].ID)
}

func TestRoads_SkipsEmptyGeometry(t *testing.T) {
	f := lineFeature(1, model.Tags{"highway": "residential"})
	f.Geometry = nil
	assert.Empty(t, Roads([]model.Feature{f}))

	f.Geometry = geom.NewLineString(geom.XY)
	assert.Empty(t, Roads([]model.Feature{f}))
}

func TestRoads_IgnoresPointFeatures(t *testing.T) {
	assert.Empty(t, Roads([]model.Feature{pointFeature(1, model.Tags{"highway": "primary"})}))
}

func TestCrossings_MarkedVocabulary(t *testing.T) {
	for _, ct := range []string{"controlled", "marked", "pedestrian_signals", "traffic_signals", "zebra", "uncontrolled"} {
		got := Crossings([]model.Feature{pointFeature(1, model.Tags{"highway": "crossing", "crossing": ct})})
		require.Len(t, got, 1, "crossing=%s", ct)
		assert.True(t, got[0].Marked, "crossing=%s", ct)
		assert.False(t, got[0].Unmarked, "crossing=%s", ct)
	}
}

func TestCrossings_Unmarked(t *testing.T) {
	got := Crossings([]model.Feature{pointFeature(1, model.Tags{"highway": "crossing", "crossing": "unmarked"})})
	require.Len(t, got, 1)
	assert.False(t, got[0].Marked)
	assert.True(t, got[0].Unmarked)
}

func TestCrossings_AuxiliaryMarkingTags(t *testing.T) {
	got := Crossings([]model.Feature{pointFeature(1, model.Tags{"highway": "crossing", "crossing:markings": "zebra"})})
	require.Len(t, got, 1)
	assert.True(t, got[0].Marked)
	assert.Equal(t, CrossingTypeUnknown, got[0].Type)

	got = Crossings([]model.Feature{pointFeature(2, model.Tags{"highway": "crossing", "crossing:signals": "no"})})
	require.Len(t, got, 1)
	assert.False(t, got[0].Marked)
}

func TestCrossings_UnmarkedNeverAlsoMarked(t *testing.T) {
	got := Crossings([]model.Feature{pointFeature(1, model.Tags{
		"highway":           "crossing",
		"crossing":          "unmarked",
		"crossing:markings": "yes",
	})})
	require.Len(t, got, 1)
	assert.True(t, got[0].Unmarked)
	assert.False(t, got[0].Marked)
}

func TestCrossings_AmbiguousType(t *testing.T) {
	got := Crossings([]model.Feature{pointFeature(1, model.Tags{"highway": "crossing", "crossing": "informal"})})
	require.Len(t, got, 1)
	assert.False(t, got[0].Marked)
	assert.False(t, got[0].Unmarked)
	assert.Equal(t, "informal", got[0].Type)
}

func TestCrossings_MissingTagDefaultsUnknown(t *testing.T) {
	got := Crossings([]model.Feature{pointFeature(1, model.Tags{"highway": "crossing"})})
	require.Len(t, got, 1)
	assert.Equal(t, CrossingTypeUnknown, got[0].Type)
	assert.False(t, got[0].Marked)
	assert.False(t, got[0].Unmarked)
}
