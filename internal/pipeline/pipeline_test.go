package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/safestreets/crossing-cli/internal/model"
	"github.com/safestreets/crossing-cli/internal/nearest"
	"github.com/safestreets/crossing-cli/internal/score"
	"github.com/safestreets/crossing-cli/internal/store"
)

type memorySource struct {
	features []model.Feature
}

func (m *memorySource) Features(_ context.Context) ([]model.Feature, error) {
	return m.features, nil
}

// fakeStore records writes so tests can inspect exactly what a run
// persisted and in what order.
type fakeStore struct {
	segments   []store.SegmentRecord
	crossings  []store.CrossingRecord
	published  string
	failWrites bool
}

func (f *fakeStore) Migrate(context.Context) error { return nil }

func (f *fakeStore) CreateRun(context.Context) (string, error) { return "run-test", nil }

func (f *fakeStore) WriteSegments(_ context.Context, _ string, records []store.SegmentRecord) error {
	if f.failWrites {
		return eris.New("disk full")
	}
	f.segments = append(f.segments, records...)
	return nil
}

func (f *fakeStore) WriteCrossings(_ context.Context, _ string, records []store.CrossingRecord) error {
	if f.failWrites {
		return eris.New("disk full")
	}
	f.crossings = append(f.crossings, records...)
	return nil
}

func (f *fakeStore) Publish(_ context.Context, runID string) error {
	f.published = runID
	return nil
}

func (f *fakeStore) CurrentRunID(context.Context) (string, error) { return f.published, nil }

func (f *fakeStore) ListRuns(context.Context) ([]store.RunInfo, error) { return nil, nil }

func (f *fakeStore) PruneRuns(context.Context, int) (int, error) { return 0, nil }

func (f *fakeStore) Close() error { return nil }

func lineFeature(id int64, tags map[string]string, coords ...float64) model.Feature {
	return model.Feature{
		ID:       id,
		Kind:     model.KindLine,
		Tags:     tags,
		Geometry: geom.NewLineStringFlat(geom.XY, coords),
	}
}

func pointFeature(id int64, tags map[string]string, x, y float64) model.Feature {
	return model.Feature{
		ID:       id,
		Kind:     model.KindPoint,
		Tags:     tags,
		Geometry: geom.NewPointFlat(geom.XY, []float64{x, y}),
	}
}

func townFeatures() []model.Feature {
	return []model.Feature{
		lineFeature(101, map[string]string{
			"highway": "primary", "name": "Main Street",
			"maxspeed": "30 mph", "lanes": "2",
		}, 0, 0, 100, 0),
		lineFeature(102, map[string]string{
			"highway": "residential", "name": "Quiet Lane",
		}, 0, 10, 40, 10),
		// Footways are not drivable and must be ignored.
		lineFeature(103, map[string]string{
			"highway": "footway",
		}, 0, 5, 100, 5),
		pointFeature(9001, map[string]string{
			"highway": "crossing", "crossing": "zebra",
		}, 50, 0.01),
		pointFeature(9002, map[string]string{
			"highway": "crossing", "crossing": "unmarked",
		}, 10, 0.01),
	}
}

func defaultOptions() Options {
	return Options{
		SegmentLength:      20,
		SnapDistance:       0.2,
		EnrichSnapDistance: 0.05,
		SearchRadius:       500,
		Policy:             nearest.PolicyNameRadius,
		Workers:            4,
		Scoring:            score.NewConfig(score.DefaultWeights, nil),
	}
}

func TestRunEndToEnd(t *testing.T) {
	src := &memorySource{features: townFeatures()}
	st := &fakeStore{}

	result, err := Run(context.Background(), src, st, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "run-test", result.RunID)
	assert.Equal(t, "run-test", st.published)
	assert.Equal(t, 2, result.Roads)

	// Main Street is 100 long (5 cuts), Quiet Lane 40 (2 cuts).
	require.Len(t, st.segments, 7)
	assert.Equal(t, result.Segments, len(st.segments))

	byID := map[string]store.SegmentRecord{}
	for _, rec := range st.segments {
		byID[rec.SegmentID] = rec
	}

	first := byID["101:0"]
	assert.Equal(t, "Main Street", first.Name)
	assert.Equal(t, "primary", first.Class)
	require.NotNil(t, first.SpeedMPH)
	assert.Equal(t, 30.0, *first.SpeedMPH)
	require.NotNil(t, first.LaneCount)
	assert.Equal(t, 2, *first.LaneCount)
	assert.True(t, first.NearestIsMarked)
	require.NotNil(t, first.DistanceToMarked)
	assert.InDelta(t, 30.0, *first.DistanceToMarked, 0.05)
	assert.Contains(t, first.GeometryWKT, "LINESTRING")

	// Residential override pins the index to exactly zero.
	quiet := byID["102:0"]
	assert.Equal(t, 0.0, quiet.DifficultyIndex)
	assert.Equal(t, "easy", quiet.DifficultyLabel)

	// Only the unmarked crossing is enriched.
	require.Len(t, st.crossings, 1)
	crossing := st.crossings[0]
	assert.Equal(t, int64(9002), crossing.CrossingID)
	require.NotNil(t, crossing.SegmentID)
	assert.Equal(t, "101:0", *crossing.SegmentID)
	require.NotNil(t, crossing.Class)
	assert.Equal(t, "primary", *crossing.Class)
	require.NotNil(t, crossing.DifficultyLabel)
}

func TestRunDeterministicAcrossWorkerCounts(t *testing.T) {
	var captured [][]store.SegmentRecord
	for _, workers := range []int{1, 8} {
		src := &memorySource{features: townFeatures()}
		st := &fakeStore{}
		opts := defaultOptions()
		opts.Workers = workers

		_, err := Run(context.Background(), src, st, opts)
		require.NoError(t, err)
		captured = append(captured, st.segments)
	}
	assert.Equal(t, captured[0], captured[1])
}

func TestRunNothingPublishedOnWriteFailure(t *testing.T) {
	src := &memorySource{features: townFeatures()}
	st := &fakeStore{failWrites: true}

	_, err := Run(context.Background(), src, st, defaultOptions())
	require.Error(t, err)
	assert.Empty(t, st.published)
}

func TestRunRejectsDuplicateSegmentKeys(t *testing.T) {
	// Two line features with the same id yield colliding road-id:sequence
	// keys, which would cross-wire the crossing join.
	src := &memorySource{features: []model.Feature{
		lineFeature(101, map[string]string{"highway": "primary", "name": "A"}, 0, 0, 30, 0),
		lineFeature(101, map[string]string{"highway": "primary", "name": "B"}, 0, 5, 30, 5),
	}}
	st := &fakeStore{}

	_, err := Run(context.Background(), src, st, defaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate segment id")
	assert.Empty(t, st.published)
}

func TestRunConnectedComponentPolicy(t *testing.T) {
	src := &memorySource{features: townFeatures()}
	st := &fakeStore{}
	opts := defaultOptions()
	opts.Policy = nearest.PolicyConnectedComponent

	result, err := Run(context.Background(), src, st, opts)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Segments)

	// Quiet Lane has no marked crossing in its component: both the id
	// and the distance stay null instead of falling back to a sentinel.
	for _, rec := range st.segments {
		if rec.RoadID == 102 {
			assert.Nil(t, rec.DistanceToMarked)
			assert.False(t, rec.NearestIsMarked)
		}
	}
}
