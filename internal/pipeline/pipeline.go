// Package pipeline runs the crossing-difficulty stages end to end:
// classify, link, segment, connect, resolve, score, enrich, persist.
package pipeline

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safestreets/crossing-cli/internal/classify"
	"github.com/safestreets/crossing-cli/internal/connect"
	"github.com/safestreets/crossing-cli/internal/enrich"
	"github.com/safestreets/crossing-cli/internal/ingest"
	"github.com/safestreets/crossing-cli/internal/link"
	"github.com/safestreets/crossing-cli/internal/model"
	"github.com/safestreets/crossing-cli/internal/nearest"
	"github.com/safestreets/crossing-cli/internal/score"
	"github.com/safestreets/crossing-cli/internal/segment"
	"github.com/safestreets/crossing-cli/internal/store"
)

// Options controls a single pipeline run.
type Options struct {
	SegmentLength      float64
	SnapDistance       float64
	EnrichSnapDistance float64
	SearchRadius       float64
	Policy             nearest.Policy
	Workers            int
	Scoring            score.Config
}

// Result summarizes a completed, published run.
type Result struct {
	RunID     string
	Roads     int
	Segments  int
	Crossings int
	Duration  time.Duration
}

// Run executes the whole pipeline over one feature source and publishes
// the result as the store's current snapshot. On any error nothing is
// published; a previously published snapshot stays current.
func Run(ctx context.Context, src ingest.FeatureSource, st store.Store, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	start := time.Now()

	features, err := src.Features(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read features")
	}
	log.Info("loaded features", zap.Int("count", len(features)))

	roads := classify.Roads(features)
	crossings := classify.Crossings(features)
	log.Info("classified features",
		zap.Int("roads", len(roads)),
		zap.Int("crossings", len(crossings)))

	linkages := link.Associate(roads, crossings, opts.SnapDistance)
	segments := segment.CutAll(roads, opts.SegmentLength)
	graph := connect.Build(roads)

	if err := checkSegmentKeys(segments); err != nil {
		return nil, err
	}

	resolver := nearest.NewResolver(roads, crossings, linkages, graph, opts.SearchRadius)

	scored, err := scoreSegments(ctx, resolver, segments, roadTags(roads), opts)
	if err != nil {
		return nil, err
	}

	enriched := enrich.Crossings(crossings, scored, linkages, opts.Scoring, opts.EnrichSnapDistance)

	runID, err := persist(ctx, st, scored, enriched)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     runID,
		Roads:     len(roads),
		Segments:  len(scored),
		Crossings: len(enriched),
		Duration:  time.Since(start),
	}
	log.Info("run published",
		zap.String("run_id", result.RunID),
		zap.Int("segments", result.Segments),
		zap.Int("crossings", result.Crossings),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// checkSegmentKeys verifies the road-id:sequence join key is unique.
// A collision would silently cross-wire the segment/crossing join, so
// it aborts the run.
func checkSegmentKeys(segments []model.RoadSegment) error {
	seen := make(map[string]bool, len(segments))
	for _, seg := range segments {
		id := seg.SegmentID()
		if seen[id] {
			return eris.Errorf("pipeline: duplicate segment id %s", id)
		}
		seen[id] = true
	}
	return nil
}

func roadTags(roads []model.Road) map[int64]model.Tags {
	tags := make(map[int64]model.Tags, len(roads))
	for _, road := range roads {
		tags[road.ID] = road.Tags
	}
	return tags
}

// scoreSegments resolves and scores every segment, fanning out across
// workers. Output order matches input order regardless of scheduling.
func scoreSegments(ctx context.Context, resolver *nearest.Resolver, segments []model.RoadSegment, tags map[int64]model.Tags, opts Options) ([]model.ScoredSegment, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	scored := make([]model.ScoredSegment, len(segments))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, seg := range segments {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			near := resolver.Resolve(seg, opts.Policy)
			scored[i] = opts.Scoring.Segment(seg, near, tags[seg.RoadID])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: score segments")
	}
	return scored, nil
}

// persist writes both result sets into a fresh run and publishes it.
func persist(ctx context.Context, st store.Store, segments []model.ScoredSegment, crossings []model.EnrichedCrossing) (string, error) {
	segRecords, err := segmentRecords(segments)
	if err != nil {
		return "", err
	}
	crossRecords, err := crossingRecords(crossings)
	if err != nil {
		return "", err
	}

	runID, err := st.CreateRun(ctx)
	if err != nil {
		return "", err
	}
	if err := st.WriteSegments(ctx, runID, segRecords); err != nil {
		return "", err
	}
	if err := st.WriteCrossings(ctx, runID, crossRecords); err != nil {
		return "", err
	}
	if err := st.Publish(ctx, runID); err != nil {
		return "", err
	}
	return runID, nil
}

func segmentRecords(segments []model.ScoredSegment) ([]store.SegmentRecord, error) {
	records := make([]store.SegmentRecord, 0, len(segments))
	for _, seg := range segments {
		geomWKT, err := wkt.Marshal(seg.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: encode segment %s", seg.SegmentID())
		}
		records = append(records, store.SegmentRecord{
			SegmentID:        seg.SegmentID(),
			RoadID:           seg.RoadID,
			Sequence:         seg.Sequence,
			Name:             seg.Name,
			Class:            seg.Class,
			DistanceToMarked: seg.DistanceToMarked,
			NearestIsMarked:  seg.NearestIsMarked,
			SpeedMPH:         seg.SpeedMPH,
			LaneCount:        seg.LaneCount,
			DifficultyIndex:  seg.DifficultyIndex,
			DifficultyLabel:  score.Label(seg.DifficultyIndex),
			GeometryWKT:      geomWKT,
		})
	}
	return records, nil
}

func crossingRecords(crossings []model.EnrichedCrossing) ([]store.CrossingRecord, error) {
	records := make([]store.CrossingRecord, 0, len(crossings))
	for _, c := range crossings {
		geomWKT, err := wkt.Marshal(c.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: encode crossing %d", c.CrossingID)
		}
		rec := store.CrossingRecord{
			CrossingID:       c.CrossingID,
			SegmentID:        c.SegmentID,
			Name:             c.Name,
			Class:            c.Class,
			SpeedMPH:         c.SpeedMPH,
			LaneCount:        c.LaneCount,
			DistanceToMarked: c.DistanceToMarked,
			DifficultyIndex:  c.DifficultyIndex,
			GeometryWKT:      geomWKT,
		}
		if c.DifficultyIndex != nil {
			label := score.Label(*c.DifficultyIndex)
			rec.DifficultyLabel = &label
		}
		records = append(records, rec)
	}
	return records, nil
}
