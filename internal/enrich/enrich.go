// Package enrich attaches worst-case road attributes to unmarked
// crossing points for downstream presentation.
package enrich

import (
	"go.uber.org/zap"

	"github.com/safestreets/crossing-cli/internal/geomath"
	"github.com/safestreets/crossing-cli/internal/link"
	"github.com/safestreets/crossing-cli/internal/model"
	"github.com/safestreets/crossing-cli/internal/score"
)

// DefaultSnapDistance is the enrichment snap tolerance, deliberately
// tighter than the linker's.
const DefaultSnapDistance = 0.05

// Crossings annotates every unmarked crossing with the attributes of
// the most difficult scored segment among its linked roads' segments
// within snapDistance of the point. Ties break toward the geometrically
// nearest segment. A crossing with no segment in tolerance keeps all
// road fields nil.
//
// The difficulty override is re-evaluated here rather than trusted from
// the stored segment, so presentation always sees a freshly computed
// index for the winning class.
func Crossings(crossings []model.CrossingPoint, segments []model.ScoredSegment, linkages []model.Linkage, cfg score.Config, snapDistance float64) []model.EnrichedCrossing {
	if snapDistance <= 0 {
		snapDistance = DefaultSnapDistance
	}

	segmentsByRoad := make(map[int64][]*model.ScoredSegment)
	for i := range segments {
		s := &segments[i]
		segmentsByRoad[s.RoadID] = append(segmentsByRoad[s.RoadID], s)
	}
	roadsByCrossing := link.ByCrossing(linkages)

	var enriched []model.EnrichedCrossing
	for _, crossing := range crossings {
		if !crossing.Unmarked {
			continue
		}
		e := model.EnrichedCrossing{
			CrossingID: crossing.ID,
			Geometry:   crossing.Geometry,
		}

		p := crossing.Geometry.Coords()
		var best *model.ScoredSegment
		bestIndex := 0.0
		bestDist := 0.0
		for _, roadID := range roadsByCrossing[crossing.ID] {
			for _, seg := range segmentsByRoad[roadID] {
				d := geomath.PointToLine(p, seg.Geometry)
				if d > snapDistance {
					continue
				}
				idx := recomputedIndex(seg, cfg)
				if best == nil || idx > bestIndex || (idx == bestIndex && d < bestDist) {
					best, bestIndex, bestDist = seg, idx, d
				}
			}
		}

		if best != nil {
			segID := best.SegmentID()
			e.SegmentID = &segID
			e.Name = strPtrOrNil(best.Name)
			class := best.Class
			e.Class = &class
			e.SpeedMPH = best.SpeedMPH
			e.LaneCount = best.LaneCount
			e.DistanceToMarked = best.DistanceToMarked
			e.DistanceScore = &best.DistanceScore
			e.SpeedScore = &best.SpeedScore
			e.LanesScore = &best.LanesScore
			e.VolumeScore = &best.VolumeScore
			e.DifficultyIndex = &bestIndex
		}
		enriched = append(enriched, e)
	}

	zap.L().Debug("unmarked crossings enriched", zap.Int("crossings", len(enriched)))
	return enriched
}

// recomputedIndex re-applies the class override to a stored segment
// score instead of trusting the persisted index.
func recomputedIndex(seg *model.ScoredSegment, cfg score.Config) float64 {
	return cfg.Index(seg.DistanceScore, seg.SpeedScore, seg.LanesScore, seg.VolumeScore, seg.Class)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
