package model

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// Road is a classified drivable line feature. One Road per qualifying
// feature; roads are never merged. Geometry is a LineString or, for
// multi-part source features, a MultiLineString.
type Road struct {
	ID       int64
	Name     string
	Class    string
	Tags     Tags
	Geometry geom.T
}

// CrossingPoint is a classified highway=crossing point feature.
// Marked and Unmarked are never simultaneously true; both are false
// when the crossing tag value is not in any known vocabulary.
type CrossingPoint struct {
	ID       int64
	Type     string
	Marked   bool
	Unmarked bool
	Geometry *geom.Point
}

// Linkage associates a crossing with a road it lies within snap
// distance of. Many-to-many and unordered.
type Linkage struct {
	RoadID     int64
	CrossingID int64
}

// RoadSegment is one fixed-length slice of a road's geometry.
// Sequence is dense and 0-based along the road.
type RoadSegment struct {
	RoadID   int64
	Sequence int
	Name     string
	Class    string
	Geometry *geom.LineString
}

// SegmentID is the identifier-stable join key for a segment. It is a
// pure function of road id and sequence, so re-runs over unchanged
// input produce identical keys.
func (s RoadSegment) SegmentID() string {
	return fmt.Sprintf("%d:%d", s.RoadID, s.Sequence)
}

// NearestCrossing is the per-segment result of the nearest-marked-
// crossing search. CrossingID is nil when no candidate was found;
// Distance is nil only under the connected-component policy when the
// whole component has no marked crossing.
type NearestCrossing struct {
	CrossingID *int64
	Distance   *float64
}

// ScoredSegment is a road segment with its resolved nearest-crossing
// data, parsed road attributes, and difficulty sub-scores.
type ScoredSegment struct {
	RoadSegment

	NearestCrossingID *int64
	DistanceToMarked  *float64
	NearestIsMarked   bool

	SpeedMPH  *float64
	LaneCount *int

	DistanceScore   float64
	SpeedScore      float64
	LanesScore      float64
	VolumeScore     float64
	DifficultyIndex float64
}

// EnrichedCrossing is an unmarked crossing annotated with the
// attributes of the most difficult road segment touching it. The road
// fields are all nil when no segment lies within the enrichment snap
// tolerance.
type EnrichedCrossing struct {
	CrossingID int64
	Geometry   *geom.Point

	SegmentID        *string
	Name             *string
	Class            *string
	SpeedMPH         *float64
	LaneCount        *int
	DistanceToMarked *float64

	DistanceScore   *float64
	SpeedScore      *float64
	LanesScore      *float64
	VolumeScore     *float64
	DifficultyIndex *float64
}
