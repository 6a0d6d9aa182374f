// Package nearest resolves, per road segment, the closest marked
// crossing under a configurable search-scope policy.
package nearest

import (
	"math"

	"github.com/tidwall/rtree"
	"go.uber.org/zap"

	"github.com/safestreets/crossing-cli/internal/connect"
	"github.com/safestreets/crossing-cli/internal/geomath"
	"github.com/safestreets/crossing-cli/internal/link"
	"github.com/safestreets/crossing-cli/internal/model"
)

// Policy selects which marked crossings are eligible candidates for a
// segment's nearest-crossing search.
type Policy string

const (
	// PolicyNameRadius considers crossings linked to same-named roads,
	// capped at the search radius; a miss reports a fixed "far"
	// sentinel distance instead of a null.
	PolicyNameRadius Policy = "name-radius"
	// PolicyConnectedComponent considers crossings linked to any road
	// in the segment's connected component, with no radius cap.
	PolicyConnectedComponent Policy = "connected-component"
)

// DefaultSearchRadius is the default cap for the name-radius policy,
// in projection units.
const DefaultSearchRadius = 500.0

// Valid reports whether p names a known policy.
func (p Policy) Valid() bool {
	return p == PolicyNameRadius || p == PolicyConnectedComponent
}

// Resolver answers nearest-marked-crossing queries over a fixed set of
// marked crossings. Build it once (a synchronization barrier) before
// segments are resolved in parallel; it is read-only afterwards.
type Resolver struct {
	index         rtree.RTreeG[int64]
	indexDiagonal float64

	crossingCoord map[int64][]float64
	markedByRoad  map[int64][]int64
	roadIDsByName map[string][]int64
	graph         *connect.Graph
	radius        float64
}

// NewResolver indexes the marked subset of crossings and precomputes
// the road groupings both policies draw candidates from.
func NewResolver(roads []model.Road, crossings []model.CrossingPoint, linkages []model.Linkage, graph *connect.Graph, radius float64) *Resolver {
	if radius <= 0 {
		radius = DefaultSearchRadius
	}
	r := &Resolver{
		crossingCoord: make(map[int64][]float64),
		markedByRoad:  make(map[int64][]int64),
		roadIDsByName: make(map[string][]int64),
		graph:         graph,
		radius:        radius,
	}

	marked := make(map[int64]bool)
	var bounds *boundsTracker
	for _, c := range crossings {
		if !c.Marked {
			continue
		}
		marked[c.ID] = true
		coords := c.Geometry.Coords()
		r.crossingCoord[c.ID] = []float64{coords[0], coords[1]}
		pt := [2]float64{coords[0], coords[1]}
		r.index.Insert(pt, pt, c.ID)
		if bounds == nil {
			bounds = &boundsTracker{min: pt, max: pt}
		} else {
			bounds.extend(pt)
		}
	}
	if bounds != nil {
		dx := bounds.max[0] - bounds.min[0]
		dy := bounds.max[1] - bounds.min[1]
		r.indexDiagonal = math.Sqrt(dx*dx + dy*dy)
	}

	byRoad := link.ByRoad(linkages)
	for roadID, crossingIDs := range byRoad {
		for _, cid := range crossingIDs {
			if marked[cid] {
				r.markedByRoad[roadID] = append(r.markedByRoad[roadID], cid)
			}
		}
	}
	for _, road := range roads {
		if road.Name != "" {
			r.roadIDsByName[road.Name] = append(r.roadIDsByName[road.Name], road.ID)
		}
	}

	zap.L().Debug("nearest-crossing resolver built",
		zap.Int("marked_crossings", len(marked)),
		zap.Float64("radius", radius),
	)
	return r
}

// Resolve returns exactly one result for the segment. Under the
// name-radius policy an empty result carries the "far" sentinel
// distance; under the connected-component policy both fields are nil
// when the component has no marked crossing.
func (r *Resolver) Resolve(seg model.RoadSegment, policy Policy) model.NearestCrossing {
	eligible := r.eligibleSet(seg, policy)

	switch policy {
	case PolicyConnectedComponent:
		id, dist, found := r.searchUncapped(seg, eligible)
		if !found {
			return model.NearestCrossing{}
		}
		return model.NearestCrossing{CrossingID: &id, Distance: &dist}
	default: // name-radius
		id, dist, found := r.searchWithin(seg, eligible, r.radius)
		if !found || dist > r.radius {
			// "Far" sentinel: never less than the default radius, so a
			// tight search cap still scores a miss as genuinely far.
			sentinel := math.Max(r.radius, DefaultSearchRadius)
			return model.NearestCrossing{Distance: &sentinel}
		}
		return model.NearestCrossing{CrossingID: &id, Distance: &dist}
	}
}

// eligibleSet collects the candidate crossing ids for a segment under
// the given policy.
func (r *Resolver) eligibleSet(seg model.RoadSegment, policy Policy) map[int64]bool {
	eligible := make(map[int64]bool)
	switch policy {
	case PolicyConnectedComponent:
		for _, roadID := range r.graph.Members(seg.RoadID) {
			for _, cid := range r.markedByRoad[roadID] {
				eligible[cid] = true
			}
		}
	default:
		if seg.Name == "" {
			return eligible
		}
		for _, roadID := range r.roadIDsByName[seg.Name] {
			for _, cid := range r.markedByRoad[roadID] {
				eligible[cid] = true
			}
		}
	}
	return eligible
}

// searchWithin finds the closest eligible crossing within maxDist of
// the segment. Equidistant candidates tie-break on the smallest id.
func (r *Resolver) searchWithin(seg model.RoadSegment, eligible map[int64]bool, maxDist float64) (int64, float64, bool) {
	if len(eligible) == 0 {
		return 0, 0, false
	}
	bestID := int64(0)
	bestDist := math.Inf(1)
	found := false

	min, max := geomath.BoundsRect(seg.Geometry, maxDist)
	r.index.Search(min, max, func(_, _ [2]float64, id int64) bool {
		if !eligible[id] {
			return true
		}
		c := r.crossingCoord[id]
		d := geomath.PointToLine([]float64{c[0], c[1]}, seg.Geometry)
		if d > maxDist {
			return true
		}
		if !found || d < bestDist || (d == bestDist && id < bestID) {
			bestID, bestDist, found = id, d, true
		}
		return true
	})
	return bestID, bestDist, found
}

// searchUncapped expands the probe envelope geometrically until an
// eligible crossing appears, then re-searches at the found distance to
// guarantee the true minimum.
func (r *Resolver) searchUncapped(seg model.RoadSegment, eligible map[int64]bool) (int64, float64, bool) {
	if len(eligible) == 0 {
		return 0, 0, false
	}
	limit := r.indexDiagonal + seg.Geometry.Length()
	for probe := r.radius; ; probe *= 2 {
		if id, dist, found := r.searchWithin(seg, eligible, probe); found {
			// Re-probe at the found distance: a closer candidate may sit
			// outside the last envelope but inside this one.
			if id2, dist2, ok := r.searchWithin(seg, eligible, dist); ok {
				return id2, dist2, true
			}
			return id, dist, true
		}
		if probe > limit {
			break
		}
	}
	// Eligible candidates exist but the envelope walk missed them
	// (degenerate index bounds): fall back to a direct scan.
	bestID := int64(0)
	bestDist := math.Inf(1)
	found := false
	for id := range eligible {
		c, ok := r.crossingCoord[id]
		if !ok {
			continue
		}
		d := geomath.PointToLine([]float64{c[0], c[1]}, seg.Geometry)
		if !found || d < bestDist || (d == bestDist && id < bestID) {
			bestID, bestDist, found = id, d, true
		}
	}
	return bestID, bestDist, found
}

type boundsTracker struct {
	min, max [2]float64
}

func (b *boundsTracker) extend(p [2]float64) {
	b.min[0] = math.Min(b.min[0], p[0])
	b.min[1] = math.Min(b.min[1], p[1])
	b.max[0] = math.Max(b.max[0], p[0])
	b.max[1] = math.Max(b.max[1], p[1])
}
