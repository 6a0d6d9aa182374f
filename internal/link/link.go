// Package link performs the spatial join between roads and crossing points.
package link

import (
	"sort"

	"github.com/tidwall/rtree"
	"go.uber.org/zap"

	"github.com/safestreets/crossing-cli/internal/geomath"
	"github.com/safestreets/crossing-cli/internal/model"
)

// DefaultSnapDistance is the default snap tolerance in projection units.
const DefaultSnapDistance = 0.2

// Associate links every crossing to the roads whose geometry lies
// within snapDistance of it. Road bounding boxes are indexed in an
// R-tree; each crossing probes the index with its envelope expanded by
// snapDistance, then candidates are confirmed with exact distance. A
// crossing with no road in tolerance simply contributes no linkages.
//
// The result is sorted by (road id, crossing id) for reproducible
// storage, but the linkage set itself is unordered by contract.
func Associate(roads []model.Road, crossings []model.CrossingPoint, snapDistance float64) []model.Linkage {
	if snapDistance <= 0 {
		snapDistance = DefaultSnapDistance
	}

	var index rtree.RTreeG[int]
	for i, road := range roads {
		min, max := geomath.BoundsRect(road.Geometry, 0)
		index.Insert(min, max, i)
	}

	var linkages []model.Linkage
	for _, crossing := range crossings {
		p := crossing.Geometry.Coords()
		min, max := geomath.BoundsRect(crossing.Geometry, snapDistance)
		index.Search(min, max, func(_, _ [2]float64, i int) bool {
			if geomath.PointToGeom(p, roads[i].Geometry) <= snapDistance {
				linkages = append(linkages, model.Linkage{
					RoadID:     roads[i].ID,
					CrossingID: crossing.ID,
				})
			}
			return true
		})
	}

	sort.Slice(linkages, func(i, j int) bool {
		if linkages[i].RoadID != linkages[j].RoadID {
			return linkages[i].RoadID < linkages[j].RoadID
		}
		return linkages[i].CrossingID < linkages[j].CrossingID
	})

	zap.L().Debug("road-crossing linkage complete",
		zap.Int("roads", len(roads)),
		zap.Int("crossings", len(crossings)),
		zap.Int("linkages", len(linkages)),
	)
	return linkages
}

// ByCrossing groups linkages by crossing id.
func ByCrossing(linkages []model.Linkage) map[int64][]int64 {
	out := make(map[int64][]int64)
	for _, l := range linkages {
		out[l.CrossingID] = append(out[l.CrossingID], l.RoadID)
	}
	return out
}

// ByRoad groups linkages by road id.
func ByRoad(linkages []model.Linkage) map[int64][]int64 {
	out := make(map[int64][]int64)
	for _, l := range linkages {
		out[l.RoadID] = append(out[l.RoadID], l.CrossingID)
	}
	return out
}
