// Package segment cuts road geometries into fixed-length pieces.
package segment

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/safestreets/crossing-cli/internal/geomath"
	"github.com/safestreets/crossing-cli/internal/model"
)

// DefaultLength is the target segment length in projection units.
const DefaultLength = 20.0

// Cut splits one road into consecutive segments of at most targetLength.
// Multi-part geometries are processed part by part under the same road
// id; degenerate parts (zero length) are skipped. Sequence numbers are
// dense, 0-based, and ordered along the road, so identical input always
// yields identical segment boundaries.
func Cut(road model.Road, targetLength float64) []model.RoadSegment {
	if targetLength <= 0 {
		targetLength = DefaultLength
	}

	var segments []model.RoadSegment
	seq := 0
	for _, part := range lineParts(road.Geometry) {
		length := part.Length()
		if length <= 0 {
			continue
		}
		n := int(math.Ceil(length / targetLength))
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			from := float64(i) * targetLength / length
			to := math.Min(float64(i+1)*targetLength/length, 1.0)
			segments = append(segments, model.RoadSegment{
				RoadID:   road.ID,
				Sequence: seq,
				Name:     road.Name,
				Class:    road.Class,
				Geometry: geomath.Substring(part, from, to),
			})
			seq++
		}
	}
	return segments
}

// CutAll segments every road, preserving input order.
func CutAll(roads []model.Road, targetLength float64) []model.RoadSegment {
	var all []model.RoadSegment
	for _, road := range roads {
		all = append(all, Cut(road, targetLength)...)
	}
	return all
}

// lineParts normalizes a road geometry to its simple line parts.
func lineParts(g geom.T) []*geom.LineString {
	switch t := g.(type) {
	case *geom.LineString:
		if t.NumCoords() < 2 {
			return nil
		}
		return []*geom.LineString{t}
	case *geom.MultiLineString:
		var parts []*geom.LineString
		for i := 0; i < t.NumLineStrings(); i++ {
			if ls := t.LineString(i); ls.NumCoords() >= 2 {
				parts = append(parts, ls)
			}
		}
		return parts
	default:
		return nil
	}
}

// LineParts exposes the geometry normalization used by Cut so other
// stages (connectivity, enrichment) treat multi-part roads identically.
func LineParts(g geom.T) []*geom.LineString {
	return lineParts(g)
}
